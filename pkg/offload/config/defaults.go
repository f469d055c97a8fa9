// Package config provides configuration management for the offload
// migration pipeline.
package config

import "time"

// Default configuration values for offload.
const (
	// DefaultMinSize is the minimum item size for a migration candidate.
	DefaultMinSize = "500MB"

	// DefaultCPULimit is the fraction of total CPU the migrator may use.
	DefaultCPULimit = 0.8

	// DefaultMemoryLimit is the system memory fraction above which new
	// work submission is throttled.
	DefaultMemoryLimit = 0.8

	// DefaultChunkSize is the copy chunk size for large files.
	DefaultChunkSize = "1MB"

	// DefaultChunkThreshold is the file size above which chunked copy
	// with progress reporting is used instead of a single bulk copy.
	DefaultChunkThreshold = "10MB"

	// DefaultRetries is the number of delete attempts per path.
	DefaultRetries = 3

	// DefaultRetryInterval is the pause between delete attempts.
	DefaultRetryInterval = 1 * time.Second

	// DefaultCheckTimeout bounds symlink verification polling.
	DefaultCheckTimeout = 10 * time.Second

	// DefaultStagingName is the staging directory created under the
	// migration target when no explicit staging path is configured.
	DefaultStagingName = ".offload-staging"
)

// DefaultExclusions contains directory names excluded from every scan root.
var DefaultExclusions = []string{
	"lost+found",
}
