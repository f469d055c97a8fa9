package types

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewRunID creates a unique artifact ID like "scan-2026-06-15T10-30-00-abc123".
// The prefix names the stage that produced the artifact.
func NewRunID(prefix string) string {
	ts := time.Now().UTC().Format("2006-01-02T15-04-05")

	// Add random suffix for uniqueness
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		// Fallback to nanoseconds if crypto/rand fails
		suffix = []byte(fmt.Sprintf("%06d", time.Now().Nanosecond()%1000000))
	}

	return fmt.Sprintf("%s-%s-%s", prefix, ts, hex.EncodeToString(suffix))
}
