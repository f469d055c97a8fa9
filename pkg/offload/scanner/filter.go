package scanner

import (
	"path/filepath"
	"strings"

	"github.com/jamesainslie/offload/pkg/offload/config"
	"github.com/jamesainslie/offload/pkg/offload/types"
)

// applyDepthFilter drops redundant intermediate-depth entries before the
// result is persisted.
//
// For a root with MaxDepth D > 1, an entry is kept when its depth is 0,
// equal to D, beyond D, or exactly 1 while D > 2. An entry strictly between
// those levels is an ancestor of a deeper entry already in the result, so
// migrating it would duplicate the deeper candidate's contents. Entries
// under unbounded or depth-1 roots pass through unchanged.
func applyDepthFilter(entries []types.Entry, roots []config.Root) []types.Entry {
	filtered := make([]types.Entry, 0, len(entries))
	for _, e := range entries {
		if keepEntry(e, roots) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// keepEntry applies the depth rule of the first depth-limited root the
// entry falls under.
func keepEntry(e types.Entry, roots []config.Root) bool {
	for _, root := range roots {
		if root.MaxDepth <= 1 {
			continue
		}
		if !underRoot(e.Path, root.Path) {
			continue
		}
		d := e.Depth
		return d == 0 ||
			d >= root.MaxDepth ||
			(d == 1 && root.MaxDepth > 2)
	}
	return true
}

// underRoot reports whether path is root or lies beneath it. The separator
// check keeps /data from claiming /data2's entries.
func underRoot(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}
