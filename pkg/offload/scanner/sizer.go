package scanner

import (
	"context"
	"io/fs"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/offload/pkg/offload/logging"
)

// Sizer computes recursive directory sizes using a parallel walk.
type Sizer struct {
	log *logging.Logger
}

// NewSizer creates a Sizer.
func NewSizer() *Sizer {
	return &Sizer{log: logging.Get("scanner")}
}

// Size returns the total size in bytes of all regular files under dir.
// Directories whose base name is in excluded are pruned entirely and
// contribute nothing to the sum. Unreadable children are skipped; only a
// failure on dir itself or cancellation returns an error.
func (z *Sizer) Size(ctx context.Context, dir string, excluded map[string]struct{}) (int64, error) {
	var total atomic.Int64

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			if path == dir {
				return err
			}
			z.log.Debug("size walk: skipping entry", "path", path, "error", err)
			return nil
		}

		if d.IsDir() {
			if path != dir {
				if _, skip := excluded[d.Name()]; skip {
					return fastwalk.SkipDir
				}
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			z.log.Debug("size walk: cannot stat", "path", path, "error", err)
			return nil
		}
		total.Add(info.Size())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total.Load(), nil
}
