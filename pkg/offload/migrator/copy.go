package migrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jamesainslie/offload/pkg/offload/types"
)

// copyBulk copies src to dst in one pass, preserving permissions and mtime.
// Returns the bytes written.
func copyBulk(src, dst string, info os.FileInfo) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	return n, preserveAttrs(dst, info)
}

// copyChunked copies src to dst in ChunkSize pieces, checking for
// cancellation between chunks and reporting rate and remaining time about
// once per second. Returns the bytes written.
func (m *Migrator) copyChunked(ctx context.Context, src, dst string, info os.FileInfo) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	name := filepath.Base(src)
	total := info.Size()
	start := time.Now()
	tick := newMsgTicker(copyMsgInterval)
	buf := make([]byte, m.opts.ChunkSize)

	var copied int64
	for {
		if err := ctx.Err(); err != nil {
			out.Close()
			return copied, err
		}
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				return copied, werr
			}
			copied += int64(n)
			if copied == total || tick.ready() {
				m.sayCopyProgress(name, copied, total, start)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			return copied, rerr
		}
	}

	if err := out.Close(); err != nil {
		return copied, err
	}
	if err := preserveAttrs(dst, info); err != nil {
		return copied, err
	}
	m.say("%s copied (%s in %s)",
		name, types.FormatSize(copied), time.Since(start).Round(time.Second))
	return copied, nil
}

// sayCopyProgress emits one in-flight copy message with rate and estimated
// remaining time.
func (m *Migrator) sayCopyProgress(name string, copied, total int64, start time.Time) {
	pct := int64(100)
	if total > 0 {
		pct = copied * 100 / total
	}
	elapsed := time.Since(start)
	if copied == 0 || elapsed <= 0 {
		m.say("%s: %s / %s (%d%%)",
			name, types.FormatSize(copied), types.FormatSize(total), pct)
		return
	}
	rate := float64(copied) / elapsed.Seconds()
	eta := time.Duration(float64(total-copied) / rate * float64(time.Second)).Round(time.Second)
	m.say("%s: %s / %s (%d%%), %s/s, %s remaining",
		name, types.FormatSize(copied), types.FormatSize(total), pct,
		types.FormatSize(int64(rate)), eta)
}

// preserveAttrs applies the source's permission bits and mtime to dst.
func preserveAttrs(dst string, info os.FileInfo) error {
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod %s: %w", dst, err)
	}
	if err := os.Chtimes(dst, time.Now(), info.ModTime()); err != nil {
		return fmt.Errorf("chtimes %s: %w", dst, err)
	}
	return nil
}
