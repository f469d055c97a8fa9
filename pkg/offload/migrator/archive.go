package migrator

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// archiveDir writes a gzip-compressed tar of dir to archivePath. Entry
// names are relative to dir itself, so extracting into a destination
// reproduces the tree there. Symlinks are stored as links, never followed.
// Returns the number of regular files archived; on error the partial
// archive is removed.
func (m *Migrator) archiveDir(ctx context.Context, dir, archivePath string) (int, error) {
	f, err := os.Create(archivePath)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	files := 0
	tick := newMsgTicker(archiveMsgInterval)
	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		link := ""
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return fmt.Errorf("readlink %s: %w", path, err)
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return fmt.Errorf("tar header for %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write tar header: %w", err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, src)
		src.Close()
		if err != nil {
			return fmt.Errorf("archive %s: %w", path, err)
		}
		files++
		if tick.ready() {
			m.say("archiving: %s (%d files)", hdr.Name, files)
		}
		return nil
	})

	if err := closeAll(tw, gz, f); walkErr == nil {
		walkErr = err
	}
	if walkErr != nil {
		os.Remove(archivePath)
		return 0, walkErr
	}
	return files, nil
}

// extractArchive unpacks archivePath into dest, creating it as needed.
// Entries resolving outside dest are rejected. Returns the number of
// regular files written.
func (m *Migrator) extractArchive(ctx context.Context, archivePath, dest string) (int, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()

	cleanBase := filepath.Clean(dest)
	tr := tar.NewReader(gz)
	files := 0
	tick := newMsgTicker(archiveMsgInterval)
	for {
		if err := ctx.Err(); err != nil {
			return files, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return files, fmt.Errorf("read archive: %w", err)
		}

		// filepath.Join cleans, so ".." segments in entry names are
		// resolved before the containment check.
		target := filepath.Join(dest, filepath.FromSlash(hdr.Name))
		if target != cleanBase && !strings.HasPrefix(target, cleanBase+string(os.PathSeparator)) {
			return files, fmt.Errorf("archive entry escapes destination: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return files, err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return files, err
			}
			if err := writeEntry(target, tr, os.FileMode(hdr.Mode)); err != nil {
				return files, fmt.Errorf("extract %s: %w", hdr.Name, err)
			}
			files++
			if tick.ready() {
				m.say("extracting: %s (%d files)", hdr.Name, files)
			}
		case tar.TypeSymlink:
			// Replace any leftover from an earlier partial run.
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return files, err
			}
		default:
			m.log.Debug("skipping unsupported archive entry",
				"name", hdr.Name, "type", hdr.Typeflag)
		}
	}
	return files, nil
}

// writeEntry streams one archive entry to disk.
func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// closeAll closes each closer in order and returns the first error.
// Archive writers must close in layer order (tar, then gzip, then file) or
// the trailing blocks are lost.
func closeAll(closers ...io.Closer) error {
	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
