package sqlite3

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Backup writes a gzip-tar snapshot of the database file (plus its WAL/SHM
// siblings, if present) to destPath. A checkpoint runs first so the main
// file holds every committed row.
func (s *Store) Backup(ctx context.Context, datasource, destPath string) error {
	if _, err := s.conn.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint before backup: %w", err)
	}

	tmp := destPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	for _, suffix := range []string{"", "-wal", "-shm"} {
		path := datasource + suffix
		if err := addFileToTar(tw, path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			tw.Close()
			gz.Close()
			os.Remove(tmp)
			return fmt.Errorf("archive %q: %w", path, err)
		}
	}

	if err := tw.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close gzip writer: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close backup file: %w", err)
	}

	// Atomic rename so a crash mid-write never leaves a truncated archive
	// at destPath.
	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename backup into place: %w", err)
	}
	return nil
}

func addFileToTar(tw *tar.Writer, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr := &tar.Header{
		Name: filepath.Base(path),
		Mode: 0o600,
		Size: info.Size(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// Restore extracts a Backup archive over datasource. The store must be
// closed first: restore replaces the live database file out from under it.
func Restore(ctx context.Context, archivePath, datasource string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open backup archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	dir := filepath.Dir(datasource)
	base := filepath.Base(datasource)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		var destName string
		switch hdr.Name {
		case base:
			destName = base
		case base + "-wal":
			destName = base + "-wal"
		case base + "-shm":
			destName = base + "-shm"
		default:
			continue
		}

		destPath := filepath.Join(dir, destName)
		tmp := destPath + ".restoring"
		out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("create %q: %w", tmp, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			os.Remove(tmp)
			return fmt.Errorf("write %q: %w", tmp, err)
		}
		if err := out.Close(); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("close %q: %w", tmp, err)
		}
		if err := os.Rename(tmp, destPath); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("rename %q into place: %w", tmp, err)
		}
	}

	return nil
}
