// Package backup archives the database and config into a portable
// tar.gz, and restores such archives with a path-traversal guard.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Backup writes a tar.gz archive containing a consistent snapshot of the
// database at dbPath and, when configPath is non-empty, the config file.
// Archive entries carry the base names of their sources.
func Backup(ctx context.Context, dbPath, configPath, archivePath string) error {
	if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}
		return fmt.Errorf("checking database file: %w", err)
	}

	snapDir, err := os.MkdirTemp("", "chronicle-backup-*")
	if err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	defer os.RemoveAll(snapDir)

	snapPath := filepath.Join(snapDir, filepath.Base(dbPath))
	if err := snapshotDB(ctx, dbPath, snapPath); err != nil {
		return fmt.Errorf("snapshotting database: %w", err)
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	if err := addFile(tw, snapPath, filepath.Base(dbPath)); err != nil {
		return fmt.Errorf("archiving database: %w", err)
	}
	if configPath != "" {
		if err := addFile(tw, configPath, filepath.Base(configPath)); err != nil {
			return fmt.Errorf("archiving config: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("finalizing compression: %w", err)
	}
	return out.Close()
}

// snapshotDB copies the database to dst with VACUUM INTO, which produces
// a consistent single-file snapshot even with concurrent writers.
func snapshotDB(ctx context.Context, src, dst string) error {
	db, err := sql.Open("sqlite", src)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		return fmt.Errorf("vacuum into: %w", err)
	}
	return nil
}

// addFile writes a single file to the archive under the given entry name.
func addFile(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr := &tar.Header{
		Name:    name,
		Size:    info.Size(),
		Mode:    0o644,
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
