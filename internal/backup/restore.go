package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxEntrySize caps a single extracted file to guard against
// decompression bombs.
const maxEntrySize = 10 << 30 // 10 GiB

// Restore extracts a backup archive into targetDir. It refuses to
// overwrite existing files unless force is true, and rejects archives
// that do not contain a database file.
func Restore(_ context.Context, archivePath, targetDir string, force bool) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("decompressing archive: %w", err)
	}
	defer gr.Close()

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("creating target directory: %w", err)
	}

	tr := tar.NewReader(gr)
	foundDB := false

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading archive entry: %w", err)
		}

		destPath, err := resolveEntry(hdr.Name, targetDir)
		if err != nil {
			return err
		}

		if strings.HasSuffix(hdr.Name, ".db") {
			foundDB = true
		}

		if !force {
			if _, err := os.Stat(destPath); err == nil {
				return fmt.Errorf("file already exists (use --force to overwrite): %s", destPath)
			}
		}

		if err := writeEntry(tr, destPath, hdr); err != nil {
			return fmt.Errorf("extracting %s: %w", hdr.Name, err)
		}
	}

	if !foundDB {
		return fmt.Errorf("invalid backup: archive does not contain a .db file")
	}

	return nil
}

// resolveEntry maps a tar entry name to a destination path, rejecting
// names that would escape the target directory.
func resolveEntry(name, targetDir string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("path traversal detected: absolute path %q", name)
	}

	cleaned := filepath.Clean(name)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %q", name)
	}

	dest := filepath.Join(targetDir, cleaned)
	absTarget, err := filepath.Abs(targetDir)
	if err != nil {
		return "", fmt.Errorf("resolving target directory: %w", err)
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return "", fmt.Errorf("resolving destination path: %w", err)
	}
	if absDest != absTarget && !strings.HasPrefix(absDest, absTarget+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %q resolves outside target", name)
	}

	return dest, nil
}

// writeEntry materializes a single tar entry on disk. Entry types other
// than regular files and directories (symlinks, devices) are skipped.
func writeEntry(tr *tar.Reader, destPath string, hdr *tar.Header) error {
	mode := os.FileMode(hdr.Mode & 0o777) //nolint:gosec // G115: mode bits fit in uint32
	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(destPath, mode)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return err
		}
		out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = io.Copy(out, io.LimitReader(tr, maxEntrySize))
		return err
	default:
		return nil
	}
}
