// Package fsutil copies files and directory trees.
package fsutil

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyTree copies regular files and directories from src into dst.
// src itself may be a symlink and must resolve to a directory. Symlinks
// and sockets below it (browser singleton locks) are skipped.
func CopyTree(src, dst string) (int, error) {
	root, err := filepath.EvalSymlinks(src)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", src, err)
	}
	src = root

	info, err := os.Stat(src)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%s is not a directory", src)
	}

	copied := 0

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type().IsRegular():
			copied++

			return CopyFile(path, target)
		default:
			return nil
		}
	})

	return copied, err
}

// CopyFile copies src to dst, keeping the permission bits.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()

		return fmt.Errorf("copy %s: %w", src, err)
	}

	return out.Close()
}
