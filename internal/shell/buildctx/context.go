// Package buildctx materializes the Docker build context for a recipe.
//
// The context is an exhaustive tar of the source tree - every file, at its
// relative path, with no ignore mechanism - plus the generated Dockerfile
// injected as an extra entry so the caller's tree is never touched.
package buildctx

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrSourceMissing is returned when the source root does not exist.
	ErrSourceMissing = errors.New("source path does not exist")

	// ErrSourceNotDir is returned when the source root is not a directory.
	ErrSourceNotDir = errors.New("source path is not a directory")
)

// =============================================================================
// Context Assembly
// =============================================================================

// Tar streams a tar archive of the full tree rooted at root, followed by the
// extra in-memory files (generated Dockerfile). Extra entries come last, so
// they win over same-named files in the tree.
//
// The returned ReadCloser reports any walk or tar error on Read; closing it
// early aborts the walk.
func Tar(root string, extra map[string][]byte) (io.ReadCloser, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, root)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotDir, root)
	}

	pr, pw := io.Pipe()
	go func() {
		tw := tar.NewWriter(pw)
		err := writeTree(tw, root)
		if err == nil {
			err = writeExtra(tw, extra)
		}
		if cerr := tw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	return pr, nil
}

func writeTree(tw *tar.Writer, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = rel
		if d.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
}

func writeExtra(tw *tar.Writer, extra map[string][]byte) error {
	for _, name := range sortedKeys(extra) {
		content := extra[name]
		hdr := &tar.Header{
			Name:    name,
			Mode:    0644,
			Size:    int64(len(content)),
			ModTime: time.Unix(0, 0),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write(content); err != nil {
			return err
		}
	}
	return nil
}
