// Package fs resolves program paths to image bytes.
//
// Sources are interchangeable: the kernel only sees FileSystem. A missing
// path is always reported with an error wrapping io/fs.ErrNotExist so the
// kernel can tell "not found" apart from a broken source.
package fs

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"strings"
)

// INode is a resolved program image.
type INode interface {
	ReadAll(ctx context.Context) ([]byte, error)
}

// FileSystem resolves paths to inodes.
type FileSystem interface {
	Lookup(ctx context.Context, path string) (INode, error)
}

// CleanPath normalizes a program path to the slash-separated, rootless form
// used as a key by every source. It returns "" for paths that escape the root.
func CleanPath(path string) string {
	p := strings.Trim(strings.TrimSpace(path), "/")
	if p == "" || !iofs.ValidPath(p) {
		return ""
	}
	return p
}

func notExist(path string) error {
	return fmt.Errorf("lookup %q: %w", path, iofs.ErrNotExist)
}

// bytesNode is an inode whose contents are already in memory.
type bytesNode []byte

func (b bytesNode) ReadAll(context.Context) ([]byte, error) {
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Chain tries each source in order; the first one that resolves wins.
// Errors other than "not found" stop the search.
type Chain []FileSystem

// Lookup implements FileSystem.
func (c Chain) Lookup(ctx context.Context, path string) (INode, error) {
	for _, src := range c {
		node, err := src.Lookup(ctx, path)
		if err == nil {
			return node, nil
		}
		if !errors.Is(err, iofs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, notExist(path)
}
