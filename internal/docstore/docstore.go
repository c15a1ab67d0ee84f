// Package docstore is a small path-keyed document store. Values live at
// slash-separated paths such as "class/{id}/students/{name}"; a path may
// hold a value and have children at the same time.
package docstore

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidPath = errors.New("invalid document path")
)

// Store is implemented by the memory and Postgres backends.
type Store interface {
	Get(ctx context.Context, path string) (string, error)
	Set(ctx context.Context, path, value string) error
	// Update writes every path in values atomically.
	Update(ctx context.Context, values map[string]string) error
	// Children returns the values directly below prefix keyed by the last
	// path segment. Deeper descendants are not included.
	Children(ctx context.Context, prefix string) (map[string]string, error)
	// Delete removes path and everything below it. Missing paths are not an error.
	Delete(ctx context.Context, path string) error
	// DeleteAll removes every path and its subtree atomically. Nothing is
	// removed when a path is invalid.
	DeleteAll(ctx context.Context, paths ...string) error
}

// Path joins segments with "/". Segments must be non-empty and must not
// contain a slash.
func Path(segments ...string) (string, error) {
	if len(segments) == 0 {
		return "", ErrInvalidPath
	}
	for _, s := range segments {
		if s == "" || strings.Contains(s, "/") {
			return "", ErrInvalidPath
		}
	}
	return strings.Join(segments, "/"), nil
}

// MustPath is Path for segments already known to be valid.
func MustPath(segments ...string) string {
	p, err := Path(segments...)
	if err != nil {
		panic(err)
	}
	return p
}

func validPath(p string) bool {
	if p == "" {
		return false
	}
	_, err := Path(strings.Split(p, "/")...)
	return err == nil
}

// childName returns the segment directly below prefix, if path is a child.
func childName(prefix, path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, prefix+"/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

func isUnder(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+"/")
}
