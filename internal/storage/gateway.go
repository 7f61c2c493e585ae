// Package storage moves recording blobs in and out of the object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned by Download when the named blob does not exist.
var ErrNotFound = errors.New("blob not found")

// Gateway uploads and downloads named blobs. Both calls are fallible network
// operations; callers decide whether to retry.
type Gateway interface {
	Upload(ctx context.Context, name string, body io.Reader, contentType string) (string, error)
	Download(ctx context.Context, name string) (io.ReadCloser, error)
}

// ValidateName rejects names that could escape the bucket or directory.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("blob name is empty")
	}
	if strings.ContainsAny(name, `/\`) || name != path.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("invalid blob name %q", name)
	}
	return nil
}
