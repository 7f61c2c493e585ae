// Package pipeline renders and transcribes uploaded recordings and records
// every invocation as a job.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mossy-p/castiq/internal/apperr"
	"github.com/mossy-p/castiq/internal/storage"
	"github.com/rs/zerolog/log"
)

// workspace is the private temp directory of one job.
type workspace struct {
	dir string
}

// newWorkspace creates <base>/castiq-<jobID>. The caller must defer cleanup.
func newWorkspace(base, jobID string) (*workspace, error) {
	dir := filepath.Join(base, "castiq-"+jobID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create job workspace: %w", err)
	}
	return &workspace{dir: dir}, nil
}

func (w *workspace) path(name string) string {
	return filepath.Join(w.dir, name)
}

func (w *workspace) cleanup() {
	if err := os.RemoveAll(w.dir); err != nil {
		log.Warn().Err(err).Str("dir", w.dir).Msg("Failed to remove job workspace")
	}
}

// fetch copies the named blob into dst.
func fetch(ctx context.Context, gw storage.Gateway, name, dst string) error {
	rc, err := gw.Download(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &apperr.ResourceMissingError{Kind: "recording", Name: name, Err: err}
		}
		return fmt.Errorf("download %s: %w", name, err)
	}
	defer rc.Close()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create temp input: %w", err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return fmt.Errorf("download %s: %w", name, err)
	}
	return f.Close()
}
