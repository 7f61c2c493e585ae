// Package store keeps peer presence and pipeline job records.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mossy-p/castiq/internal/models"
)

// JobTTL is how long a job record stays queryable.
const JobTTL = 24 * time.Hour

var ErrJobNotFound = errors.New("job not found")

// PresenceStore mirrors which peers currently hold a signaling connection.
type PresenceStore interface {
	MarkOnline(ctx context.Context, peerID string) error
	MarkOffline(ctx context.Context, peerID string) error
	IsOnline(ctx context.Context, peerID string) (bool, error)
}

// JobStore records pipeline invocations.
type JobStore interface {
	SaveJob(ctx context.Context, job models.Job) error
	GetJob(ctx context.Context, id string) (models.Job, error)
}
