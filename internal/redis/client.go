package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mossy-p/castiq/config"
	"github.com/mossy-p/castiq/internal/models"
	"github.com/mossy-p/castiq/internal/store"
	"github.com/redis/go-redis/v9"
)

const (
	onlineKey = "peers:online"
	jobPrefix = "job:"
)

// Store keeps presence and job records in Redis.
type Store struct {
	client *redis.Client
}

// Connect initializes the Redis client and verifies it answers.
func Connect(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewStore(client), nil
}

// NewStore wraps an existing client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) MarkOnline(ctx context.Context, peerID string) error {
	return s.client.SAdd(ctx, onlineKey, peerID).Err()
}

func (s *Store) MarkOffline(ctx context.Context, peerID string) error {
	return s.client.SRem(ctx, onlineKey, peerID).Err()
}

func (s *Store) IsOnline(ctx context.Context, peerID string) (bool, error) {
	return s.client.SIsMember(ctx, onlineKey, peerID).Result()
}

// ClearPresence drops the online set, used at startup since no peer survives a restart.
func (s *Store) ClearPresence(ctx context.Context) error {
	return s.client.Del(ctx, onlineKey).Err()
}

func (s *Store) SaveJob(ctx context.Context, job models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return s.client.Set(ctx, jobPrefix+job.ID, data, store.JobTTL).Err()
}

func (s *Store) GetJob(ctx context.Context, id string) (models.Job, error) {
	data, err := s.client.Get(ctx, jobPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Job{}, store.ErrJobNotFound
		}
		return models.Job{}, fmt.Errorf("get job: %w", err)
	}

	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return models.Job{}, fmt.Errorf("failed to parse job data: %w", err)
	}
	return job, nil
}
