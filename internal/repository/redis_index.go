package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iconidentify/vidgrab/internal/domain"
	"github.com/iconidentify/vidgrab/internal/pacing"
)

// RedisIndex implements ArtifactIndex with one hash per artifact and a
// sorted set of job ids scored by creation time.
type RedisIndex struct {
	rdb    *redis.Client
	prefix string
}

// RedisOptions configures the Redis index.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisIndex connects to Redis and verifies the connection.
func NewRedisIndex(ctx context.Context, opts RedisOptions) (*RedisIndex, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	_, err := pacing.Retry(ctx, pacing.DefaultBackoff(), func(ctx context.Context) (string, error) {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return rdb.Ping(pingCtx).Result()
	})
	if err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	return NewRedisIndexWithClient(rdb, opts.KeyPrefix), nil
}

// NewRedisIndexWithClient wraps an existing client.
func NewRedisIndexWithClient(rdb *redis.Client, prefix string) *RedisIndex {
	if prefix == "" {
		prefix = "vidgrab"
	}
	return &RedisIndex{rdb: rdb, prefix: prefix}
}

func (r *RedisIndex) artifactKey(id domain.JobID) string {
	return fmt.Sprintf("%s:artifact:%s", r.prefix, id)
}

func (r *RedisIndex) setKey() string {
	return r.prefix + ":artifacts"
}

func (r *RedisIndex) Put(ctx context.Context, a domain.Artifact) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.artifactKey(a.JobID), map[string]any{
			"job_id":     string(a.JobID),
			"filename":   a.Filename,
			"size":       a.Size,
			"title":      a.Title,
			"source_url": a.SourceURL,
			"created_at": a.CreatedAt.UnixNano(),
		})
		pipe.ZAdd(ctx, r.setKey(), redis.Z{
			Score:  float64(a.CreatedAt.UnixNano()),
			Member: string(a.JobID),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	return nil
}

func (r *RedisIndex) Get(ctx context.Context, id domain.JobID) (*domain.Artifact, error) {
	fields, err := r.rdb.HGetAll(ctx, r.artifactKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrArtifactNotFound
	}
	return artifactFromHash(fields)
}

func (r *RedisIndex) Delete(ctx context.Context, id domain.JobID) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.artifactKey(id))
		pipe.ZRem(ctx, r.setKey(), string(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

func (r *RedisIndex) List(ctx context.Context) ([]domain.Artifact, error) {
	ids, err := r.rdb.ZRevRange(ctx, r.setKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	out := make([]domain.Artifact, 0, len(ids))
	for _, id := range ids {
		a, err := r.Get(ctx, domain.JobID(id))
		if errors.Is(err, domain.ErrArtifactNotFound) {
			// Hash expired or was removed out of band.
			r.rdb.ZRem(ctx, r.setKey(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r *RedisIndex) Close() error {
	return r.rdb.Close()
}

func artifactFromHash(fields map[string]string) (*domain.Artifact, error) {
	size, err := strconv.ParseInt(fields["size"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse size: %w", err)
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &domain.Artifact{
		JobID:     domain.JobID(fields["job_id"]),
		Filename:  fields["filename"],
		Size:      size,
		Title:     fields["title"],
		SourceURL: fields["source_url"],
		CreatedAt: time.Unix(0, created),
	}, nil
}
