// Package cache wraps a catalog.Directory with a Redis read-through cache.
// Model names change rarely; scope resolution reads them constantly.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"modelgov/internal/catalog"
)

const keyPrefix = "modelgov:model_name:"

// Directory is a read-through name cache. Redis failures degrade to the
// underlying directory, never to an error: names are best-effort data.
type Directory struct {
	next   catalog.Directory
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func New(next catalog.Directory, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Directory {
	return &Directory{next: next, client: client, ttl: ttl, logger: logger}
}

func (d *Directory) Names(ctx context.Context, modelIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	if len(modelIDs) == 0 {
		return map[uuid.UUID]string{}, nil
	}

	names := make(map[uuid.UUID]string, len(modelIDs))
	missing := modelIDs

	if d.client != nil {
		keys := make([]string, len(modelIDs))
		for i, id := range modelIDs {
			keys[i] = keyPrefix + id.String()
		}
		cached, err := d.client.MGet(ctx, keys...).Result()
		if err != nil {
			d.warn(ctx, "name cache read failed", err)
		} else {
			missing = make([]uuid.UUID, 0, len(modelIDs))
			for i, raw := range cached {
				if name, ok := raw.(string); ok && name != "" {
					names[modelIDs[i]] = name
				} else {
					missing = append(missing, modelIDs[i])
				}
			}
		}
	}

	if len(missing) == 0 {
		return names, nil
	}

	fetched, err := d.next.Names(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, name := range fetched {
		names[id] = name
	}

	if d.client != nil && len(fetched) > 0 {
		pipe := d.client.Pipeline()
		for id, name := range fetched {
			pipe.Set(ctx, keyPrefix+id.String(), name, d.ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			d.warn(ctx, "name cache write failed", err)
		}
	}
	return names, nil
}

func (d *Directory) warn(ctx context.Context, msg string, err error) {
	if d.logger != nil {
		d.logger.WarnContext(ctx, msg, "error", err.Error())
	}
}
