package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/citystash/pickup-sms/models"
	"github.com/citystash/pickup-sms/utils"
	"github.com/redis/go-redis/v9"
)

// OptOutRepositoryImpl implements OptOutRepository on Redis. Each opt-out is
// one key under the configured prefix, so every operation the pipeline and
// webhook perform is a single atomic key operation.
type OptOutRepositoryImpl struct {
	client *redis.Client
	prefix string
}

func NewOptOutRepository(client *redis.Client, prefix string) OptOutRepository {
	if prefix == "" {
		prefix = "pickupsms:optout:"
	}
	return &OptOutRepositoryImpl{client: client, prefix: prefix}
}

func (r *OptOutRepositoryImpl) key(phone string) string {
	return r.prefix + phone
}

func (r *OptOutRepositoryImpl) IsOptedOut(ctx context.Context, phone string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(phone)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check opt-out for %s: %w", phone, err)
	}
	return n > 0, nil
}

// Add upserts the record: opting out an already opted-out phone refreshes
// source, note and timestamp.
func (r *OptOutRepositoryImpl) Add(ctx context.Context, phone string, source models.OptOutSource, note string) error {
	rec := models.OptOut{
		Phone:     phone,
		Source:    source,
		Note:      note,
		CreatedAt: utils.UTCNow(),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal opt-out record: %w", err)
	}
	if err := r.client.Set(ctx, r.key(phone), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to store opt-out for %s: %w", phone, err)
	}
	return nil
}

func (r *OptOutRepositoryImpl) Remove(ctx context.Context, phone string) (bool, error) {
	n, err := r.client.Del(ctx, r.key(phone)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to remove opt-out for %s: %w", phone, err)
	}
	return n > 0, nil
}

func (r *OptOutRepositoryImpl) List(ctx context.Context, limit int) ([]*models.OptOut, error) {
	return r.scan(ctx, r.prefix+"*", limit)
}

func (r *OptOutRepositoryImpl) Search(ctx context.Context, substring string, limit int) ([]*models.OptOut, error) {
	substring = strings.TrimSpace(substring)
	if substring == "" {
		return r.List(ctx, limit)
	}
	return r.scan(ctx, r.prefix+"*"+substring+"*", limit)
}

func (r *OptOutRepositoryImpl) scan(ctx context.Context, match string, limit int) ([]*models.OptOut, error) {
	if limit <= 0 {
		limit = 100
	}

	var keys []string
	var cursor uint64
	for {
		batch, next, err := r.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan opt-outs: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 || len(keys) >= limit {
			break
		}
	}
	sort.Strings(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load opt-outs: %w", err)
	}

	out := make([]*models.OptOut, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // key deleted between SCAN and MGET
		}
		var rec models.OptOut
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}
