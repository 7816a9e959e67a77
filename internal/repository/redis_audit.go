package repository

import (
	"context"
	"encoding/json"

	"github.com/usexrp/agentwallet/internal/model"
)

// RedisAuditRepo mirrors audit entries into a capped Redis list, newest first.
type RedisAuditRepo struct {
	client  *RedisClient
	listKey string
	listMax int64
}

func NewRedisAuditRepo(client *RedisClient, listKey string, listMax int) *RedisAuditRepo {
	if listKey == "" {
		listKey = "agentwallet:audit"
	}
	if listMax <= 0 {
		listMax = 10000
	}
	return &RedisAuditRepo{
		client:  client,
		listKey: listKey,
		listMax: int64(listMax),
	}
}

func (r *RedisAuditRepo) Insert(ctx context.Context, entry *model.AuditLog) error {
	if entry == nil {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pipe := r.client.Client.TxPipeline()
	pipe.LPush(ctx, r.listKey, payload)
	pipe.LTrim(ctx, r.listKey, 0, r.listMax-1)
	_, err = pipe.Exec(ctx)
	return err
}

// List returns up to limit entries, newest first.
func (r *RedisAuditRepo) List(ctx context.Context, limit int) ([]*model.AuditLog, error) {
	if limit <= 0 || int64(limit) > r.listMax {
		limit = 100
	}
	items, err := r.client.Client.LRange(ctx, r.listKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	results := make([]*model.AuditLog, 0, len(items))
	for _, raw := range items {
		var entry model.AuditLog
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		results = append(results, &entry)
	}
	return results, nil
}
