package storage

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"leadgen/internal/model"
)

const (
	redisEmailKeyPrefix = "leads:email:"
	redisOrderKey       = "leads:order"
)

// RedisStore keys each lead by its lower-cased email with SETNX and
// records arrival order in a list of lead IDs.
type RedisStore struct {
	client *redis.Client
	log    logrus.FieldLogger
}

func NewRedisStore(client *redis.Client, log logrus.FieldLogger) *RedisStore {
	return &RedisStore{client: client, log: log}
}

var _ LeadStore = (*RedisStore)(nil)

func (s *RedisStore) Insert(ctx context.Context, lead *model.Lead) (bool, error) {
	payload, err := json.Marshal(lead)
	if err != nil {
		return false, errors.Wrap(err, "encode lead")
	}

	ok, err := s.client.SetNX(ctx, redisEmailKeyPrefix+EmailKey(lead.Email), payload, 0).Result()
	if err != nil {
		return false, errors.Wrap(err, "setnx lead")
	}
	if !ok {
		return false, nil
	}

	// The record is stored once SETNX succeeds; a failed push only
	// loses its position in the order list.
	if err := s.client.RPush(ctx, redisOrderKey, lead.ID).Err(); err != nil {
		s.log.WithError(err).WithField("lead_id", lead.ID).Warn("lead stored without order entry")
	}
	return true, nil
}

func (s *RedisStore) FindByEmail(ctx context.Context, email string) (*model.Lead, error) {
	payload, err := s.client.Get(ctx, redisEmailKeyPrefix+EmailKey(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get lead")
	}

	var l model.Lead
	if err := json.Unmarshal(payload, &l); err != nil {
		return nil, errors.Wrap(err, "decode lead")
	}
	return &l, nil
}

// OrderedIDs returns lead IDs in arrival order.
func (s *RedisStore) OrderedIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.LRange(ctx, redisOrderKey, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list lead order")
	}
	return ids, nil
}
