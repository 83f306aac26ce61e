package registryservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const callRegistryKeyFormat = "callvox:callRegistry:%s"

// RedisCallRegistry reads the call records the control plane keeps in Redis.
// One hash per call, keyed by correlation id, with the fields below.
type RedisCallRegistry struct {
	rc     *redis.Client
	logger *logrus.Entry
}

const (
	fieldConversationId   = "conversation_id"
	fieldCallConnectionId = "call_connection_id"
)

func NewRedisCallRegistry(rc *redis.Client, logger *logrus.Logger) *RedisCallRegistry {
	return &RedisCallRegistry{
		rc:     rc,
		logger: logger.WithField("service", "call_registry"),
	}
}

func (s *RedisCallRegistry) Lookup(ctx context.Context, correlationId string) (*CallRecord, error) {
	key := fmt.Sprintf(callRegistryKeyFormat, correlationId)
	fields, err := s.rc.HGetAll(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	return &CallRecord{
		CorrelationId:    correlationId,
		ConversationId:   fields[fieldConversationId],
		CallConnectionId: fields[fieldCallConnectionId],
	}, nil
}
