package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"clinic-agent/internal/domain"
)

const defaultSessionTTL = 24 * time.Hour

// RedisSessionStore persists sessions as JSON values with a sliding TTL.
type RedisSessionStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) (*RedisSessionStore, error) {
	if client == nil {
		return nil, errors.New("repository: redis client must not be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("clinic-agent/repository/sessions")
	}
	return &RedisSessionStore{redis: client, ttl: ttl, tracer: tracer}, nil
}

func (s *RedisSessionStore) Load(ctx context.Context, id string) (domain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "sessions.load")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.NewSession(id), nil
		}
		span.RecordError(err)
		return domain.Session{}, fmt.Errorf("repository: load session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		span.RecordError(err)
		return domain.Session{}, fmt.Errorf("repository: decode session: %w", err)
	}
	sess.ID = id
	return sess, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, sess domain.Session) error {
	ctx, span := s.tracer.Start(ctx, "sessions.save")
	defer span.End()

	if strings.TrimSpace(sess.ID) == "" {
		return errors.New("repository: session id is required")
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("repository: encode session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(sess.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("repository: persist session: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}
