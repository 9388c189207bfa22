//go:build integration

// Package containers starts the backing services used by integration tests
// (Postgres for credential records, Redis for the verification cache, Kafka
// for audit events). Each service is started at most once per test binary.
package containers

import (
	"sync"
	"testing"
)

// Manager lazily starts and hands out shared containers.
type Manager struct {
	postgres lazy[*PostgresContainer]
	redis    lazy[*RedisContainer]
	kafka    lazy[*KafkaContainer]
}

type lazy[T any] struct {
	mu  sync.Mutex
	val T
	ok  bool
}

// get starts the resource on first use. A failed start is retried by the
// next caller rather than cached.
func (l *lazy[T]) get(t *testing.T, start func(*testing.T) T) T {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ok {
		l.val = start(t)
		l.ok = true
	}
	return l.val
}

var shared = &Manager{}

// GetManager returns the process-wide manager.
func GetManager() *Manager { return shared }

func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return m.postgres.get(t, NewPostgresContainer)
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return m.redis.get(t, NewRedisContainer)
}

func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return m.kafka.get(t, NewKafkaContainer)
}
