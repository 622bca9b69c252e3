//go:build integration

// Package containers starts the Postgres, Redis and Kafka backends used by
// integration tests. Each container is started on first use and shared by
// every suite in the test binary.
package containers

import (
	"sync"
	"testing"
)

// Manager hands out the shared containers.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	redis    *RedisContainer
	kafka    *KafkaContainer
}

var (
	manager     *Manager
	managerOnce sync.Once
)

// GetManager returns the process-wide manager.
func GetManager() *Manager {
	managerOnce.Do(func() { manager = &Manager{} })
	return manager
}

func shared[C any](t *testing.T, mu *sync.Mutex, slot **C, start func(*testing.T) *C) *C {
	t.Helper()
	mu.Lock()
	defer mu.Unlock()
	if *slot == nil {
		*slot = start(t)
	}
	return *slot
}

// GetPostgres returns a migrated Postgres container.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return shared(t, &m.mu, &m.postgres, NewPostgresContainer)
}

// GetRedis returns a Redis container.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return shared(t, &m.mu, &m.redis, NewRedisContainer)
}

// GetKafka returns a Redpanda container speaking the Kafka protocol.
func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return shared(t, &m.mu, &m.kafka, NewKafkaContainer)
}
