// Package memory provides an in-memory KV adapter for tests and ephemeral
// deployments.
package memory

import (
	"context"
	"sync"

	"github.com/feedlab/feedlab/internal/core/ports"
	"github.com/feedlab/feedlab/internal/storage"
)

// KV is an in-memory implementation of ports.KV.
type KV struct {
	mu   sync.RWMutex
	data map[string]string
	hub  storage.WatchHub
}

var _ ports.KV = (*KV)(nil)

// New creates an empty in-memory KV.
func New() *KV {
	return &KV{data: make(map[string]string)}
}

func (kv *KV) Get(ctx context.Context, key string) (string, bool, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	v, ok := kv.data[key]
	return v, ok, nil
}

func (kv *KV) Set(ctx context.Context, key, value string) error {
	kv.mu.Lock()
	kv.data[key] = value
	kv.mu.Unlock()

	kv.hub.Notify(key, value)
	return nil
}

func (kv *KV) Delete(ctx context.Context, key string) error {
	kv.mu.Lock()
	delete(kv.data, key)
	kv.mu.Unlock()

	kv.hub.Notify(key, "")
	return nil
}

func (kv *KV) Watch(key string, fn func(value string)) func() {
	return kv.hub.Watch(key, fn)
}

func (kv *KV) Close() error {
	return nil
}
