// ABOUTME: Key-value persistence sinks for serialized history records
// ABOUTME: Sink is the Get/Set boundary; Memory is the in-process implementation

// Package kv provides the external key-value sinks the history engine
// persists its serialized state to.
package kv

import (
	"errors"
	"sync"
)

// ErrClosed is returned by sinks used after Close.
var ErrClosed = errors.New("kv: sink closed")

// Sink is a string key-value store.
// Get reports ok=false without error when the key is absent.
type Sink interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// Memory is a goroutine-safe in-memory Sink.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get returns the value stored under key.
func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set stores value under key.
func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Keys returns the number of stored keys.
func (m *Memory) Keys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
