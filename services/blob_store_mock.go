package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
)

// ErrMockUnavailable is returned by MockBlobStore while it is failing
var ErrMockUnavailable = errors.New("mock blob store unavailable")

// MockBlobStore is an in-memory BlobStore for testing
type MockBlobStore struct {
	files   map[string][]byte
	failing bool
	puts    int
	mu      sync.RWMutex
}

// NewMockBlobStore creates a new mock blob store
func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{
		files: make(map[string][]byte),
	}
}

// SetAsMockForTesting sets this mock as the global blob store instance for testing
func (m *MockBlobStore) SetAsMockForTesting() {
	SetBlobStore(m)
}

// SetFailing makes every following Put fail
func (m *MockBlobStore) SetFailing(failing bool) {
	m.mu.Lock()
	m.failing = failing
	m.mu.Unlock()
}

// Put simulates uploading a file
func (m *MockBlobStore) Put(_ context.Context, content []byte, fileName, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.puts++
	if m.failing {
		return "", ErrMockUnavailable
	}

	key := fmt.Sprintf("uploads/mock-%d-%s", m.puts, fileName)
	m.files[key] = append([]byte(nil), content...)
	return key, nil
}

// URL simulates generating a presigned URL
func (m *MockBlobStore) URL(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	_, exists := m.files[key]
	m.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("file not found in mock store: %s", key)
	}
	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?X-Amz-Expires=3600", url.PathEscape(key)), nil
}

// PutCalls returns how many times Put was called
func (m *MockBlobStore) PutCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// FileExists checks if a file exists in mock storage
func (m *MockBlobStore) FileExists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.files[key]
	return exists
}

// Content returns the stored bytes of key
func (m *MockBlobStore) Content(key string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files[key]
}
