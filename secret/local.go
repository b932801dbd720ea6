package secret

import (
	"context"
	"sync"
)

// Local is the in-process provider used in local mode. Values are held in
// memory only.
type Local struct {
	mu    sync.RWMutex
	store map[string]string // key: scope + "\x00" + secret key
}

// NewLocal builds an empty local vault.
func NewLocal() *Local {
	return &Local{store: make(map[string]string)}
}

func localKey(scope Scope, key string) string {
	return scope.String() + "\x00" + key
}

func (l *Local) Get(ctx context.Context, scope Scope, key string) (*Secret, error) {
	if !scope.valid() {
		return nil, ErrInvalidScope
	}
	l.mu.RLock()
	value, ok := l.store[localKey(scope, key)]
	l.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &Secret{Key: key, Value: value, Scope: scope}, nil
}

func (l *Local) Set(ctx context.Context, secret Secret) error {
	if !secret.Scope.valid() {
		return ErrInvalidScope
	}
	l.mu.Lock()
	l.store[localKey(secret.Scope, secret.Key)] = secret.Value
	l.mu.Unlock()
	return nil
}

func (l *Local) Delete(ctx context.Context, scope Scope, key string) (bool, error) {
	if !scope.valid() {
		return false, ErrInvalidScope
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	k := localKey(scope, key)
	_, ok := l.store[k]
	delete(l.store, k)
	return ok, nil
}
