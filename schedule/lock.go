package schedule

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// Lock guards a run against overlapping runs.
type Lock interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// LocalLock guards runs inside one process.
type LocalLock struct {
	held atomic.Bool
}

// TryLock implements Lock.
func (l *LocalLock) TryLock(context.Context) (bool, error) {
	return l.held.CompareAndSwap(false, true), nil
}

// Unlock implements Lock.
func (l *LocalLock) Unlock(context.Context) error {
	l.held.Store(false)
	return nil
}

// MemcacheLock guards runs across processes sharing a memcache server.
// The key expires after ttl so a crashed holder cannot block runs forever;
// ttl must therefore exceed the longest run.
type MemcacheLock struct {
	client *memcache.Client
	key    string
	token  string
	ttl    time.Duration
}

// releaseTTL bounds how long a released key lingers as a tombstone if the
// final delete fails.
const releaseTTL = 5 * time.Second

// NewMemcacheLock returns a lock stored under key on the server at addr.
func NewMemcacheLock(addr, key string, ttl time.Duration) *MemcacheLock {
	host, _ := os.Hostname()
	return &MemcacheLock{
		client: memcache.New(addr),
		key:    key,
		token:  fmt.Sprintf("%s:%d", host, os.Getpid()),
		ttl:    ttl,
	}
}

// TryLock implements Lock.
func (l *MemcacheLock) TryLock(context.Context) (bool, error) {
	err := l.client.Add(&memcache.Item{
		Key:        l.key,
		Value:      []byte(l.token),
		Expiration: int32(l.ttl.Seconds()),
	})
	if errors.Is(err, memcache.ErrNotStored) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Unlock implements Lock. Only the holder's own key is removed: the key is
// first swapped for a short-lived tombstone with CompareAndSwap, so a key
// that expired and was taken by another process in the meantime is left
// alone.
func (l *MemcacheLock) Unlock(context.Context) error {
	item, err := l.client.Get(l.key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	if err != nil {
		return err
	}
	if string(item.Value) != l.token {
		return nil
	}

	item.Value = []byte("released:" + l.token)
	item.Expiration = int32(releaseTTL.Seconds())
	switch err := l.client.CompareAndSwap(item); {
	case errors.Is(err, memcache.ErrCASConflict), errors.Is(err, memcache.ErrNotStored), errors.Is(err, memcache.ErrCacheMiss):
		return nil
	case err != nil:
		return err
	}

	if err := l.client.Delete(l.key); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return err
	}
	return nil
}
