package appendstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrBackendUnavailable is returned when backend Get or Set fails
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrStorageCapacityExceeded is returned when encoded collection is too big
	// for the backend. The stored collection is left unchanged.
	ErrStorageCapacityExceeded = errors.New("storage capacity exceeded")
	// ErrDecodeFailure is returned when stored value can't be decoded
	ErrDecodeFailure = errors.New("decode failure")
	// ErrInvalidKey is returned for keys that can't be used as storage key
	ErrInvalidKey = errors.New("invalid key")
)

// Backend is a key-value store where each collection lives under its own key.
// Get returns found == false (and no error) if key was never set.
type Backend interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

type Options struct {
	// MaxValueSize is the maximum size of encoded collection, 0 means no limit
	MaxValueSize int
	// called after successful Append with the new number of records
	OnAppend func(key string, count int)
}

// Store is an append-only list of records of type T stored under Key
type Store[T comparable] struct {
	Key string

	backend Backend
	codec   Codec[T]
	opts    Options
	mu      sync.Mutex
}

// New creates a store bound to key. opts can be nil.
func New[T comparable](key string, backend Backend, codec Codec[T], opts *Options) (*Store[T], error) {
	if key == "" {
		return nil, fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	if backend == nil {
		return nil, errors.New("must provide backend")
	}
	if codec == nil {
		return nil, errors.New("must provide codec")
	}
	s := &Store[T]{
		Key:     key,
		backend: backend,
		codec:   codec,
	}
	if opts != nil {
		s.opts = *opts
	}
	if s.opts.MaxValueSize < 0 {
		return nil, fmt.Errorf("invalid MaxValueSize %d", s.opts.MaxValueSize)
	}
	return s, nil
}

// readAll must be called with s.mu held
func (s *Store[T]) readAll(ctx context.Context) ([]T, error) {
	d, found, err := s.backend.Get(ctx, s.Key)
	if err != nil {
		return nil, wrapBackendError("get", s.Key, err)
	}
	if !found || len(d) == 0 {
		return []T{}, nil
	}
	recs, err := s.codec.Unmarshal(d)
	if err != nil {
		return nil, fmt.Errorf("%w: key '%s': %w", ErrDecodeFailure, s.Key, err)
	}
	if recs == nil {
		recs = []T{}
	}
	return recs, nil
}

// List returns all records in the order they were appended.
// Returns empty (non-nil) slice if nothing was appended yet.
func (s *Store[T]) List(ctx context.Context) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll(ctx)
}

// Append adds rec at the end of the collection.
// The whole collection is re-written with a single Set.
func (s *Store[T]) Append(ctx context.Context, rec T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.readAll(ctx)
	if err != nil {
		return err
	}
	recs = append(recs, rec)
	d, err := s.codec.Marshal(recs)
	if err != nil {
		return fmt.Errorf("key '%s': failed to encode %d records: %w", s.Key, len(recs), err)
	}
	if limit := s.opts.MaxValueSize; limit > 0 && len(d) > limit {
		return fmt.Errorf("%w: key '%s': %d bytes, limit is %d", ErrStorageCapacityExceeded, s.Key, len(d), limit)
	}
	if err = s.backend.Set(ctx, s.Key, d); err != nil {
		return wrapBackendError("set", s.Key, err)
	}
	if s.opts.OnAppend != nil {
		s.opts.OnAppend(s.Key, len(recs))
	}
	return nil
}

// backends may return ErrStorageCapacityExceeded or ErrInvalidKey themselves,
// everything else is ErrBackendUnavailable
func wrapBackendError(op string, key string, err error) error {
	if errors.Is(err, ErrStorageCapacityExceeded) || errors.Is(err, ErrInvalidKey) {
		return fmt.Errorf("%s '%s': %w", op, key, err)
	}
	return fmt.Errorf("%w: %s '%s': %w", ErrBackendUnavailable, op, key, err)
}
