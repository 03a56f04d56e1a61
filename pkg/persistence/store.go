package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/wizard/internal/logging"
	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/ports"
)

// Store is the typed view of the tour's persisted fields.
// Loads never fail on content: absent or unreadable values yield the zero value
// with ok=false. Only storage I/O errors are returned.
type Store struct {
	storage ports.Storage
	logger  *slog.Logger
}

// NewStore wraps storage. A nil logger discards output.
func NewStore(storage ports.Storage, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{storage: storage, logger: logger}
}

// Storage returns the wrapped backend.
func (s *Store) Storage() ports.Storage {
	return s.storage
}

func (s *Store) load(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.storage.Get(ctx, key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}

	if _, err := Decode(raw, v); err != nil {
		if errors.Is(err, ErrNewerSchema) {
			s.logger.Warn("persisted value written by a newer version, using default", "key", key, "err", err)
		} else {
			s.logger.Warn("persisted value unreadable, using default", "key", key, "err", err)
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) save(ctx context.Context, key string, v any) error {
	encoded, err := Encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.storage.Set(ctx, key, encoded); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// LoadState reads a machine state. A value that is not a valid path reads as absent.
func (s *Store) LoadState(ctx context.Context, key string) (domain.StateValue, bool, error) {
	var v domain.StateValue
	ok, err := s.load(ctx, key, &v)
	if err != nil || !ok || v.IsZero() {
		return nil, false, err
	}
	return v, true, nil
}

// SaveState writes a machine state in its nested JSON form.
func (s *Store) SaveState(ctx context.Context, key string, v domain.StateValue) error {
	return s.save(ctx, key, v)
}

// LoadStrings reads a string list (feature list, history, completed features).
func (s *Store) LoadStrings(ctx context.Context, key string) ([]string, bool, error) {
	var v []string
	ok, err := s.load(ctx, key, &v)
	if err != nil || !ok {
		return nil, false, err
	}
	return v, true, nil
}

// SaveStrings writes a string list. A nil list is written as [].
func (s *Store) SaveStrings(ctx context.Context, key string, v []string) error {
	if v == nil {
		v = []string{}
	}
	return s.save(ctx, key, v)
}

// LoadString reads a single string (resume URL or route).
func (s *Store) LoadString(ctx context.Context, key string) (string, bool, error) {
	var v string
	ok, err := s.load(ctx, key, &v)
	if err != nil || !ok {
		return "", false, err
	}
	return v, true, nil
}

// SaveString writes a single string.
func (s *Store) SaveString(ctx context.Context, key, v string) error {
	return s.save(ctx, key, v)
}

// LoadComponentState reads the free-form component state blob.
func (s *Store) LoadComponentState(ctx context.Context, key string) (any, bool, error) {
	var v any
	ok, err := s.load(ctx, key, &v)
	if err != nil || !ok {
		return nil, false, err
	}
	return v, true, nil
}

// SaveComponentState writes the component state blob.
func (s *Store) SaveComponentState(ctx context.Context, key string, v any) error {
	return s.save(ctx, key, v)
}

// Clear removes keys, continuing past failures. All errors are returned joined.
func (s *Store) Clear(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := s.storage.Remove(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
