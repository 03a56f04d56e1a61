package runtime

import (
	"errors"
	"fmt"

	"github.com/aretw0/wizard/pkg/domain"
)

// StorageError reports a failed read or write of a persisted key.
// The in-memory tour has already moved on when it is returned.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (c *Controller) storageError(op, key string, err error) error {
	c.logger.Error("storage failure", "op", op, "key", key, "err", err)
	return &StorageError{Op: op, Key: key, Err: err}
}

func isUnknownFeature(err error) bool {
	return errors.Is(err, domain.ErrUnknownFeature)
}

func joinErrors(errs ...error) error {
	return errors.Join(errs...)
}
