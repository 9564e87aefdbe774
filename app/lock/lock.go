package lock

import (
	"context"
	"errors"
)

var ErrNilCallback = errors.New("lock: callback not provided")

// Locker runs fn while holding an exclusive lock on key. The lock is released
// when fn returns, whatever the result.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}
