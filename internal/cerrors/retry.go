package cerrors

import "errors"

// RetryOnceFunc runs fn, and if it fails with a *Error whose Category
// is RetryOnce, runs it exactly one more time. This implements spec.md
// §7's StorageConflict policy ("caller retries once then logs")
// without a generic backoff loop — a lost optimistic-concurrency race
// is expected to clear on the very next attempt, not after a delay.
func RetryOnceFunc[T any](fn func() (T, error)) (T, error) {
	result, err := fn()
	if err == nil {
		return result, nil
	}

	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Category() != RetryOnce {
		return result, err
	}

	return fn()
}
