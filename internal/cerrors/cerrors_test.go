package cerrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/combiner/internal/cerrors"
)

func TestKind_Category(t *testing.T) {
	assert.Equal(t, cerrors.Fatal, cerrors.ConfigInvalid.Category())
	assert.Equal(t, cerrors.RetryOnce, cerrors.StorageConflict.Category())
	assert.Equal(t, cerrors.PerEvent, cerrors.FieldNotFound.Category())
	assert.Equal(t, cerrors.PerEvent, cerrors.RuleEvaluation.Category())
}

func TestError_UnwrapAndAs(t *testing.T) {
	base := errors.New("boom")
	err := cerrors.New(cerrors.Messaging, "rabbitmq:orders", base)

	var target *cerrors.Error
	require.True(t, errors.As(err, &target))
	assert.Equal(t, cerrors.Messaging, target.Kind)
	assert.ErrorIs(t, err, base)
}

func TestFatalOnIo_Escalates(t *testing.T) {
	err := cerrors.New(cerrors.Io, "expiry file", errors.New("disk full"))
	escalated := cerrors.FatalOnIo(err)
	assert.Equal(t, cerrors.Fatal, escalated.Category())
}

func TestFatalOnIo_NoopForOtherKinds(t *testing.T) {
	err := cerrors.New(cerrors.Render, "rule:r1", errors.New("missing field"))
	unchanged := cerrors.FatalOnIo(err)
	assert.Equal(t, cerrors.PerEvent, unchanged.Category())
}

func TestRetryOnceFunc_RetriesStorageConflictOnce(t *testing.T) {
	attempts := 0
	result, err := cerrors.RetryOnceFunc(func() (int, error) {
		attempts++
		if attempts == 1 {
			return 0, cerrors.New(cerrors.StorageConflict, "k1", errors.New("version mismatch"))
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 2, attempts)
}

func TestRetryOnceFunc_DoesNotRetryNonRetryable(t *testing.T) {
	attempts := 0
	_, err := cerrors.RetryOnceFunc(func() (int, error) {
		attempts++
		return 0, cerrors.New(cerrors.Render, "r1", errors.New("nope"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryOnceFunc_StopsAfterSecondFailure(t *testing.T) {
	attempts := 0
	_, err := cerrors.RetryOnceFunc(func() (int, error) {
		attempts++
		return 0, cerrors.New(cerrors.StorageConflict, "k1", errors.New("still conflicting"))
	})
	require.Error(t, err)
	assert.Equal(t, 2, attempts)
}
