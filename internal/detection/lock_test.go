package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanLockSingleHolder(t *testing.T) {
	t.Parallel()

	lock := newTestLock(t)
	ctx := t.Context()

	release, err := lock.Acquire(ctx, 42)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, 42)
	assert.ErrorIs(t, err, ErrScanBusy)

	// A different guild is unaffected.
	otherRelease, err := lock.Acquire(ctx, 43)
	require.NoError(t, err)
	otherRelease()

	release()

	release, err = lock.Acquire(ctx, 42)
	require.NoError(t, err)
	release()
}
