package lock

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseRoundtrip(t *testing.T) {
	dir := t.TempDir()

	l, err := TryAcquire(dir, "foo")
	require.NoError(t, err)
	require.NotNil(t, l)

	require.NoError(t, l.Release())

	l2, err := TryAcquire(dir, "foo")
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}

func TestTryAcquireBusy(t *testing.T) {
	dir := t.TempDir()

	l, err := TryAcquire(dir, "foo")
	require.NoError(t, err)
	defer l.Release()

	_, err = TryAcquire(dir, "foo")
	require.ErrorIs(t, err, ErrBusy)
}

func TestTryAcquireDifferentNamesDontConflict(t *testing.T) {
	dir := t.TempDir()

	a, err := TryAcquire(dir, "foo")
	require.NoError(t, err)
	defer a.Release()

	b, err := TryAcquire(dir, "bar")
	require.NoError(t, err)
	defer b.Release()
}

func TestStaleLockIsReclaimed(t *testing.T) {
	dir := t.TempDir()

	// l holds the lock and is never released, simulating a holder that
	// crashed without cleaning up. Its fd stays open, so the flock
	// stays held on that (now-unlinked-after-reclaim) inode.
	l, err := TryAcquire(dir, "foo")
	require.NoError(t, err)
	defer l.file.Close()

	path := lockPath(dir, "foo")
	old := time.Now().Add(-2 * StaleAfter)
	require.NoError(t, os.Chtimes(path, old, old))

	l2, err := Acquire(dir, "foo")
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}
