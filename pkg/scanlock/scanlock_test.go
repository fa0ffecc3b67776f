package scanlock

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := New(dir, "scan")
	require.NoError(t, l.Acquire())
	require.NoError(t, l.Release())
}

func TestSecondAcquireFailsFast(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := New(dir, "scan")
	require.NoError(t, first.Acquire())
	defer first.Release()

	second := New(dir, "scan")
	err := second.Acquire()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrHeld))
}

func TestDifferentNamesDoNotConflict(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	scan := New(dir, "scan")
	reconcile := New(dir, "reconcile")

	require.NoError(t, scan.Acquire())
	defer scan.Release()
	require.NoError(t, reconcile.Acquire())
	defer reconcile.Release()
}
