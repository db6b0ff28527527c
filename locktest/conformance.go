// Package locktest is a reusable conformance suite any lock.Adapter
// implementation can run against, generalized from the teacher's
// pg/playbook_test.go scenario style into an adapter-agnostic harness
// (§8's seed test cases).
package locktest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/resilientcore/resilientcore/lock"
)

// RunAdapterConformance exercises newAdapter() (a fresh, empty adapter
// per call) against the invariants and seed scenarios from §8. Every
// subtest gets its own adapter instance so they never interfere.
func RunAdapterConformance(t *testing.T, newAdapter func(t *testing.T) lock.Adapter) {
	t.Helper()

	t.Run("basic lock hand-off", func(t *testing.T) {
		a := newAdapter(t)
		ctx := context.Background()

		ok, err := a.TryInsert(ctx, "a", "b", lock.Unexpireable)
		require.NoError(t, err)
		require.True(t, ok)

		released, err := a.Release(ctx, "a", "b")
		require.NoError(t, err)
		require.True(t, released)

		ok, err = a.TryInsert(ctx, "a", "b", lock.Unexpireable)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("rival lockout", func(t *testing.T) {
		a := newAdapter(t)
		ctx := context.Background()

		ok, err := a.TryInsert(ctx, "a", "b", lock.Unexpireable)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = a.TryInsert(ctx, "a", "c", lock.Unexpireable)
		require.NoError(t, err)
		require.False(t, ok)

		released, err := a.Release(ctx, "a", "c")
		require.NoError(t, err)
		require.False(t, released)

		released, err = a.Release(ctx, "a", "b")
		require.NoError(t, err)
		require.True(t, released)

		ok, err = a.TryInsert(ctx, "a", "c", lock.Unexpireable)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("force-release ignores owner", func(t *testing.T) {
		a := newAdapter(t)
		ctx := context.Background()

		ok, err := a.TryInsert(ctx, "a", "b", lock.Unexpireable)
		require.NoError(t, err)
		require.True(t, ok)

		hadRecord, err := a.ForceRelease(ctx, "a")
		require.NoError(t, err)
		require.True(t, hadRecord)

		ok, err = a.TryInsert(ctx, "a", "anyone", lock.Unexpireable)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("force-release on absent key reports no record", func(t *testing.T) {
		a := newAdapter(t)
		ctx := context.Background()

		hadRecord, err := a.ForceRelease(ctx, "never-acquired")
		require.NoError(t, err)
		require.False(t, hadRecord)
	})

	t.Run("lease expiry", func(t *testing.T) {
		a := newAdapter(t)
		ctx := context.Background()

		ok, err := a.TryInsert(ctx, "a", "b", lock.For(50*time.Millisecond))
		require.NoError(t, err)
		require.True(t, ok)

		time.Sleep(70 * time.Millisecond)

		ok, err = a.TryInsert(ctx, "a", "c", lock.Unexpireable)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("refresh extends lease", func(t *testing.T) {
		a := newAdapter(t)
		ctx := context.Background()

		ok, err := a.TryInsert(ctx, "a", "b", lock.For(50*time.Millisecond))
		require.NoError(t, err)
		require.True(t, ok)

		time.Sleep(25 * time.Millisecond)

		refreshed, err := a.Refresh(ctx, "a", "b", lock.For(100*time.Millisecond))
		require.NoError(t, err)
		require.True(t, refreshed)

		time.Sleep(60 * time.Millisecond)
		rec, found, err := a.GetRecord(ctx, "a")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "b", rec.Owner)

		time.Sleep(60 * time.Millisecond)
		_, found, err = a.GetRecord(ctx, "a")
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("refresh on unexpireable fails", func(t *testing.T) {
		a := newAdapter(t)
		ctx := context.Background()

		ok, err := a.TryInsert(ctx, "a", "b", lock.Unexpireable)
		require.NoError(t, err)
		require.True(t, ok)

		refreshed, err := a.Refresh(ctx, "a", "b", lock.For(time.Second))
		require.NoError(t, err)
		require.False(t, refreshed)
	})

	t.Run("refresh by non-owner fails", func(t *testing.T) {
		a := newAdapter(t)
		ctx := context.Background()

		ok, err := a.TryInsert(ctx, "a", "b", lock.For(time.Minute))
		require.NoError(t, err)
		require.True(t, ok)

		refreshed, err := a.Refresh(ctx, "a", "c", lock.For(time.Minute))
		require.NoError(t, err)
		require.False(t, refreshed)
	})

	t.Run("re-acquisition by same owner is a no-op", func(t *testing.T) {
		a := newAdapter(t)
		ctx := context.Background()

		ok, err := a.TryInsert(ctx, "a", "b", lock.For(time.Hour))
		require.NoError(t, err)
		require.True(t, ok)

		rec1, found, err := a.GetRecord(ctx, "a")
		require.NoError(t, err)
		require.True(t, found)

		ok, err = a.TryInsert(ctx, "a", "b", lock.For(2*time.Hour))
		require.NoError(t, err)
		require.True(t, ok)

		rec2, found, err := a.GetRecord(ctx, "a")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, rec1.ExpiresAt, rec2.ExpiresAt, "re-acquire must not extend the existing lease")
	})

	t.Run("getRecord on absent key reports not found", func(t *testing.T) {
		a := newAdapter(t)
		_, found, err := a.GetRecord(context.Background(), "never-acquired")
		require.NoError(t, err)
		require.False(t, found)
	})
}
