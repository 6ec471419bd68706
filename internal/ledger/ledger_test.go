package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/talkthru/internal/language"
	"github.com/stretchr/testify/require"
)

func exchange(role language.Role, source, target string) Exchange {
	return Exchange{Speaker: role, SourceText: source, TargetText: target}
}

func TestAppendPreservesCommitOrder(t *testing.T) {
	l := New()
	require.True(t, l.IsEmpty())

	a, err := l.Append(exchange(language.RoleInitiator, "Hello, how are you?", "Hallo, hoe gaat het?"))
	require.NoError(t, err)
	b, err := l.Append(exchange(language.RoleRespondent, "Goed, dank je", "Good, thank you"))
	require.NoError(t, err)

	snap := l.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, a, snap[0])
	require.Equal(t, b, snap[1])
	require.Equal(t, 1, snap[0].Seq)
	require.Equal(t, 2, snap[1].Seq)
	require.Equal(t, 2, l.Len())
	require.False(t, l.IsEmpty())
	require.NotEqual(t, a.ID, b.ID)
}

func TestAppendAssignsTimeOrderedID(t *testing.T) {
	l := New()
	ex, err := l.Append(exchange(language.RoleInitiator, "a", "b"))
	require.NoError(t, err)

	id, err := uuid.Parse(ex.ID)
	require.NoError(t, err)
	require.Equal(t, uuid.Version(7), id.Version())
	require.False(t, ex.CommittedAt.IsZero())
	require.Equal(t, ex.CommittedAt, ex.CapturedAt)
}

func TestAppendKeepsCallerTimestampsAndID(t *testing.T) {
	l := New()
	captured := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	in := exchange(language.RoleRespondent, "x", "y")
	in.ID = "fixed"
	in.CapturedAt = captured

	ex, err := l.Append(in)
	require.NoError(t, err)
	require.Equal(t, "fixed", ex.ID)
	require.Equal(t, captured, ex.CapturedAt)
}

func TestAppendRejectsIncompleteRecords(t *testing.T) {
	l := New()

	_, err := l.Append(exchange(language.RoleInitiator, "  ", "target"))
	require.ErrorIs(t, err, ErrIncompleteExchange)
	_, err = l.Append(exchange(language.RoleInitiator, "source", ""))
	require.ErrorIs(t, err, ErrIncompleteExchange)
	_, err = l.Append(exchange(language.Role("observer"), "source", "target"))
	require.Error(t, err)

	require.Zero(t, l.Len())
}

func TestSnapshotIsDetached(t *testing.T) {
	l := New()
	_, err := l.Append(exchange(language.RoleInitiator, "one", "een"))
	require.NoError(t, err)

	snap := l.Snapshot()
	snap[0].SourceText = "mutated"
	_ = append(snap, exchange(language.RoleRespondent, "extra", "extra"))

	again := l.Snapshot()
	require.Len(t, again, 1)
	require.Equal(t, "one", again[0].SourceText)
}

func TestClearResetsSequence(t *testing.T) {
	l := New()
	_, err := l.Append(exchange(language.RoleInitiator, "one", "een"))
	require.NoError(t, err)

	l.Clear()
	require.True(t, l.IsEmpty())
	require.Empty(t, l.Snapshot())

	ex, err := l.Append(exchange(language.RoleRespondent, "twee", "two"))
	require.NoError(t, err)
	require.Equal(t, 1, ex.Seq)
}

func TestConcurrentReadersDuringAppend(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				snap := l.Snapshot()
				for k := range snap {
					if snap[k].Seq != k+1 {
						t.Errorf("snapshot out of order at %d: seq %d", k, snap[k].Seq)
					}
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		_, err := l.Append(exchange(language.RoleInitiator, "s", "t"))
		require.NoError(t, err)
	}
	wg.Wait()
	require.Equal(t, 50, l.Len())
}
