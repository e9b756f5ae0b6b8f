package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	got []Event
	err error
}

func (r *recorder) Publish(_ context.Context, e Event) error {
	r.got = append(r.got, e)
	return r.err
}

func TestNew(t *testing.T) {
	a := New(EntryWritten, "k")
	b := New(EntryWritten, "k")
	require.NotEmpty(t, a.ID)
	require.NotEqual(t, a.ID, b.ID)
	require.Equal(t, "k", a.Key)
	require.False(t, a.At.IsZero())
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &recorder{}
	failing := &recorder{err: boom}

	err := Multi{failing, ok, Nop{}}.Publish(context.Background(), New(CacheCleared, ""))
	require.ErrorIs(t, err, boom)
	require.Len(t, ok.got, 1)
	require.Len(t, failing.got, 1)
}

func TestRoutingKey(t *testing.T) {
	require.Equal(t, "cache.entry_expired", RoutingKey(New(EntryExpired, "k")))
}
