package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_GetAbsent(t *testing.T) {
	b := NewMemoryBackend()

	v, ok, err := b.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestMemoryBackend_UpdateError(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	boom := errors.New("boom")

	err := b.Update(ctx, "fresh", func([]byte, bool) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	keys, _ := b.Keys(ctx)
	assert.Empty(t, keys, "failed update leaves no slot behind")

	b.Set("kept", []byte("v1"))
	err = b.Update(ctx, "kept", func([]byte, bool) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	v, ok, err := b.Get(ctx, "kept")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), v)
}

func TestMemoryBackend_ReturnsCopies(t *testing.T) {
	b := NewMemoryBackend()
	b.Set("k", []byte("abc"))

	v, _, _ := b.Get(context.Background(), "k")
	v[0] = 'z'

	again, _, _ := b.Get(context.Background(), "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryBackend_UpdateIsAtomic(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	const writers = 200
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Update(ctx, "counter", func(cur []byte, _ bool) ([]byte, error) {
				return append(cur, 'x'), nil
			})
		}()
	}
	wg.Wait()

	v, _, _ := b.Get(ctx, "counter")
	assert.Len(t, v, writers)
}

func TestRecordHelpers(t *testing.T) {
	rec := Record{
		"n":    3.5,
		"b":    true,
		"nil":  nil,
		"s":    "x",
		"refs": "12",
	}
	assert.Equal(t, "3.5", rec.String("n"))
	assert.Equal(t, "true", rec.String("b"))
	assert.Equal(t, "", rec.String("nil"))
	assert.Equal(t, "", rec.String("absent"))
	assert.Equal(t, "x", rec.String("s"))

	tests := []struct {
		value any
		want  int
	}{
		{value: 4, want: 4},
		{value: 4.9, want: 4},
		{value: " 6 ", want: 6},
		{value: "six", want: 0},
		{value: nil, want: 0},
		{value: []any{1}, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Record{FieldReferrals: tt.value}.Referrals(), "%v", tt.value)
	}
}

func TestCollectionPrefix(t *testing.T) {
	assert.Equal(t, "TEAM", Teams.Prefix())
	assert.Equal(t, "FAN", Fans.Prefix())
	assert.Equal(t, "SUB", Subscribers.Prefix())
	assert.Equal(t, "SPONSOR", Sponsors.Prefix())
	assert.Equal(t, "PENDING", PendingSponsors.Prefix())
	assert.True(t, PendingTeams.IsQueue())
	assert.False(t, Teams.IsQueue())
}

func TestRankByReferralsDoesNotPanicOnEmpty(t *testing.T) {
	assert.Empty(t, rankByReferrals(nil, 10))
	assert.Empty(t, rankByReferrals([]Record{{FieldID: "FAN_1"}}, -1))
}

func TestValidate(t *testing.T) {
	assert.Equal(t, []string{"name is required", "email is required"}, Validate(Record{}, []string{"name", "email"}))
	assert.Empty(t, Validate(Record{"name": "Ada", "email": "x"}, []string{"name", "email"}))
	assert.Equal(t, []string{"name is required"}, Validate(Record{"name": " \t"}, []string{"name"}))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("a@b.co"))
	for _, email := range []string{"a@b", "a.b.com", ""} {
		assert.ErrorIs(t, ValidateEmail(email), ErrInvalidEmail, email)
	}
}
