package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-offline-store/pkg/testsupport"
	"github.com/goliatone/go-offline-store/store"
)

var epoch = time.Date(2024, time.November, 5, 14, 30, 0, 123_000_000, time.UTC)

func newRepo(t *testing.T) (*store.Repository, *store.MemoryBackend, *testsupport.Clock) {
	t.Helper()
	backend := store.NewMemoryBackend()
	clock := testsupport.NewClock(epoch)
	repo := store.NewRepository(backend,
		store.WithClock(clock.Now),
		store.WithReferralCodes(func() string { return "NAIJA5FT" }),
	)
	return repo, backend, clock
}

func TestInsert_AssignsSystemFields(t *testing.T) {
	repo, _, _ := newRepo(t)
	ctx := context.Background()

	fan, err := repo.Insert(ctx, store.Fans, testsupport.SampleFan())
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf("FAN_%d", epoch.UnixMilli()), fan.ID())
	assert.Equal(t, "2024-11-05T14:30:00.123Z", fan.String(store.FieldRegistrationDate))
	assert.Equal(t, "NAIJA5FT", fan.String(store.FieldReferralCode))
	assert.Equal(t, "Ada", fan.String("firstName"))

	team, err := repo.Insert(ctx, store.Teams, testsupport.SampleTeam())
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("TEAM_%d", epoch.UnixMilli()), team.ID())
	_, hasCode := team[store.FieldReferralCode]
	assert.False(t, hasCode, "only fans get referral codes")
}

func TestInsert_RegistrationDateNotBeforeCall(t *testing.T) {
	repo := store.NewRepository(store.NewMemoryBackend())
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		before := time.Now()
		rec, err := repo.Insert(ctx, store.Teams, testsupport.SampleTeam())
		require.NoError(t, err)

		stored, err := time.Parse(time.RFC3339Nano, rec.String(store.FieldRegistrationDate))
		require.NoError(t, err)
		require.False(t, stored.Before(before), "stored %s, call at %s", stored, before)
		assert.Equal(t, time.UTC, stored.Location())
	}
}

func TestInsert_DoesNotMutateInput(t *testing.T) {
	repo, _, _ := newRepo(t)
	in := testsupport.SampleSponsor()

	_, err := repo.Insert(context.Background(), store.Sponsors, in)
	require.NoError(t, err)
	assert.NotContains(t, in, store.FieldID)
}

func TestInsert_SameMillisecondGetsDistinctIDs(t *testing.T) {
	repo, _, _ := newRepo(t)
	ctx := context.Background()

	first, err := repo.Append(ctx, store.Teams, testsupport.SampleTeam())
	require.NoError(t, err)
	second, err := repo.Append(ctx, store.Teams, testsupport.SampleTeam())
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf("TEAM_%d", epoch.UnixMilli()), first)
	assert.Equal(t, fmt.Sprintf("TEAM_%d", epoch.UnixMilli()+1), second)
}

func TestReadAll_AbsentCollectionIsEmpty(t *testing.T) {
	repo, _, _ := newRepo(t)

	records, err := repo.ReadAll(context.Background(), store.Sponsors)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestReadAll_CorruptPayloadIsEmpty(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{name: "not json", payload: "{not json", want: 0},
		{name: "object instead of array", payload: `{"id":"FAN_1"}`, want: 0},
		{name: "blank", payload: "   ", want: 0},
		{name: "unreadable items skipped", payload: `[{"id":"FAN_1"}, 42, {"id":"FAN_2"}]`, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, backend, _ := newRepo(t)
			backend.Set(string(store.Fans), []byte(tt.payload))

			records, err := repo.ReadAll(context.Background(), store.Fans)
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
		})
	}
}

func TestInsert_ReplacesCorruptPayload(t *testing.T) {
	repo, backend, _ := newRepo(t)
	backend.Set(string(store.Teams), []byte("garbage"))
	ctx := context.Background()

	_, err := repo.Insert(ctx, store.Teams, testsupport.SampleTeam())
	require.NoError(t, err)

	teams, err := repo.ReadAll(ctx, store.Teams)
	require.NoError(t, err)
	assert.Len(t, teams, 1)
}

func TestLeaderboard(t *testing.T) {
	repo, backend, _ := newRepo(t)
	backend.Set(string(store.Fans), []byte(`[
		{"id":"FAN_1","firstName":"Ada","referrals":3},
		{"id":"FAN_2","firstName":"Bola"},
		{"id":"FAN_3","firstName":"Chidi","referrals":"7"},
		{"id":"FAN_4","firstName":"Dayo","referrals":3},
		{"id":"FAN_5","firstName":"Emeka","referrals":"lots"}
	]`))
	ctx := context.Background()

	board, err := repo.Leaderboard(ctx, 10)
	require.NoError(t, err)

	var order []string
	for _, fan := range board {
		order = append(order, fan.ID())
	}
	// ties keep registration order; unusable counts rank as zero
	assert.Equal(t, []string{"FAN_3", "FAN_1", "FAN_4", "FAN_2", "FAN_5"}, order)

	board, err = repo.Leaderboard(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, board, 2)

	board, err = repo.Leaderboard(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, board)
}

func TestSubscribe(t *testing.T) {
	repo, _, _ := newRepo(t)
	ctx := context.Background()

	rec, created, err := repo.Subscribe(ctx, "  ada@example.com ")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "ada@example.com", rec.String(store.FieldEmail))
	assert.Equal(t, fmt.Sprintf("SUB_%d", epoch.UnixMilli()), rec.ID())

	again, created, err := repo.Subscribe(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, rec.ID(), again.ID())

	subs, err := repo.ReadAll(ctx, store.Subscribers)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestSubscribe_InvalidEmail(t *testing.T) {
	repo, _, _ := newRepo(t)

	for _, email := range []string{"", "ada", "ada@", "ada@example", "a da@example.com"} {
		_, _, err := repo.Subscribe(context.Background(), email)
		assert.ErrorIs(t, err, store.ErrInvalidEmail, email)
	}
}

func TestSubscribe_LegacyStringEntries(t *testing.T) {
	repo, backend, _ := newRepo(t)
	backend.Set(string(store.Subscribers), testsupport.LoadFixture(t, "legacy_subscribers.json"))
	ctx := context.Background()

	subs, err := repo.ReadAll(ctx, store.Subscribers)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "ada@example.com", subs[0].String(store.FieldEmail))
	assert.Equal(t, "chidi@example.com", subs[1].String(store.FieldEmail))

	_, created, err := repo.Subscribe(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		register func(*store.Repository, store.Record) (store.Record, error)
		record   store.Record
		want     []string
	}{
		{
			name:     "team missing fields",
			register: func(r *store.Repository, rec store.Record) (store.Record, error) { return r.RegisterTeam(context.Background(), rec) },
			record:   store.Record{"teamName": "Eagles", "phone": "  "},
			want:     []string{"captainName is required", "email is required", "phone is required", "state is required"},
		},
		{
			name:     "fan with bad email and state",
			register: func(r *store.Repository, rec store.Record) (store.Record, error) { return r.RegisterFan(context.Background(), rec) },
			record:   store.Record{"firstName": "Ada", "lastName": "Obi", "email": "ada@", "state": "Atlantis"},
			want:     []string{"email is invalid", "state is invalid"},
		},
		{
			name:     "sponsor missing contact",
			register: func(r *store.Repository, rec store.Record) (store.Record, error) { return r.SubmitSponsorInquiry(context.Background(), rec) },
			record:   store.Record{"companyName": "Jollof Ventures", "email": "partners@jollof.ng"},
			want:     []string{"contactName is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, backend, _ := newRepo(t)

			_, err := tt.register(repo, tt.record)
			var verr *store.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.want, verr.Messages)

			keys, err := backend.Keys(context.Background())
			require.NoError(t, err)
			assert.Empty(t, keys, "nothing is persisted")
		})
	}
}

func TestRegister_Valid(t *testing.T) {
	repo, _, _ := newRepo(t)
	ctx := context.Background()

	team, err := repo.RegisterTeam(ctx, testsupport.SampleTeam())
	require.NoError(t, err)
	assert.NotEmpty(t, team.ID())

	fan, err := repo.RegisterFan(ctx, testsupport.SampleFan())
	require.NoError(t, err)
	assert.Equal(t, "NAIJA5FT", fan.String(store.FieldReferralCode))

	sponsor, err := repo.SubmitSponsorInquiry(ctx, testsupport.SampleSponsor())
	require.NoError(t, err)
	assert.Equal(t, "gold", sponsor.String("tier"))
}

func TestQueues(t *testing.T) {
	repo, _, clock := newRepo(t)
	ctx := context.Background()

	_, err := repo.Enqueue(ctx, store.Teams, testsupport.SampleTeam())
	assert.ErrorIs(t, err, store.ErrNotQueue)
	_, _, err = repo.Dequeue(ctx, store.Fans, "FAN_1")
	assert.ErrorIs(t, err, store.ErrNotQueue)

	first, err := repo.Enqueue(ctx, store.PendingFans, testsupport.SampleFan())
	require.NoError(t, err)
	assert.Regexp(t, `^PENDING_\d+$`, first.ID())
	clock.Advance(time.Second)
	second, err := repo.Enqueue(ctx, store.PendingFans, testsupport.SampleFan())
	require.NoError(t, err)

	removed, found, err := repo.Dequeue(ctx, store.PendingFans, first.ID())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, first.ID(), removed.ID())

	_, found, err = repo.Dequeue(ctx, store.PendingFans, first.ID())
	require.NoError(t, err)
	assert.False(t, found)

	pending, err := repo.ReadAll(ctx, store.PendingFans)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID(), pending[0].ID())

	require.NoError(t, repo.Requeue(ctx, store.PendingFans, removed))
	require.NoError(t, repo.Requeue(ctx, store.PendingFans, removed))
	pending, err = repo.ReadAll(ctx, store.PendingFans)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID(), pending[1].ID())
	assert.Equal(t, first.String(store.FieldRegistrationDate), pending[1].String(store.FieldRegistrationDate))
	assert.ErrorIs(t, repo.Requeue(ctx, store.Fans, removed), store.ErrNotQueue)
}

func TestOnChange(t *testing.T) {
	repo, _, _ := newRepo(t)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		changed []store.Collection
	)
	repo.OnChange(func(_ context.Context, c store.Collection) {
		mu.Lock()
		changed = append(changed, c)
		mu.Unlock()
	})
	repo.OnChange(nil)

	_, err := repo.RegisterFan(ctx, testsupport.SampleFan())
	require.NoError(t, err)
	_, _ = repo.RegisterFan(ctx, store.Record{})
	_, _, _ = repo.Subscribe(ctx, "ada@example.com")
	_, _, _ = repo.Subscribe(ctx, "ada@example.com")
	pending, err := repo.Enqueue(ctx, store.PendingTeams, testsupport.SampleTeam())
	require.NoError(t, err)
	_, _, _ = repo.Dequeue(ctx, store.PendingTeams, "missing")
	_, _, _ = repo.Dequeue(ctx, store.PendingTeams, pending.ID())

	assert.Equal(t, []store.Collection{
		store.Fans,
		store.Subscribers,
		store.PendingTeams,
		store.PendingTeams,
	}, changed)
}

func TestConcurrentInsertsKeepEveryRecord(t *testing.T) {
	repo := store.NewRepository(store.NewMemoryBackend())
	ctx := context.Background()

	const writers = 100
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Insert(ctx, store.Fans, store.Record{"firstName": fmt.Sprintf("Fan%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	fans, err := repo.ReadAll(ctx, store.Fans)
	require.NoError(t, err)
	require.Len(t, fans, writers)

	ids := map[string]bool{}
	for _, fan := range fans {
		ids[fan.ID()] = true
	}
	assert.Len(t, ids, writers)
}

func TestNewReferralCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		assert.Regexp(t, `^[A-Z0-9]{8}$`, store.NewReferralCode())
	}
}

func TestCollectStats(t *testing.T) {
	repo, backend, _ := newRepo(t)
	ctx := context.Background()
	backend.Set(string(store.Fans), []byte(`[{"id":"FAN_1","referrals":4},{"id":"FAN_2","referrals":"3"}]`))
	backend.Set(string(store.Sponsors), []byte(`[{"id":"S_1","amount":250000},{"id":"S_2","amount":"1500.50"},{"id":"S_3","amount":"TBC"}]`))

	_, err := repo.RegisterTeam(ctx, testsupport.SampleTeam())
	require.NoError(t, err)
	_, _, err = repo.Subscribe(ctx, "ada@example.com")
	require.NoError(t, err)

	st, err := store.CollectStats(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Teams)
	assert.Equal(t, 2, st.Fans)
	assert.Equal(t, 1, st.Subscribers)
	assert.Equal(t, 3, st.Sponsors)
	assert.Equal(t, 7, st.Referrals)
	assert.InDelta(t, 251500.50, st.Pledged, 0.001)
	assert.NotEmpty(t, st.PledgedText)
}
