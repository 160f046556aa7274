package bgsync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-offline-store/bgsync"
	"github.com/goliatone/go-offline-store/offline"
	"github.com/goliatone/go-offline-store/pkg/testsupport"
	"github.com/goliatone/go-offline-store/store"
)

func newRepo(t *testing.T) *store.Repository {
	t.Helper()
	clock := testsupport.NewClock(time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC))
	return store.NewRepository(store.NewMemoryBackend(),
		store.WithClock(func() time.Time {
			clock.Advance(time.Millisecond)
			return clock.Now()
		}),
	)
}

func TestSyncer_UnimplementedSource(t *testing.T) {
	notifier := &offline.RecordingNotifier{}
	s := bgsync.NewSyncer(nil, notifier)

	_, err := s.Handle(context.Background(), bgsync.TagTeamRegistration)
	require.Error(t, err)
	assert.ErrorIs(t, err, bgsync.ErrSourceUnavailable)
	assert.Empty(t, notifier.Shown())
}

func TestSyncer_UnknownTag(t *testing.T) {
	s := bgsync.NewSyncer(bgsync.UnimplementedSource{}, nil)

	_, err := s.Handle(context.Background(), "update-tournament-data")
	assert.ErrorIs(t, err, bgsync.ErrUnknownTag)
}

func TestSyncer_EmptyQueueIsNotAnError(t *testing.T) {
	repo := newRepo(t)
	notifier := &offline.RecordingNotifier{}
	s := bgsync.NewSyncer(bgsync.NewStoreSource(repo), notifier)

	res, err := s.Handle(context.Background(), bgsync.TagSponsorInquiry)
	require.NoError(t, err)
	assert.Equal(t, bgsync.Result{Tag: bgsync.TagSponsorInquiry}, res)
	assert.Empty(t, notifier.Shown())
}

func TestSyncer_MovesPendingFans(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	ada := testsupport.SampleFan()
	chidi := testsupport.SampleFan()
	chidi["firstName"] = "Chidi"
	_, err := repo.Enqueue(ctx, store.PendingFans, ada)
	require.NoError(t, err)
	_, err = repo.Enqueue(ctx, store.PendingFans, chidi)
	require.NoError(t, err)

	notifier := &offline.RecordingNotifier{}
	s := bgsync.NewSyncer(bgsync.NewStoreSource(repo), notifier)

	res, err := s.Handle(ctx, bgsync.TagFanRegistration)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Synced)
	assert.Zero(t, res.Failed)

	pending, err := repo.ReadAll(ctx, store.PendingFans)
	require.NoError(t, err)
	assert.Empty(t, pending)

	fans, err := repo.ReadAll(ctx, store.Fans)
	require.NoError(t, err)
	require.Len(t, fans, 2)
	assert.Equal(t, "Ada", fans[0].String("firstName"))
	assert.Equal(t, "Chidi", fans[1].String("firstName"))
	for _, fan := range fans {
		assert.Regexp(t, `^FAN_\d+$`, fan.ID())
		assert.Len(t, fan.String(store.FieldReferralCode), 8)
	}

	shown := notifier.Shown()
	require.Len(t, shown, 2)
	assert.Equal(t, "Fan Registration Synced", shown[0].Title)
	assert.Equal(t, "Fan registration for Ada has been synchronized.", shown[0].Notification.Body)
	assert.Equal(t, bgsync.NotificationTag, shown[0].Notification.Tag)
	assert.Equal(t, offline.NotificationIcon, shown[0].Notification.Badge)
}

func TestSyncer_TeamAndSponsorBodies(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.Enqueue(ctx, store.PendingTeams, testsupport.SampleTeam())
	require.NoError(t, err)
	_, err = repo.Enqueue(ctx, store.PendingSponsors, testsupport.SampleSponsor())
	require.NoError(t, err)

	notifier := &offline.RecordingNotifier{}
	s := bgsync.NewSyncer(bgsync.NewStoreSource(repo), notifier)

	_, err = s.Handle(ctx, bgsync.TagTeamRegistration)
	require.NoError(t, err)
	_, err = s.Handle(ctx, bgsync.TagSponsorInquiry)
	require.NoError(t, err)

	shown := notifier.Shown()
	require.Len(t, shown, 2)
	assert.Equal(t, "Team Registration Synced", shown[0].Title)
	assert.Equal(t, "Team Surulere Strikers registration has been synchronized.", shown[0].Notification.Body)
	assert.Equal(t, "Sponsor Inquiry Synced", shown[1].Title)
	assert.Equal(t, "Sponsor inquiry from Jollof Ventures has been synchronized.", shown[1].Notification.Body)

	sponsors, err := repo.ReadAll(ctx, store.Sponsors)
	require.NoError(t, err)
	require.Len(t, sponsors, 1)
	assert.Equal(t, "gold", sponsors[0].String("tier"))
}

// flakySource fails Complete for one id.
type flakySource struct {
	items  []store.Record
	failID string
	done   []string
}

func (f *flakySource) Pending(context.Context, store.Collection) ([]store.Record, error) {
	return f.items, nil
}

func (f *flakySource) Complete(_ context.Context, _, _ store.Collection, rec store.Record) (store.Record, error) {
	if rec.ID() == f.failID {
		return nil, errors.New("write failed")
	}
	f.done = append(f.done, rec.ID())
	return rec, nil
}

func TestSyncer_ItemFailureContinues(t *testing.T) {
	src := &flakySource{
		items: []store.Record{
			{"id": "PTEAM_1", "teamName": "A"},
			{"id": "PTEAM_2", "teamName": "B"},
			{"id": "PTEAM_3", "teamName": "C"},
		},
		failID: "PTEAM_2",
	}
	notifier := &offline.RecordingNotifier{}
	s := bgsync.NewSyncer(src, notifier)

	res, err := s.Handle(context.Background(), bgsync.TagTeamRegistration)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Synced)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"PTEAM_1", "PTEAM_3"}, src.done)
	assert.Len(t, notifier.Shown(), 2)
}

func TestStoreSource_RejectsRegistrationCollections(t *testing.T) {
	src := bgsync.NewStoreSource(newRepo(t))

	_, err := src.Pending(context.Background(), store.Teams)
	assert.ErrorIs(t, err, store.ErrNotQueue)
}

func TestStoreSource_CompleteClaimsOnce(t *testing.T) {
	repo := newRepo(t)
	src := bgsync.NewStoreSource(repo)
	ctx := context.Background()

	_, err := repo.Enqueue(ctx, store.PendingTeams, testsupport.SampleTeam())
	require.NoError(t, err)

	first, err := src.Pending(ctx, store.PendingTeams)
	require.NoError(t, err)
	second, err := src.Pending(ctx, store.PendingTeams)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Len(t, second, 1)

	_, err = src.Complete(ctx, store.PendingTeams, store.Teams, first[0])
	require.NoError(t, err)
	_, err = src.Complete(ctx, store.PendingTeams, store.Teams, second[0])
	assert.ErrorIs(t, err, bgsync.ErrAlreadyCompleted)

	teams, err := repo.ReadAll(ctx, store.Teams)
	require.NoError(t, err)
	assert.Len(t, teams, 1)
}

// snapshotSource serves the pending items it saw when created, like a run
// that read the queue before another run drained it.
type snapshotSource struct {
	*bgsync.StoreSource
	items []store.Record
}

func (s *snapshotSource) Pending(context.Context, store.Collection) ([]store.Record, error) {
	return s.items, nil
}

func TestSyncer_OverlappingRunsRegisterOnce(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.Enqueue(ctx, store.PendingSponsors, testsupport.SampleSponsor())
	require.NoError(t, err)
	items, err := repo.ReadAll(ctx, store.PendingSponsors)
	require.NoError(t, err)

	notifier := &offline.RecordingNotifier{}
	live := bgsync.NewSyncer(bgsync.NewStoreSource(repo), notifier)
	late := bgsync.NewSyncer(&snapshotSource{StoreSource: bgsync.NewStoreSource(repo), items: items}, notifier)

	res, err := live.Handle(ctx, bgsync.TagSponsorInquiry)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)

	res, err = late.Handle(ctx, bgsync.TagSponsorInquiry)
	require.NoError(t, err)
	assert.Zero(t, res.Synced)
	assert.Zero(t, res.Failed)

	sponsors, err := repo.ReadAll(ctx, store.Sponsors)
	require.NoError(t, err)
	assert.Len(t, sponsors, 1)
	assert.Len(t, notifier.Shown(), 1)
}

// failingBackend rejects writes to one key.
type failingBackend struct {
	store.Backend
	key string
}

func (b *failingBackend) Update(ctx context.Context, key string, fn store.UpdateFunc) error {
	if key == b.key {
		return errors.New("disk full")
	}
	return b.Backend.Update(ctx, key, fn)
}

func TestStoreSource_FailedInsertRequeues(t *testing.T) {
	repo := store.NewRepository(&failingBackend{Backend: store.NewMemoryBackend(), key: string(store.Teams)})
	src := bgsync.NewStoreSource(repo)
	ctx := context.Background()

	queued, err := repo.Enqueue(ctx, store.PendingTeams, testsupport.SampleTeam())
	require.NoError(t, err)

	_, err = src.Complete(ctx, store.PendingTeams, store.Teams, queued)
	require.Error(t, err)
	assert.NotErrorIs(t, err, bgsync.ErrAlreadyCompleted)

	pending, err := repo.ReadAll(ctx, store.PendingTeams)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, queued.ID(), pending[0].ID())
}

func TestSyncer_Tags(t *testing.T) {
	s := bgsync.NewSyncer(nil, nil)
	assert.Equal(t, []string{"fan-registration", "sponsor-inquiry", "team-registration"}, s.Tags())
}

func TestSyncer_CustomJobs(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	queue := store.Collection("pending_newsletter_subscribers")

	_, err := repo.Enqueue(ctx, queue, store.Record{"email": "ada@example.com"})
	require.NoError(t, err)

	notifier := &offline.RecordingNotifier{}
	s := bgsync.NewSyncer(bgsync.NewStoreSource(repo), notifier, bgsync.WithJobs(map[string]bgsync.Job{
		"newsletter-signup": {
			Pending:   queue,
			Completed: store.Subscribers,
			Title:     "Subscribed",
			Body:      func(r store.Record) string { return r.String("email") },
		},
	}))
	assert.Equal(t, []string{"newsletter-signup"}, s.Tags())

	res, err := s.Handle(ctx, "newsletter-signup")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)

	_, err = s.Handle(ctx, bgsync.TagFanRegistration)
	assert.ErrorIs(t, err, bgsync.ErrUnknownTag)

	subs, err := repo.ReadAll(ctx, store.Subscribers)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "ada@example.com", subs[0].String("email"))
	require.Len(t, notifier.Shown(), 1)
	assert.Equal(t, "ada@example.com", notifier.Shown()[0].Notification.Body)
}
