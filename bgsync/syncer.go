package bgsync

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/goliatone/go-offline-store/offline"
	"github.com/goliatone/go-offline-store/store"
)

// ErrUnknownTag is returned for a sync tag with no registered job.
var ErrUnknownTag = errors.New("bgsync: unknown sync tag")

// Sync tags.
const (
	TagTeamRegistration = "team-registration"
	TagFanRegistration  = "fan-registration"
	TagSponsorInquiry   = "sponsor-inquiry"
)

// NotificationTag groups sync notifications so they replace each other.
const NotificationTag = "sync-notification"

// Job describes how one tag is synchronised.
type Job struct {
	Pending   store.Collection
	Completed store.Collection
	Title     string
	// Body renders the notification text for a synced record.
	Body func(store.Record) string
}

// DefaultJobs returns the jobs for the three submission forms.
func DefaultJobs() map[string]Job {
	return map[string]Job{
		TagTeamRegistration: {
			Pending:   store.PendingTeams,
			Completed: store.Teams,
			Title:     "Team Registration Synced",
			Body: func(r store.Record) string {
				return fmt.Sprintf("Team %s registration has been synchronized.", r.String("teamName"))
			},
		},
		TagFanRegistration: {
			Pending:   store.PendingFans,
			Completed: store.Fans,
			Title:     "Fan Registration Synced",
			Body: func(r store.Record) string {
				return fmt.Sprintf("Fan registration for %s has been synchronized.", r.String("firstName"))
			},
		},
		TagSponsorInquiry: {
			Pending:   store.PendingSponsors,
			Completed: store.Sponsors,
			Title:     "Sponsor Inquiry Synced",
			Body: func(r store.Record) string {
				return fmt.Sprintf("Sponsor inquiry from %s has been synchronized.", r.String("companyName"))
			},
		},
	}
}

// Result summarises one Handle run.
type Result struct {
	Tag    string `json:"tag"`
	Synced int    `json:"synced"`
	Failed int    `json:"failed"`
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithJobs replaces the tag table.
func WithJobs(jobs map[string]Job) Option {
	return func(s *Syncer) {
		if jobs != nil {
			s.jobs = jobs
		}
	}
}

// Syncer runs background sync jobs.
type Syncer struct {
	source   Source
	notifier offline.Notifier
	jobs     map[string]Job
	logger   *zap.Logger
}

// NewSyncer builds a syncer. A nil source means UnimplementedSource.
func NewSyncer(source Source, notifier offline.Notifier, opts ...Option) *Syncer {
	if source == nil {
		source = UnimplementedSource{}
	}
	s := &Syncer{
		source:   source,
		notifier: notifier,
		jobs:     DefaultJobs(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tags lists the known tags, sorted.
func (s *Syncer) Tags() []string {
	tags := make([]string, 0, len(s.jobs))
	for tag := range s.jobs {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Handle synchronises every pending item for tag. Per-item failures are
// logged and counted; only a failure to list the queue is returned.
func (s *Syncer) Handle(ctx context.Context, tag string) (Result, error) {
	res := Result{Tag: tag}

	job, ok := s.jobs[tag]
	if !ok {
		return res, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}

	items, err := s.source.Pending(ctx, job.Pending)
	if err != nil {
		return res, fmt.Errorf("bgsync: %s: %w", tag, err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if _, err := s.source.Complete(ctx, job.Pending, job.Completed, item); err != nil {
			if errors.Is(err, ErrAlreadyCompleted) {
				s.logger.Debug("sync item already claimed",
					zap.String("tag", tag),
					zap.String("id", item.ID()),
				)
				continue
			}
			res.Failed++
			s.logger.Error("sync item failed",
				zap.String("tag", tag),
				zap.String("id", item.ID()),
				zap.Error(err),
			)
			continue
		}
		res.Synced++

		if s.notifier == nil {
			continue
		}
		n := offline.Notification{
			Body:  job.Body(item),
			Icon:  offline.NotificationIcon,
			Badge: offline.NotificationIcon,
			Tag:   NotificationTag,
		}
		if err := s.notifier.Show(ctx, job.Title, n); err != nil {
			s.logger.Warn("sync notification failed",
				zap.String("tag", tag),
				zap.String("id", item.ID()),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("background sync finished",
		zap.String("tag", tag),
		zap.Int("synced", res.Synced),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}
