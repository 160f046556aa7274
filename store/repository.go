package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-offline-store/site"
)

// TimeLayout is the registrationDate format: ISO-8601 in UTC at full
// precision, so a stored date never reads earlier than the write.
const TimeLayout = time.RFC3339Nano

// DefaultLeaderboardSize is the number of fans shown on the leaderboard.
const DefaultLeaderboardSize = 100

// ErrNotQueue is returned when a queue-only operation targets a registration collection.
var ErrNotQueue = errors.New("store: collection is not a pending queue")

// Store is the read/append surface of the data store.
type Store interface {
	Append(ctx context.Context, c Collection, record Record) (string, error)
	Insert(ctx context.Context, c Collection, record Record) (Record, error)
	ReadAll(ctx context.Context, c Collection) ([]Record, error)
	Leaderboard(ctx context.Context, topN int) ([]Record, error)
}

var _ Store = (*Repository)(nil)

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithReferralCodes overrides the referral code generator.
func WithReferralCodes(gen func() string) Option {
	return func(r *Repository) {
		if gen != nil {
			r.referralCode = gen
		}
	}
}

// ChangeFunc is called after a collection was written.
type ChangeFunc func(ctx context.Context, c Collection)

// Repository stores record collections as JSON arrays in a Backend.
type Repository struct {
	backend      Backend
	logger       *zap.Logger
	now          func() time.Time
	referralCode func() string

	mu        sync.RWMutex
	listeners []ChangeFunc
}

// NewRepository returns a repository over backend.
func NewRepository(backend Backend, opts ...Option) *Repository {
	r := &Repository{
		backend:      backend,
		logger:       zap.NewNop(),
		now:          time.Now,
		referralCode: NewReferralCode,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Backend returns the underlying backend.
func (r *Repository) Backend() Backend { return r.backend }

// OnChange registers fn to run after every successful write.
func (r *Repository) OnChange(fn ChangeFunc) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Repository) changed(ctx context.Context, c Collection) {
	r.mu.RLock()
	listeners := r.listeners
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, c)
	}
}

// Append adds record to the collection and returns its assigned id.
func (r *Repository) Append(ctx context.Context, c Collection, record Record) (string, error) {
	stored, err := r.Insert(ctx, c, record)
	if err != nil {
		return "", err
	}
	return stored.ID(), nil
}

// Insert adds record to the collection and returns the stored copy with the
// system fields set. The whole array is rewritten in one atomic backend update.
func (r *Repository) Insert(ctx context.Context, c Collection, record Record) (Record, error) {
	var stored Record
	err := r.backend.Update(ctx, string(c), func(current []byte, exists bool) ([]byte, error) {
		records := r.decode(c, current, exists)

		now := r.now().UTC()
		rec := record.Clone()
		rec[FieldID] = nextID(c, records, now)
		rec[FieldRegistrationDate] = now.Format(TimeLayout)
		if c == Fans {
			rec[FieldReferralCode] = r.referralCode()
		}

		payload, err := json.Marshal(append(records, rec))
		if err != nil {
			return nil, fmt.Errorf("store: encode %s: %w", c, err)
		}
		stored = rec
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	r.changed(ctx, c)
	return stored, nil
}

// ReadAll returns every record in the collection. Absent and unreadable
// collections are empty.
func (r *Repository) ReadAll(ctx context.Context, c Collection) ([]Record, error) {
	payload, exists, err := r.backend.Get(ctx, string(c))
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", c, err)
	}
	return r.decode(c, payload, exists), nil
}

// Leaderboard returns at most topN fans by descending referrals. Ties keep
// registration order.
func (r *Repository) Leaderboard(ctx context.Context, topN int) ([]Record, error) {
	fans, err := r.ReadAll(ctx, Fans)
	if err != nil {
		return nil, err
	}
	return rankByReferrals(fans, topN), nil
}

func rankByReferrals(fans []Record, topN int) []Record {
	if topN <= 0 {
		return []Record{}
	}
	sort.SliceStable(fans, func(i, j int) bool {
		return fans[i].Referrals() > fans[j].Referrals()
	})
	if len(fans) > topN {
		fans = fans[:topN]
	}
	return fans
}

// Subscribe adds email to the newsletter unless it is already subscribed.
// The bool reports whether a subscriber was created.
func (r *Repository) Subscribe(ctx context.Context, email string) (Record, bool, error) {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return nil, false, err
	}

	var (
		stored  Record
		created bool
	)
	err := r.backend.Update(ctx, string(Subscribers), func(current []byte, exists bool) ([]byte, error) {
		records := r.decode(Subscribers, current, exists)
		for _, rec := range records {
			if rec.String(FieldEmail) == email {
				stored, created = rec, false
				return current, nil
			}
		}

		now := r.now().UTC()
		rec := Record{
			FieldEmail:            email,
			FieldID:               nextID(Subscribers, records, now),
			FieldRegistrationDate: now.Format(TimeLayout),
		}
		payload, err := json.Marshal(append(records, rec))
		if err != nil {
			return nil, fmt.Errorf("store: encode %s: %w", Subscribers, err)
		}
		stored, created = rec, true
		return payload, nil
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		r.changed(ctx, Subscribers)
	}
	return stored, created, nil
}

// RegisterTeam validates and stores a team registration.
func (r *Repository) RegisterTeam(ctx context.Context, record Record) (Record, error) {
	return r.register(ctx, Teams, record, TeamRequiredFields)
}

// RegisterFan validates and stores a fan registration. The stored fan
// carries a fresh referral code.
func (r *Repository) RegisterFan(ctx context.Context, record Record) (Record, error) {
	return r.register(ctx, Fans, record, FanRequiredFields)
}

// SubmitSponsorInquiry validates and stores a sponsor inquiry.
func (r *Repository) SubmitSponsorInquiry(ctx context.Context, record Record) (Record, error) {
	return r.register(ctx, Sponsors, record, SponsorRequiredFields)
}

func (r *Repository) register(ctx context.Context, c Collection, record Record, required []string) (Record, error) {
	if err := CheckRecord(record, required); err != nil {
		return nil, err
	}
	return r.Insert(ctx, c, record)
}

// CheckRecord runs the presence checks plus the email and state shape checks
// for fields that are filled in.
func CheckRecord(record Record, required []string) error {
	messages := Validate(record, required)

	if email := strings.TrimSpace(record.String(FieldEmail)); email != "" {
		if ValidateEmail(email) != nil {
			messages = append(messages, "email is invalid")
		}
	}
	if state := strings.TrimSpace(record.String(FieldState)); state != "" {
		if !site.IsNigerianState(state) {
			messages = append(messages, "state is invalid")
		}
	}

	if len(messages) > 0 {
		return &ValidationError{Messages: messages}
	}
	return nil
}

// Enqueue adds record to a pending queue.
func (r *Repository) Enqueue(ctx context.Context, queue Collection, record Record) (Record, error) {
	if !queue.IsQueue() {
		return nil, fmt.Errorf("%w: %s", ErrNotQueue, queue)
	}
	return r.Insert(ctx, queue, record)
}

// Dequeue removes the record with id from a pending queue. Registration
// collections stay append-only.
func (r *Repository) Dequeue(ctx context.Context, queue Collection, id string) (Record, bool, error) {
	if !queue.IsQueue() {
		return nil, false, fmt.Errorf("%w: %s", ErrNotQueue, queue)
	}

	var (
		removed Record
		found   bool
	)
	err := r.backend.Update(ctx, string(queue), func(current []byte, exists bool) ([]byte, error) {
		records := r.decode(queue, current, exists)
		kept := make([]Record, 0, len(records))
		removed, found = nil, false
		for _, rec := range records {
			if !found && rec.ID() == id {
				removed, found = rec, true
				continue
			}
			kept = append(kept, rec)
		}
		if !found {
			return current, nil
		}
		return json.Marshal(kept)
	})
	if err != nil {
		return nil, false, err
	}
	if found {
		r.changed(ctx, queue)
	}
	return removed, found, nil
}

// Requeue puts a record taken by Dequeue back on its queue with its id and
// date intact.
func (r *Repository) Requeue(ctx context.Context, queue Collection, record Record) error {
	if !queue.IsQueue() {
		return fmt.Errorf("%w: %s", ErrNotQueue, queue)
	}
	err := r.backend.Update(ctx, string(queue), func(current []byte, exists bool) ([]byte, error) {
		records := r.decode(queue, current, exists)
		for _, rec := range records {
			if rec.ID() == record.ID() {
				return current, nil
			}
		}
		return json.Marshal(append(records, record.Clone()))
	})
	if err != nil {
		return err
	}
	r.changed(ctx, queue)
	return nil
}

// IsQueue reports whether c is a pending queue.
func (c Collection) IsQueue() bool {
	return strings.HasPrefix(string(c), "pending_")
}

// decode parses a collection payload. Anything that is not a JSON array is
// treated as an empty collection; the next write replaces it.
func (r *Repository) decode(c Collection, payload []byte, exists bool) []Record {
	if !exists || len(bytes.TrimSpace(payload)) == 0 {
		return []Record{}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		r.logger.Warn("unreadable collection treated as empty",
			zap.String("collection", string(c)),
			zap.Int("bytes", len(payload)),
			zap.Error(err),
		)
		return []Record{}
	}

	records := make([]Record, 0, len(raw))
	for i, item := range raw {
		rec, ok := decodeRecord(c, item)
		if !ok {
			r.logger.Warn("skipping unreadable record",
				zap.String("collection", string(c)),
				zap.Int("index", i),
			)
			continue
		}
		records = append(records, rec)
	}
	return records
}

func decodeRecord(c Collection, item json.RawMessage) (Record, bool) {
	dec := json.NewDecoder(bytes.NewReader(item))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	switch t := v.(type) {
	case map[string]any:
		return Record(t), true
	case string:
		// Older newsletter payloads stored bare addresses.
		if c == Subscribers {
			return Record{FieldEmail: t}, true
		}
		return Record{"value": t}, true
	default:
		return nil, false
	}
}

// nextID returns "<PREFIX>_<unix millis>", bumped past any id already in use.
func nextID(c Collection, records []Record, now time.Time) string {
	used := make(map[string]struct{}, len(records))
	for _, rec := range records {
		used[rec.ID()] = struct{}{}
	}

	prefix := c.Prefix()
	stamp := now.UnixMilli()
	for {
		id := fmt.Sprintf("%s_%d", prefix, stamp)
		if _, taken := used[id]; !taken {
			return id
		}
		stamp++
	}
}

const referralAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewReferralCode returns 8 uppercase alphanumeric characters. Codes are not
// checked for uniqueness.
func NewReferralCode() string {
	id := uuid.New()
	code := make([]byte, 8)
	for i := range code {
		code[i] = referralAlphabet[int(id[i])%len(referralAlphabet)]
	}
	return string(code)
}
