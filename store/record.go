package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// System fields assigned by the store.
const (
	FieldID               = "id"
	FieldRegistrationDate = "registrationDate"
	FieldReferralCode     = "referralCode"
	FieldReferrals        = "referrals"
	FieldEmail            = "email"
	FieldState            = "state"
)

// Collection names a slot in the backend holding one JSON array of records.
type Collection string

const (
	Teams       Collection = "registered_teams"
	Fans        Collection = "registered_fans"
	Subscribers Collection = "newsletter_subscribers"
	Sponsors    Collection = "sponsor_inquiries"

	PendingTeams    Collection = "pending_team_registrations"
	PendingFans     Collection = "pending_fan_registrations"
	PendingSponsors Collection = "pending_sponsor_inquiries"
)

// Prefix returns the id prefix of records in the collection.
func (c Collection) Prefix() string {
	switch c {
	case Teams:
		return "TEAM"
	case Fans:
		return "FAN"
	case Subscribers:
		return "SUB"
	case Sponsors:
		return "SPONSOR"
	}
	if strings.HasPrefix(string(c), "pending_") {
		return "PENDING"
	}
	return "REC"
}

// Record is one stored entry: free-form fields plus the system fields.
type Record map[string]any

// ID returns the record id, or "".
func (r Record) ID() string { return r.String(FieldID) }

// String returns the field as a string. Numbers and booleans are formatted;
// absent and null fields are "".
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Referrals returns the referral count, treating missing or unusable values as 0.
func (r Record) Referrals() int {
	switch t := r[FieldReferrals].(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		if math.IsNaN(t) {
			return 0
		}
		return int(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return 0
			}
			return int(f)
		}
		return int(n)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
