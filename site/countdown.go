package site

import (
	"fmt"
	"time"
)

// TournamentStart is the default countdown target.
var TournamentStart = time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)

// Remaining is the time left before a target, split for display.
type Remaining struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
	// Live is set once the target has been reached; all parts are zero.
	Live bool `json:"live"`
}

// Countdown splits the time between now and target.
func Countdown(now, target time.Time) Remaining {
	distance := target.Sub(now)
	if distance <= 0 {
		return Remaining{Live: true}
	}

	ms := distance.Milliseconds()
	const (
		second = int64(1000)
		minute = 60 * second
		hour   = 60 * minute
		day    = 24 * hour
	)
	return Remaining{
		Days:    ms / day,
		Hours:   (ms % day) / hour,
		Minutes: (ms % hour) / minute,
		Seconds: (ms % minute) / second,
	}
}

// String renders the countdown as DD:HH:MM:SS, or the live banner.
func (r Remaining) String() string {
	if r.Live {
		return "Tournament is Live!"
	}
	return fmt.Sprintf("%02d:%02d:%02d:%02d", r.Days, r.Hours, r.Minutes, r.Seconds)
}
