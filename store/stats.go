package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/goliatone/go-offline-store/site"
)

// FieldAmount is the pledged amount on a sponsor inquiry, in naira.
const FieldAmount = "amount"

// Stats are the headline numbers shown on the fan zone.
type Stats struct {
	Teams       int     `json:"teams"`
	Fans        int     `json:"fans"`
	Subscribers int     `json:"subscribers"`
	Sponsors    int     `json:"sponsors"`
	Referrals   int     `json:"referrals"`
	Pledged     float64 `json:"pledged"`
	PledgedText string  `json:"pledged_text"`
}

// CollectStats counts the registration collections through s, so a cached
// store serves them from cache.
func CollectStats(ctx context.Context, s Store) (Stats, error) {
	var st Stats

	counts := []struct {
		c   Collection
		dst *int
	}{
		{Teams, &st.Teams},
		{Subscribers, &st.Subscribers},
	}
	for _, item := range counts {
		records, err := s.ReadAll(ctx, item.c)
		if err != nil {
			return Stats{}, err
		}
		*item.dst = len(records)
	}

	fans, err := s.ReadAll(ctx, Fans)
	if err != nil {
		return Stats{}, err
	}
	st.Fans = len(fans)
	for _, fan := range fans {
		st.Referrals += fan.Referrals()
	}

	sponsors, err := s.ReadAll(ctx, Sponsors)
	if err != nil {
		return Stats{}, err
	}
	st.Sponsors = len(sponsors)
	for _, sp := range sponsors {
		// unparseable amounts count as nothing pledged
		if v, err := strconv.ParseFloat(strings.TrimSpace(sp.String(FieldAmount)), 64); err == nil && v > 0 {
			st.Pledged += v
		}
	}
	st.PledgedText = site.FormatNaira(st.Pledged)
	return st, nil
}
