package rules

import (
	"fmt"
	"strings"
)

// Kind identifies the media category of an item under evaluation.
// The notification side labels items "Movie"/"Series" while the catalog
// side uses "movie"/"tv"; ParseKind folds both vocabularies.
type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
	KindTV     Kind = "tv"
)

// ParseKind normalizes a media kind label. Returns false for labels the
// pipeline does not process (episodes, seasons, music and so on).
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie":
		return KindMovie, true
	case "series":
		return KindSeries, true
	case "tv":
		return KindTV, true
	default:
		return "", false
	}
}

// Target is the media kind a rule applies to.
type Target string

const (
	TargetMovie  Target = "movie"
	TargetSeries Target = "series"
	TargetAll    Target = "all"
)

// Conditions holds the metadata constraints of a rule. An empty list means
// the condition is unpopulated and passes for any item.
type Conditions struct {
	Countries []string `json:"countries"`
	GenreIDs  []int    `json:"genre_ids"`
	Years     []int    `json:"years"`
}

// Empty reports whether no condition is populated.
func (c Conditions) Empty() bool {
	return len(c.Countries) == 0 && len(c.GenreIDs) == 0 && len(c.Years) == 0
}

// Rule maps a metadata pattern to a single tag.
type Rule struct {
	Name       string     `json:"name"`
	Tag        string     `json:"tag"`
	Conditions Conditions `json:"conditions"`
	ItemType   Target     `json:"item_type"`
	MatchAll   bool       `json:"match_all_conditions"`
	Negate     bool       `json:"is_negative_match"`
}

// Validate rejects malformed rules instead of defaulting missing fields.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Tag) == "" {
		return fmt.Errorf("tag must not be empty")
	}
	switch r.ItemType {
	case TargetMovie, TargetSeries, TargetAll:
	default:
		return fmt.Errorf("item_type must be movie, series or all, got %q", r.ItemType)
	}
	for _, c := range r.Conditions.Countries {
		if len(c) != 2 {
			return fmt.Errorf("country code %q is not ISO 3166-1 alpha-2", c)
		}
	}
	for _, g := range r.Conditions.GenreIDs {
		if g <= 0 {
			return fmt.Errorf("genre id %d is not positive", g)
		}
	}
	for _, y := range r.Conditions.Years {
		if y < 1800 || y > 2200 {
			return fmt.Errorf("year %d out of range", y)
		}
	}
	return nil
}

// Normalize uppercases country codes so matching is exact against the
// ISO codes the catalog returns.
func (r *Rule) Normalize() {
	for i, c := range r.Conditions.Countries {
		r.Conditions.Countries[i] = strings.ToUpper(c)
	}
}
