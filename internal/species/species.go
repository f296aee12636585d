// Package species ranks tree species in a feature collection.
//
// A Ranking splits the normalized species keys of a collection into the
// individually listed top-N keys and the "other" bucket. Unknown (missing or
// blank species) is never listed individually.
package species

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// Key is the normalized identity of a species.
type Key string

const (
	// Unknown is the key of features with a missing or blank species.
	Unknown Key = "Unknown"

	// Other selects every species in the other bucket at once.
	Other Key = "__OTHER__"

	// SelectAll is the bulk toggle control key. It never appears in data.
	SelectAll Key = "__SELECT-ALL__"
)

// DefaultProperty is the feature property holding the species label.
const DefaultProperty = "Species"

// OtherLabel is the display label of the Other bucket.
const OtherLabel = "Other species"

// Label returns the display label for a key.
func (k Key) Label() string {
	switch k {
	case Other:
		return OtherLabel
	case SelectAll:
		return "Select all"
	}
	return string(k)
}

// Reserved reports whether k is one of the control sentinels.
func (k Key) Reserved() bool {
	return k == Other || k == SelectAll
}

// Normalize maps a raw property value to a Key.
func Normalize(v any) Key {
	var s string
	switch t := v.(type) {
	case nil:
		return Unknown
	case string:
		s = t
	default:
		s = fmt.Sprint(t)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	return Key(s)
}

// Aggregator computes rankings keyed on a single feature property.
type Aggregator struct {
	property string
}

// NewAggregator creates an aggregator reading the given property.
// An empty property falls back to DefaultProperty.
func NewAggregator(property string) *Aggregator {
	if property == "" {
		property = DefaultProperty
	}
	return &Aggregator{property: property}
}

// Property returns the species property name.
func (a *Aggregator) Property() string {
	return a.property
}

// KeyOf returns the normalized species key of a feature.
func (a *Aggregator) KeyOf(f *geojson.Feature) Key {
	return keyOf(a.property, f)
}

func keyOf(property string, f *geojson.Feature) Key {
	if f == nil || f.Properties == nil {
		return Unknown
	}
	return Normalize(f.Properties[property])
}

// Rank tallies species in fc and splits them into the top topN keys and the
// rest. The result does not depend on any earlier call.
func (a *Aggregator) Rank(fc *geojson.FeatureCollection, topN int) Ranking {
	r := Ranking{
		property: a.property,
		Counts:   map[Key]int{},
		Top:      []Key{},
		Others:   []Key{},
		top:      map[Key]struct{}{},
	}
	if fc == nil {
		return r
	}

	// first-seen order is the tie breaker
	var order []Key
	for _, f := range fc.Features {
		k := a.KeyOf(f)
		if _, seen := r.Counts[k]; !seen {
			order = append(order, k)
		}
		r.Counts[k]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return r.Counts[order[i]] > r.Counts[order[j]]
	})

	for _, k := range order {
		switch {
		case k == Unknown:
		case len(r.Top) < topN:
			r.Top = append(r.Top, k)
			r.top[k] = struct{}{}
		default:
			r.Others = append(r.Others, k)
		}
	}
	// Unknown is ranked apart from the named species and closes the bucket.
	if _, ok := r.Counts[Unknown]; ok {
		r.Others = append(r.Others, Unknown)
	}
	return r
}

// Ranking is the result of Aggregator.Rank. It is immutable once built.
type Ranking struct {
	property string

	// Counts is the number of features per key.
	Counts map[Key]int
	// Top holds at most N keys in descending count order, never Unknown.
	Top []Key
	// Others holds every named key not in Top, in the same order, followed
	// by Unknown when present.
	Others []Key

	top map[Key]struct{}
}

// Property returns the property the ranking was computed from.
func (r Ranking) Property() string {
	if r.property == "" {
		return DefaultProperty
	}
	return r.property
}

// KeyOf normalizes a feature with the ranking's species property.
func (r Ranking) KeyOf(f *geojson.Feature) Key {
	return keyOf(r.Property(), f)
}

// IsTop reports whether k is individually listed.
func (r Ranking) IsTop(k Key) bool {
	_, ok := r.top[k]
	return ok
}

// InOther reports whether k is a known key routed to the other bucket.
func (r Ranking) InOther(k Key) bool {
	if r.IsTop(k) {
		return false
	}
	_, ok := r.Counts[k]
	return ok
}

// Count returns the number of features for k. For Other it is the size of
// the whole bucket.
func (r Ranking) Count(k Key) int {
	if k == Other {
		return r.OtherCount()
	}
	return r.Counts[k]
}

// OtherCount sums the counts of every key in Others.
func (r Ranking) OtherCount() int {
	n := 0
	for _, k := range r.Others {
		n += r.Counts[k]
	}
	return n
}

// Total is the number of features ranked.
func (r Ranking) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

// Selectable returns the keys a user can select: Top followed by Other.
func (r Ranking) Selectable() []Key {
	keys := make([]Key, 0, len(r.Top)+1)
	keys = append(keys, r.Top...)
	return append(keys, Other)
}

// Entry is one ranked key with its count.
type Entry struct {
	Key   Key    `json:"key" doc:"Normalized species key"`
	Label string `json:"label" doc:"Display label"`
	Count int    `json:"count" doc:"Number of trees"`
	Top   bool   `json:"top" doc:"Whether the species is individually listed"`
}

// Entries lists Top then Others with their counts.
func (r Ranking) Entries() []Entry {
	entries := make([]Entry, 0, len(r.Top)+len(r.Others))
	for _, k := range r.Top {
		entries = append(entries, Entry{Key: k, Label: k.Label(), Count: r.Counts[k], Top: true})
	}
	for _, k := range r.Others {
		entries = append(entries, Entry{Key: k, Label: k.Label(), Count: r.Counts[k]})
	}
	return entries
}
