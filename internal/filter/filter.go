// Package filter turns a species selection into the set of features to draw.
package filter

import (
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/greenery-map/internal/selection"
	"github.com/joeblew999/greenery-map/internal/species"
)

// ActiveKeys returns the data keys enabled by sel: every Top key in sel, plus
// the whole Others bucket when sel holds species.Other. A nil sel is an
// empty selection.
func ActiveKeys(r species.Ranking, sel *selection.Store) map[species.Key]struct{} {
	active := make(map[species.Key]struct{}, len(r.Top))
	if sel == nil {
		return active
	}
	for _, k := range r.Top {
		if sel.Contains(k) {
			active[k] = struct{}{}
		}
	}
	if sel.Contains(species.Other) {
		for _, k := range r.Others {
			active[k] = struct{}{}
		}
	}
	return active
}

// ActiveFeatures returns a new collection with the features of all whose
// species key is active under sel, in their original order. all is not
// modified; the returned collection shares its feature pointers.
func ActiveFeatures(all *geojson.FeatureCollection, r species.Ranking, sel *selection.Store) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	if all == nil {
		return out
	}

	active := ActiveKeys(r, sel)
	if len(active) == 0 {
		return out
	}

	for _, f := range all.Features {
		if _, ok := active[r.KeyOf(f)]; ok {
			out.Append(f)
		}
	}
	return out
}

// otherAliases are the extra phrases the Other bucket answers to.
var otherAliases = []string{"other", "other species"}

// Search returns the selectable keys whose label contains query, ignoring
// case. Candidates are the Top keys followed by species.Other. A blank query
// yields no suggestions.
func Search(query string, r species.Ranking) []species.Key {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var matches []species.Key
	for _, k := range r.Selectable() {
		if matchesKey(k, q) {
			matches = append(matches, k)
		}
	}
	return matches
}

func matchesKey(k species.Key, q string) bool {
	if strings.Contains(strings.ToLower(k.Label()), q) {
		return true
	}
	if k != species.Other {
		return false
	}
	for _, alias := range otherAliases {
		if strings.Contains(alias, q) || strings.Contains(q, alias) {
			return true
		}
	}
	return false
}
