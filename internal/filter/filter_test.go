package filter

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/greenery-map/internal/selection"
	"github.com/joeblew999/greenery-map/internal/species"
)

// trees builds one point per label; x is the feature index so order can be
// checked after filtering.
func trees(labels ...any) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, l := range labels {
		f := geojson.NewFeature(orb.Point{float64(i), 0})
		if l != nil {
			f.Properties[species.DefaultProperty] = l
		}
		fc.Append(f)
	}
	return fc
}

func indexes(fc *geojson.FeatureCollection) []int {
	out := make([]int, 0, len(fc.Features))
	for _, f := range fc.Features {
		out = append(out, int(f.Geometry.(orb.Point).X()))
	}
	return out
}

func example() (*geojson.FeatureCollection, species.Ranking) {
	fc := trees("Oak", "Oak", "Maple", "", nil, "Oak")
	return fc, species.NewAggregator("").Rank(fc, 1)
}

func TestActiveFeatures_WorkedExample(t *testing.T) {
	fc, r := example()
	sel := selection.New("Oak")

	got := ActiveFeatures(fc, r, sel)
	assert.Equal(t, []int{0, 1, 5}, indexes(got))

	sel.Add(species.Other)
	got = ActiveFeatures(fc, r, sel)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, indexes(got))
}

func TestActiveFeatures_EmptySelection(t *testing.T) {
	fc, r := example()

	got := ActiveFeatures(fc, r, selection.New())

	require.NotNil(t, got)
	assert.Empty(t, got.Features)
}

func TestActiveFeatures_NilSelection(t *testing.T) {
	fc, r := example()

	assert.Empty(t, ActiveKeys(r, nil))
	got := ActiveFeatures(fc, r, nil)
	require.NotNil(t, got)
	assert.Empty(t, got.Features)
}

func TestActiveFeatures_OtherOnly(t *testing.T) {
	fc, r := example()

	got := ActiveFeatures(fc, r, selection.New(species.Other))

	assert.Equal(t, []int{2, 3, 4}, indexes(got))
}

func TestActiveFeatures_OtherKeyIndividuallyIsIgnored(t *testing.T) {
	fc, r := example()

	// Maple lives in the other bucket; only __OTHER__ can enable it.
	got := ActiveFeatures(fc, r, selection.New("Maple", "Unknown"))

	assert.Empty(t, got.Features)
}

func TestActiveFeatures_StaleKey(t *testing.T) {
	fc, r := example()

	got := ActiveFeatures(fc, r, selection.New("Sequoia", "Oak"))

	assert.Equal(t, []int{0, 1, 5}, indexes(got))
}

func TestActiveFeatures_DoesNotMutateInput(t *testing.T) {
	fc, r := example()
	before := indexes(fc)

	out := ActiveFeatures(fc, r, selection.New("Oak"))
	out.Features = out.Features[:0]

	assert.Equal(t, before, indexes(fc))
	assert.Len(t, fc.Features, 6)
}

func TestActiveFeatures_SelectAllRoundTrip(t *testing.T) {
	fc := trees("Elm", "Ash", "", "Elm", "Birch", "Ash", "Cedar", nil)
	r := species.NewAggregator("").Rank(fc, 2)
	sel := selection.New()

	sel.SetAll(r.Selectable(), true)
	assert.Equal(t, indexes(fc), indexes(ActiveFeatures(fc, r, sel)))

	sel.SetAll(r.Selectable(), false)
	assert.Empty(t, ActiveFeatures(fc, r, sel).Features)
}

func TestActiveKeys(t *testing.T) {
	_, r := example()

	keys := ActiveKeys(r, selection.New(species.Other))

	assert.Contains(t, keys, species.Key("Maple"))
	assert.Contains(t, keys, species.Unknown)
	assert.NotContains(t, keys, species.Key("Oak"))
}

func TestSearch(t *testing.T) {
	fc := trees("Red Maple", "Red Maple", "Oak", "Oak", "Oak", "Sugar Maple", "Sugar Maple", "Ash")
	r := species.NewAggregator("").Rank(fc, 3)
	require.Equal(t, []species.Key{"Oak", "Red Maple", "Sugar Maple"}, r.Top)

	tests := []struct {
		query string
		want  []species.Key
	}{
		{"maple", []species.Key{"Red Maple", "Sugar Maple"}},
		{"MAPLE", []species.Key{"Red Maple", "Sugar Maple"}},
		{"  oak ", []species.Key{"Oak"}},
		{"ash", nil}, // Ash is only reachable through the other bucket
		{"oth", []species.Key{species.Other}},
		{"other", []species.Key{species.Other}},
		{"Other Species", []species.Key{species.Other}},
		{"show other trees", []species.Key{species.Other}},
		{"spec", []species.Key{species.Other}},
		{"", nil},
		{"   ", nil},
		{"zzz", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Search(tt.query, r), "query %q", tt.query)
	}
}
