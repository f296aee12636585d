package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joeblew999/greenery-map/internal/species"
)

func TestStore_AddIsIdempotent(t *testing.T) {
	s := New()
	s.Add("Oak")
	once := s.Keys()

	s.Add("Oak")

	assert.Equal(t, once, s.Keys())
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains("Oak"))
}

func TestStore_RemoveAbsentIsNoop(t *testing.T) {
	s := New("Oak")

	s.Remove("Maple")

	assert.Equal(t, []species.Key{"Oak"}, s.Keys())

	s.Remove("Oak")
	s.Remove("Oak")
	assert.Zero(t, s.Len())
	assert.False(t, s.Contains("Oak"))
}

func TestStore_SetAll(t *testing.T) {
	keys := []species.Key{"Oak", "Maple", species.Other}
	s := New("Ash")

	s.SetAll(keys, true)
	assert.True(t, s.ContainsAll(keys))
	assert.Equal(t, 4, s.Len())

	s.SetAll(keys, false)
	assert.Equal(t, []species.Key{"Ash"}, s.Keys())
	assert.False(t, s.ContainsAll(keys))
}

func TestStore_AcceptsSentinelsAndStaleKeys(t *testing.T) {
	s := New()
	s.Add(species.Other)
	s.Add("NotInAnyRanking")

	assert.True(t, s.Contains(species.Other))
	assert.True(t, s.Contains("NotInAnyRanking"))
	assert.Equal(t, []species.Key{"NotInAnyRanking", species.Other}, s.Keys())
}
