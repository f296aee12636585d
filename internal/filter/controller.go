package filter

import (
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/greenery-map/internal/selection"
	"github.com/joeblew999/greenery-map/internal/species"
)

// Sink receives each recomputed feature collection, replacing whatever it
// displayed before.
type Sink interface {
	Replace(fc *geojson.FeatureCollection)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(fc *geojson.FeatureCollection)

// Replace calls f(fc).
func (f SinkFunc) Replace(fc *geojson.FeatureCollection) { f(fc) }

// Event is a selection change reported by the UI.
type Event interface {
	// Kind names the event for logs and metrics.
	Kind() string
}

// Toggle checks or unchecks a single control.
type Toggle struct {
	Key     species.Key
	Checked bool
}

// SelectAll checks or unchecks every selectable control.
type SelectAll struct {
	Active bool
}

// Pick is a click on a search suggestion. It checks the suggested control.
type Pick struct {
	Key species.Key
}

func (Toggle) Kind() string    { return "toggle" }
func (SelectAll) Kind() string { return "select_all" }
func (Pick) Kind() string      { return "pick" }

// Initial is the selection a new viewer starts with.
type Initial string

const (
	InitialAll  Initial = "all"
	InitialNone Initial = "none"
)

// ParseInitial parses an initial selection name.
func ParseInitial(s string) (Initial, error) {
	switch Initial(s) {
	case InitialAll, InitialNone:
		return Initial(s), nil
	case "":
		return InitialAll, nil
	}
	return "", fmt.Errorf("unknown initial selection %q (want all or none)", s)
}

// NewStore builds the starting store for a ranking.
func NewStore(r species.Ranking, initial Initial) *selection.Store {
	if initial == InitialNone {
		return selection.New()
	}
	return selection.New(r.Selectable()...)
}

// Item is one selectable control as shown to the user.
type Item struct {
	Key      species.Key `json:"key" doc:"Selection key"`
	Label    string      `json:"label" doc:"Display label"`
	Count    int         `json:"count" doc:"Number of trees behind the control"`
	Selected bool        `json:"selected" doc:"Whether the control is checked"`
}

// Controller applies UI events to a selection store and pushes the resulting
// feature subset to a Sink. It owns the store exclusively.
//
// Controller is not safe for concurrent use; each event must finish before
// the next is dispatched.
type Controller struct {
	all     *geojson.FeatureCollection
	ranking species.Ranking
	store   *selection.Store
	sink    Sink
}

// NewController wires a controller. sink may be nil.
func NewController(all *geojson.FeatureCollection, r species.Ranking, store *selection.Store, sink Sink) *Controller {
	if store == nil {
		store = selection.New()
	}
	return &Controller{all: all, ranking: r, store: store, sink: sink}
}

// Start renders the current selection.
func (c *Controller) Start() *geojson.FeatureCollection {
	return c.render()
}

// Dispatch applies ev to the store, recomputes the active features and hands
// them to the sink.
func (c *Controller) Dispatch(ev Event) *geojson.FeatureCollection {
	switch e := ev.(type) {
	case Toggle:
		c.toggle(e.Key, e.Checked)
	case SelectAll:
		c.store.SetAll(c.ranking.Selectable(), e.Active)
	case Pick:
		c.toggle(e.Key, true)
	}
	return c.render()
}

func (c *Controller) toggle(k species.Key, checked bool) {
	if k == species.SelectAll {
		c.store.SetAll(c.ranking.Selectable(), checked)
		return
	}
	if checked {
		c.store.Add(k)
	} else {
		c.store.Remove(k)
	}
}

func (c *Controller) render() *geojson.FeatureCollection {
	fc := c.Active()
	if c.sink != nil {
		c.sink.Replace(fc)
	}
	return fc
}

// Active recomputes the active features without notifying the sink.
func (c *Controller) Active() *geojson.FeatureCollection {
	return ActiveFeatures(c.all, c.ranking, c.store)
}

// Rebind swaps in a reloaded dataset and its ranking, keeping the selection,
// and renders.
func (c *Controller) Rebind(all *geojson.FeatureCollection, r species.Ranking) *geojson.FeatureCollection {
	c.all = all
	c.ranking = r
	return c.render()
}

// Ranking returns the ranking the controller filters with.
func (c *Controller) Ranking() species.Ranking {
	return c.ranking
}

// Selected returns a snapshot of the selected keys.
func (c *Controller) Selected() []species.Key {
	return c.store.Keys()
}

// AllSelected reports whether every selectable control is checked.
func (c *Controller) AllSelected() bool {
	return c.store.ContainsAll(c.ranking.Selectable())
}

// Items lists the Top controls followed by the Other bucket.
func (c *Controller) Items() []Item {
	return c.items(c.ranking.Selectable())
}

// Suggest returns the controls matching a search query.
func (c *Controller) Suggest(query string) []Item {
	return c.items(Search(query, c.ranking))
}

func (c *Controller) items(keys []species.Key) []Item {
	items := make([]Item, 0, len(keys))
	for _, k := range keys {
		items = append(items, Item{
			Key:      k,
			Label:    k.Label(),
			Count:    c.ranking.Count(k),
			Selected: c.store.Contains(k),
		})
	}
	return items
}
