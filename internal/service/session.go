package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/greenery-map/internal/dataset"
	"github.com/joeblew999/greenery-map/internal/filter"
	"github.com/joeblew999/greenery-map/internal/render"
	"github.com/joeblew999/greenery-map/internal/species"
)

// Session is one browser's filter state: a controller over the shared tree
// collection and the scene it renders into. Events on a session run one at
// a time.
type Session struct {
	id      string
	created time.Time

	// seen is the unix nano time of the last request; streams counts open
	// event streams. Both feed idle expiry.
	seen    atomic.Int64
	streams atomic.Int32

	mu    sync.Mutex
	ctrl  *filter.Controller
	scene *render.Scene
}

func newSession(id string, ds *dataset.Dataset, r species.Ranking, initial filter.Initial, opts render.Options) *Session {
	scene := render.NewScene(ds.Grid, opts)
	s := &Session{
		id:      id,
		created: time.Now(),
		ctrl:    filter.NewController(ds.Trees, r, filter.NewStore(r, initial), scene),
		scene:   scene,
	}
	s.seen.Store(s.created.UnixNano())
	s.ctrl.Start()
	return s
}

// Touch marks the session as used now.
func (s *Session) Touch() {
	s.seen.Store(time.Now().UnixNano())
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.seen.Load())
}

// Attach records an open event stream. The session does not expire until
// the returned func is called.
func (s *Session) Attach() (detach func()) {
	s.streams.Add(1)
	s.Touch()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.Touch()
			s.streams.Add(-1)
		})
	}
}

// idle reports whether the session has no open stream and was last used
// before cutoff.
func (s *Session) idle(cutoff time.Time) bool {
	return s.streams.Load() == 0 && s.LastSeen().Before(cutoff)
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Scene returns the session's render scene.
func (s *Session) Scene() *render.Scene {
	return s.scene
}

// Dispatch applies one selection event and returns how many trees are shown.
func (s *Session) Dispatch(ev filter.Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ctrl.Dispatch(ev).Features)
}

// State returns the selection summary.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{
		ID:          s.id,
		Created:     s.created,
		Selected:    s.ctrl.Selected(),
		AllSelected: s.ctrl.AllSelected(),
		Active:      len(s.scene.Trees().Features),
		Items:       s.ctrl.Items(),
	}
}

// Items lists the checkbox controls.
func (s *Session) Items() []filter.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Items()
}

// Suggest returns the controls matching a search query.
func (s *Session) Suggest(query string) []filter.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Suggest(query)
}

// AllSelected reports whether the select-all box is checked.
func (s *Session) AllSelected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.AllSelected()
}

// Active returns the displayed trees.
func (s *Session) Active() *geojson.FeatureCollection {
	return s.scene.Trees()
}

// Click resolves a map click at zoom into a popup.
func (s *Session) Click(p orb.Point, zoom int) (render.Popup, bool) {
	return s.scene.Click(p, zoom, render.DefaultTolerance)
}

// ExpansionZoom returns the zoom that breaks a cluster apart.
func (s *Session) ExpansionZoom(clusterID uint64) (int, error) {
	return s.scene.ExpansionZoom(clusterID)
}

// Tile encodes one vector tile of the session's scene.
func (s *Session) Tile(z, x, y uint32) ([]byte, error) {
	return s.scene.Tile(z, x, y)
}

func (s *Session) rebind(ds *dataset.Dataset, r species.Ranking) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scene.SetGrid(ds.Grid)
	return len(s.ctrl.Rebind(ds.Trees, r).Features)
}
