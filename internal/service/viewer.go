package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/joeblew999/greenery-map/internal/config"
	"github.com/joeblew999/greenery-map/internal/dataset"
	"github.com/joeblew999/greenery-map/internal/filter"
	"github.com/joeblew999/greenery-map/internal/metrics"
	"github.com/joeblew999/greenery-map/internal/render"
	"github.com/joeblew999/greenery-map/internal/species"
)

// ErrSessionNotFound is returned for unknown or closed session ids.
var ErrSessionNotFound = errors.New("session not found")

// Viewer owns the loaded dataset, its ranking and the live sessions.
type Viewer struct {
	cfg  *config.Config
	log  *zap.Logger
	bus  *EventBus
	agg  *species.Aggregator
	opts render.Options

	mu       sync.RWMutex
	data     *dataset.Dataset
	ranking  species.Ranking
	loaded   time.Time
	sessions map[string]*Session
}

// NewViewer ranks ds and returns a viewer with no sessions.
func NewViewer(cfg *config.Config, ds *dataset.Dataset, log *zap.Logger) (*Viewer, error) {
	stops := make([]render.Stop, len(cfg.Grid.Ramp))
	for i, s := range cfg.Grid.Ramp {
		stops[i] = render.Stop{Score: s.Score, Color: s.Color}
	}
	ramp, err := render.NewRamp(stops)
	if err != nil {
		return nil, fmt.Errorf("grid ramp: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	v := &Viewer{
		cfg: cfg,
		log: log,
		bus: NewEventBus(),
		agg: species.NewAggregator(cfg.Species.Property),
		opts: render.Options{
			SpeciesProperty: cfg.Species.Property,
			Ramp:            ramp,
			Cluster: render.ClusterOptions{
				Radius:    cfg.Cluster.Radius,
				MaxZoom:   cfg.Cluster.MaxZoom,
				MinPoints: cfg.Cluster.MinPoints,
			},
		},
		sessions: make(map[string]*Session),
	}
	v.swap(ds)
	return v, nil
}

func (v *Viewer) swap(ds *dataset.Dataset) species.Ranking {
	if ds.Trees == nil {
		ds.Trees = geojson.NewFeatureCollection()
	}
	if ds.Grid == nil {
		ds.Grid = geojson.NewFeatureCollection()
	}
	r := v.agg.Rank(ds.Trees, v.cfg.Species.TopN)
	v.data = ds
	v.ranking = r
	v.loaded = time.Now()
	return r
}

// Bus returns the viewer's event bus.
func (v *Viewer) Bus() *EventBus {
	return v.bus
}

// Dataset returns the current snapshot.
func (v *Viewer) Dataset() *dataset.Dataset {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.data
}

// Ranking returns the ranking of the current snapshot.
func (v *Viewer) Ranking() species.Ranking {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ranking
}

// Loaded returns when the current snapshot was installed.
func (v *Viewer) Loaded() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.loaded
}

// Grid returns the grid of the current snapshot with its choropleth fill
// colors.
func (v *Viewer) Grid() *geojson.FeatureCollection {
	v.mu.RLock()
	grid, opts := v.data.Grid, v.opts
	v.mu.RUnlock()
	return render.NewScene(grid, opts).Grid()
}

// Search matches a query against the current ranking without a session.
func (v *Viewer) Search(query string) []species.Key {
	return filter.Search(query, v.Ranking())
}

// MapView returns the configured camera and basemap.
func (v *Viewer) MapView() MapView {
	m := v.cfg.Map
	ramp := make([]RampStop, len(v.cfg.Grid.Ramp))
	for i, s := range v.cfg.Grid.Ramp {
		ramp[i] = RampStop{Score: s.Score, Color: s.Color}
	}
	return MapView{
		StyleURL:    m.StyleURL,
		AccessToken: m.AccessToken,
		Center:      m.Center,
		Zoom:        m.Zoom,
		MinZoom:     m.MinZoom,
		MaxZoom:     m.MaxZoom,
		Bounds:      m.Bounds,
		GridOpacity: v.cfg.Grid.Opacity,
		Ramp:        ramp,
	}
}

// ResetView returns the initial camera.
func (v *Viewer) ResetView() Camera {
	return Camera{Center: v.cfg.Map.Center, Zoom: v.cfg.Map.Zoom}
}

// Open starts a session with the configured initial selection.
func (v *Viewer) Open() *Session {
	v.mu.Lock()
	s := newSession(uuid.NewString(), v.data, v.ranking, v.cfg.Species.Initial(), v.opts)
	v.sessions[s.id] = s
	n := len(v.sessions)
	v.mu.Unlock()

	metrics.Sessions.Set(float64(n))
	v.log.Debug("session opened", zap.String("session", s.id))
	v.bus.Publish(Event{Session: s.id, Action: ActionOpened, Active: len(s.Active().Features)})
	return s
}

// Session looks up a live session.
func (v *Viewer) Session(id string) (*Session, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s, ok := v.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Touch()
	return s, nil
}

// Sessions lists the live session ids, sorted.
func (v *Viewer) Sessions() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	ids := make([]string, 0, len(v.sessions))
	for id := range v.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close ends a session.
func (v *Viewer) Close(id string) error {
	v.mu.Lock()
	if _, ok := v.sessions[id]; !ok {
		v.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(v.sessions, id)
	n := len(v.sessions)
	v.mu.Unlock()

	metrics.Sessions.Set(float64(n))
	v.log.Debug("session closed", zap.String("session", id))
	v.bus.Publish(Event{Session: id, Action: ActionClosed})
	return nil
}

// Expire closes the sessions with no open event stream that were last used
// more than the configured idle TTL before now, and returns their ids.
// A zero TTL expires nothing.
func (v *Viewer) Expire(now time.Time) []string {
	ttl := v.cfg.Session.IdleTTL
	if ttl <= 0 {
		return nil
	}
	cutoff := now.Add(-ttl)

	v.mu.Lock()
	var expired []string
	for id, s := range v.sessions {
		if s.idle(cutoff) {
			delete(v.sessions, id)
			expired = append(expired, id)
		}
	}
	n := len(v.sessions)
	v.mu.Unlock()

	if len(expired) == 0 {
		return nil
	}
	sort.Strings(expired)
	metrics.Sessions.Set(float64(n))
	for _, id := range expired {
		v.bus.Publish(Event{Session: id, Action: ActionClosed})
	}
	v.log.Info("idle sessions expired", zap.Int("expired", len(expired)), zap.Int("sessions", n))
	return expired
}

// RunExpiry calls Expire every sweep interval until ctx is cancelled. It
// returns at once when idle expiry is disabled.
func (v *Viewer) RunExpiry(ctx context.Context) {
	if v.cfg.Session.IdleTTL <= 0 || v.cfg.Session.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(v.cfg.Session.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			v.Expire(now)
		}
	}
}

// Dispatch applies a selection event to session id and returns the new
// session state.
func (v *Viewer) Dispatch(id string, ev filter.Event) (SessionState, error) {
	return v.DispatchFrom("", id, ev)
}

// DispatchFrom is Dispatch for an event raised by browser tab origin. The
// published event carries the origin so the tab can skip its own echo.
func (v *Viewer) DispatchFrom(origin, id string, ev filter.Event) (SessionState, error) {
	s, err := v.Session(id)
	if err != nil {
		return SessionState{}, err
	}

	start := time.Now()
	active := s.Dispatch(ev)
	metrics.RecomputeDuration.Observe(time.Since(start).Seconds())
	metrics.ActiveFeatures.Observe(float64(active))
	metrics.SelectionEventsTotal.WithLabelValues(ev.Kind()).Inc()

	v.log.Debug("selection event",
		zap.String("session", id),
		zap.String("kind", ev.Kind()),
		zap.Int("active", active),
	)
	v.bus.Publish(Event{Session: id, Origin: origin, Action: ev.Kind(), Active: active})
	return s.State(), nil
}

// Reload installs a new dataset snapshot and rebinds every session to it,
// keeping each session's selection.
func (v *Viewer) Reload(ds *dataset.Dataset) {
	v.mu.Lock()
	r := v.swap(ds)
	sessions := make([]*Session, 0, len(v.sessions))
	for _, s := range v.sessions {
		sessions = append(sessions, s)
	}
	v.mu.Unlock()

	for _, s := range sessions {
		s.rebind(ds, r)
	}

	metrics.DatasetReloadsTotal.WithLabelValues("ok").Inc()
	v.log.Info("dataset reloaded",
		zap.Int("trees", len(ds.Trees.Features)),
		zap.Int("grid", len(ds.Grid.Features)),
		zap.Int("species", len(r.Counts)),
		zap.Int("sessions", len(sessions)),
	)
	v.bus.Publish(Event{Action: ActionReload})
}
