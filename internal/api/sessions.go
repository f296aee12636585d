package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/greenery-map/internal/filter"
	"github.com/joeblew999/greenery-map/internal/humastar"
	"github.com/joeblew999/greenery-map/internal/metrics"
	"github.com/joeblew999/greenery-map/internal/render"
	"github.com/joeblew999/greenery-map/internal/service"
	"github.com/joeblew999/greenery-map/internal/species"
)

const sessionsPath = "/api/v1/sessions"

// TileType is the media type of session tiles.
const TileType = "application/vnd.mapbox-vector-tile"

var sessionActions = []humastar.ActionDef{
	{Rel: "select-all", Pattern: sessionsPath + "/%s/events", Method: "POST", Title: "Check or uncheck every species"},
	{Rel: "features", Pattern: sessionsPath + "/%s/features", Method: "GET", Title: "Trees currently shown"},
	{Rel: "close", Pattern: sessionsPath + "/%s", Method: "DELETE", Title: "End the session"},
}

// SessionBody is a session summary with its hypermedia actions.
type SessionBody struct {
	service.SessionState
}

// Actions implements humastar.Actor.
func (b SessionBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.ID, sessionActions...)
}

type SessionInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type SessionOutput struct {
	Body SessionBody
}

// RegisterSessions registers the session routes.
func (h *APIHandler) RegisterSessions(api huma.API) {
	tags := huma.OperationTags("sessions")
	huma.Register(api, huma.Operation{
		OperationID:   "create-session",
		Method:        http.MethodPost,
		Path:          sessionsPath,
		Summary:       "Start a viewer session",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusCreated,
	}, h.CreateSession)
	huma.Get(api, sessionsPath, h.ListSessions, operationID("list-sessions"), tags)
	huma.Get(api, sessionsPath+"/{id}", h.GetSession, operationID("get-session"), tags)
	huma.Delete(api, sessionsPath+"/{id}", h.DeleteSession, operationID("delete-session"), tags)
	huma.Post(api, sessionsPath+"/{id}/events", h.DispatchEvent, operationID("dispatch-session-event"), tags)
	huma.Get(api, sessionsPath+"/{id}/features", h.GetFeatures, operationID("get-session-features"), tags)
	huma.Get(api, sessionsPath+"/{id}/suggestions", h.GetSuggestions, operationID("get-session-suggestions"), tags)
	huma.Get(api, sessionsPath+"/{id}/click", h.Click, operationID("click-session"), tags)
	huma.Get(api, sessionsPath+"/{id}/clusters/{cluster}/zoom", h.ClusterZoom, operationID("get-cluster-zoom"), tags)
	huma.Get(api, sessionsPath+"/{id}/tiles/{z}/{x}/{y}", h.GetTile, operationID("get-session-tile"), tags)
}

func (h *APIHandler) session(id string) (*service.Session, error) {
	s, err := h.svc.Viewer.Session(id)
	if errors.Is(err, service.ErrSessionNotFound) {
		return nil, huma.Error404NotFound("session not found")
	}
	return s, err
}

func (h *APIHandler) CreateSession(ctx context.Context, input *struct{}) (*SessionOutput, error) {
	s := h.svc.Viewer.Open()
	return &SessionOutput{Body: SessionBody{s.State()}}, nil
}

func (h *APIHandler) ListSessions(ctx context.Context, input *struct{}) (*struct{ Body []string }, error) {
	return &struct{ Body []string }{Body: h.svc.Viewer.Sessions()}, nil
}

func (h *APIHandler) GetSession(ctx context.Context, input *SessionInput) (*SessionOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return &SessionOutput{Body: SessionBody{s.State()}}, nil
}

func (h *APIHandler) DeleteSession(ctx context.Context, input *SessionInput) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Viewer.Close(input.ID); err != nil {
		return nil, huma.Error404NotFound("session not found")
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Session closed"}}, nil
}

// EventBody is a selection event. Kind picks which of the other fields
// apply.
type EventBody struct {
	Kind    string `json:"kind" enum:"toggle,select_all,pick" doc:"Event kind"`
	Key     string `json:"key,omitempty" doc:"Species key for toggle and pick" example:"Oak"`
	Checked bool   `json:"checked,omitempty" doc:"New checkbox state for toggle"`
	Active  bool   `json:"active,omitempty" doc:"New select-all state"`
}

// Event converts the body into a controller event.
func (b EventBody) Event() (filter.Event, error) {
	switch b.Kind {
	case "toggle":
		return filter.Toggle{Key: species.Key(b.Key), Checked: b.Checked}, nil
	case "select_all":
		return filter.SelectAll{Active: b.Active}, nil
	case "pick":
		return filter.Pick{Key: species.Key(b.Key)}, nil
	}
	return nil, huma.Error422UnprocessableEntity("unknown event kind " + b.Kind)
}

type EventInput struct {
	SessionInput
	Body EventBody
}

// DispatchEvent applies one selection event to the session.
func (h *APIHandler) DispatchEvent(ctx context.Context, input *EventInput) (*SessionOutput, error) {
	ev, err := input.Body.Event()
	if err != nil {
		return nil, err
	}
	if (ev.Kind() == "toggle" || ev.Kind() == "pick") && input.Body.Key == "" {
		return nil, huma.Error422UnprocessableEntity("key is required for " + ev.Kind())
	}
	state, err := h.svc.Viewer.Dispatch(input.ID, ev)
	if err != nil {
		return nil, huma.Error404NotFound("session not found")
	}
	return &SessionOutput{Body: SessionBody{state}}, nil
}

// GetFeatures returns the trees the session currently shows.
func (h *APIHandler) GetFeatures(ctx context.Context, input *SessionInput) (*GeoJSONOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return geoJSON(s.Active())
}

type SuggestionsInput struct {
	SessionInput
	Query string `query:"q" doc:"Case-insensitive substring of a species label" example:"oak"`
}

// GetSuggestions returns the controls matching q with their checked state.
func (h *APIHandler) GetSuggestions(ctx context.Context, input *SuggestionsInput) (*struct{ Body []filter.Item }, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	items := s.Suggest(input.Query)
	if items == nil {
		items = []filter.Item{}
	}
	return &struct{ Body []filter.Item }{Body: items}, nil
}

type ClickInput struct {
	SessionInput
	Lon  float64 `query:"lon" minimum:"-180" maximum:"180" doc:"Longitude"`
	Lat  float64 `query:"lat" minimum:"-90" maximum:"90" doc:"Latitude"`
	Zoom int     `query:"zoom" minimum:"0" maximum:"22" doc:"Integer map zoom"`
}

type ClickBody struct {
	Found bool          `json:"found" doc:"Whether anything is under the point"`
	Popup *render.Popup `json:"popup,omitempty" doc:"Popup content"`
}

// Click resolves what a map click at lon/lat hits.
func (h *APIHandler) Click(ctx context.Context, input *ClickInput) (*struct{ Body ClickBody }, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	out := &struct{ Body ClickBody }{}
	if pop, ok := s.Click(orb.Point{input.Lon, input.Lat}, input.Zoom); ok {
		out.Body = ClickBody{Found: true, Popup: &pop}
	}
	return out, nil
}

type ClusterZoomInput struct {
	SessionInput
	Cluster uint64 `path:"cluster" doc:"Cluster ID from the trees layer"`
}

type ClusterZoomBody struct {
	Found bool `json:"found" doc:"Whether the cluster still exists"`
	Zoom  int  `json:"zoom,omitempty" doc:"Zoom at which the cluster splits"`
}

// ClusterZoom returns the expansion zoom of a cluster. A stale cluster
// answers found=false so the client abandons the zoom.
func (h *APIHandler) ClusterZoom(ctx context.Context, input *ClusterZoomInput) (*struct{ Body ClusterZoomBody }, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	out := &struct{ Body ClusterZoomBody }{}
	z, err := s.ExpansionZoom(input.Cluster)
	switch {
	case errors.Is(err, render.ErrClusterNotFound):
	case err != nil:
		return nil, huma.Error500InternalServerError("cluster lookup failed", err)
	default:
		out.Body = ClusterZoomBody{Found: true, Zoom: z}
	}
	return out, nil
}

type TileInput struct {
	SessionInput
	Z int `path:"z" minimum:"0" maximum:"22" doc:"Zoom"`
	X int `path:"x" minimum:"0" doc:"Column"`
	Y int `path:"y" minimum:"0" doc:"Row"`
}

type TileOutput struct {
	Status          int
	ContentType     string `header:"Content-Type"`
	ContentEncoding string `header:"Content-Encoding"`
	CacheControl    string `header:"Cache-Control"`
	Body            []byte
}

// GetTile encodes the session's trees and the grid as a gzipped vector
// tile. Tiles with nothing in them answer 204.
func (h *APIHandler) GetTile(ctx context.Context, input *TileInput) (*TileOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	data, err := s.Tile(uint32(input.Z), uint32(input.X), uint32(input.Y))
	if err != nil {
		metrics.TilesTotal.WithLabelValues("invalid").Inc()
		return nil, huma.Error400BadRequest(err.Error())
	}
	if data == nil {
		metrics.TilesTotal.WithLabelValues("empty").Inc()
		return &TileOutput{Status: http.StatusNoContent}, nil
	}
	metrics.TilesTotal.WithLabelValues("ok").Inc()
	return &TileOutput{
		Status:          http.StatusOK,
		ContentType:     TileType,
		ContentEncoding: "gzip",
		CacheControl:    "no-cache",
		Body:            data,
	}, nil
}
