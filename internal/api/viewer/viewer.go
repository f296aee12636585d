// Package viewer contains the Datastar SSE handlers behind the species
// filter panel: the checkbox list, the select-all box and the search box.
package viewer

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/joeblew999/greenery-map/internal/filter"
	"github.com/joeblew999/greenery-map/internal/humastar"
	"github.com/joeblew999/greenery-map/internal/service"
	"github.com/joeblew999/greenery-map/internal/species"
	"github.com/joeblew999/greenery-map/internal/templates"
)

// Tag marks the fragment endpoints in the OpenAPI document.
const Tag = "viewer"

const base = "/api/v1/viewer"

// Routes.
const (
	PanelPath     = base + "/panel"
	TogglePath    = base + "/toggle"
	SelectAllPath = base + "/select-all"
	SearchPath    = base + "/search"
	PickPath      = base + "/pick"
	EventsPath    = base + "/events"
)

// Signal names shared with the page template.
const (
	SignalSession = "session"
	SignalTab     = "tab"
	SignalSearch  = "search"
	SignalActive  = "active"
	SignalError   = "error"
)

// SelectionChanged is the DOM event the map listens for to refetch tiles.
const SelectionChanged = "selection-changed"

// Handler renders the filter panel for a viewer session.
type Handler struct {
	humastar.Handler
	viewer *service.Viewer
	log    *zap.Logger
}

// New creates a viewer handler.
func New(v *service.Viewer, renderer *templates.Renderer, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Handler: humastar.Handler{Renderer: renderer},
		viewer:  v,
		log:     log,
	}
}

// RegisterRoutes registers the panel endpoints.
func (h *Handler) RegisterRoutes(api huma.API) {
	op := func(id, path, summary string) huma.Operation {
		return huma.Operation{
			OperationID: id,
			Method:      http.MethodPost,
			Path:        path,
			Summary:     summary,
			Tags:        []string{Tag},
		}
	}
	huma.Register(api, op("viewer-panel", PanelPath, "Render the species panel"), h.Panel)
	huma.Register(api, op("viewer-toggle", TogglePath, "Check or uncheck one species"), h.Toggle)
	huma.Register(api, op("viewer-select-all", SelectAllPath, "Check or uncheck every species"), h.SelectAll)
	huma.Register(api, op("viewer-search", SearchPath, "Suggest species for the search box"), h.Search)
	huma.Register(api, op("viewer-pick", PickPath, "Check a suggested species"), h.Pick)
	huma.Register(api, op("viewer-events", EventsPath, "Follow selection changes of the session"), h.Events)
}

// ToggleInput carries a checkbox change.
type ToggleInput struct {
	humastar.SignalsInput
	Key     string `query:"key" required:"true" doc:"Species key" example:"Oak"`
	Checked bool   `query:"checked" doc:"New checkbox state"`
}

// SelectAllInput carries a select-all change.
type SelectAllInput struct {
	humastar.SignalsInput
	Active bool `query:"active" doc:"New select-all state"`
}

// PickInput carries a clicked suggestion.
type PickInput struct {
	humastar.SignalsInput
	Key string `query:"key" required:"true" doc:"Species key" example:"Oak"`
}

// session resolves the session named by the request signals.
func (h *Handler) session(in *humastar.SignalsInput) (*service.Session, humastar.Signals, error) {
	signals, err := in.MustParse()
	if err != nil {
		return nil, nil, err
	}
	s, err := h.viewer.Session(signals.String(SignalSession))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return nil, nil, huma.Error404NotFound("session expired, reload the page")
		}
		return nil, nil, err
	}
	return s, signals, nil
}

// Panel renders the checkbox list and the select-all box.
func (h *Handler) Panel(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	s, _, err := h.session(input)
	if err != nil {
		return nil, err
	}
	state := s.State()
	return h.Stream(func(sse humastar.SSE) {
		h.patchPanel(sse, state)
	}), nil
}

// Toggle applies a checkbox change.
func (h *Handler) Toggle(ctx context.Context, input *ToggleInput) (*huma.StreamResponse, error) {
	return h.dispatch(&input.SignalsInput, filter.Toggle{Key: species.Key(input.Key), Checked: input.Checked}, false)
}

// SelectAll applies a select-all change.
func (h *Handler) SelectAll(ctx context.Context, input *SelectAllInput) (*huma.StreamResponse, error) {
	return h.dispatch(&input.SignalsInput, filter.SelectAll{Active: input.Active}, false)
}

// Pick checks a suggested species and clears the search box.
func (h *Handler) Pick(ctx context.Context, input *PickInput) (*huma.StreamResponse, error) {
	return h.dispatch(&input.SignalsInput, filter.Pick{Key: species.Key(input.Key)}, true)
}

func (h *Handler) dispatch(in *humastar.SignalsInput, ev filter.Event, clearSearch bool) (*huma.StreamResponse, error) {
	s, signals, err := h.session(in)
	if err != nil {
		return nil, err
	}
	state, err := h.viewer.DispatchFrom(signals.String(SignalTab), s.ID(), ev)
	if err != nil {
		return nil, huma.Error404NotFound("session expired, reload the page")
	}
	return h.Stream(func(sse humastar.SSE) {
		h.patchPanel(sse, state)
		if clearSearch {
			sse.Patch("", "#suggestions")
			sse.Signals(map[string]any{SignalSearch: ""})
		}
		sse.DispatchCustomEvent(SelectionChanged, map[string]any{"active": state.Active})
	}), nil
}

// Search renders suggestions for the search signal. A blank query clears
// them.
func (h *Handler) Search(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	s, signals, err := h.session(input)
	if err != nil {
		return nil, err
	}
	query := signals.String(SignalSearch)
	items := s.Suggest(query)

	return h.Stream(func(sse humastar.SSE) {
		if strings.TrimSpace(query) == "" {
			sse.Patch("", "#suggestions")
			return
		}
		views := make([]any, len(items))
		for i, it := range items {
			views[i] = suggestionView{Item: it, Pick: PickPath}
		}
		sse.Patch(h.RenderList("search-suggestion", views, "No match", "No species matches "+query), "#suggestions")
	}), nil
}

// Events streams changes to the session made elsewhere (other tabs, the
// REST API, dataset reloads) until the client goes away.
func (h *Handler) Events(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	s, signals, err := h.session(input)
	if err != nil {
		return nil, err
	}
	id, tab := s.ID(), signals.String(SignalTab)

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			defer s.Attach()()
			bus := h.viewer.Bus()
			ch := bus.Subscribe()
			defer bus.Unsubscribe(ch)

			for {
				select {
				case <-ctx.Done():
					return
				case <-humaCtx.Context().Done():
					return
				case ev := <-ch:
					switch {
					case ev.Action == service.ActionReload:
					case ev.Session != id:
						continue
					case ev.Action == service.ActionClosed:
						sse.Error("session closed, reload the page")
						return
					case ev.Action == service.ActionOpened, ev.Origin != "" && ev.Origin == tab:
						continue
					}
					h.patchPanel(sse, s.State())
					sse.DispatchCustomEvent(SelectionChanged, map[string]any{"active": ev.Active})
				}
			}
		},
	}, nil
}

type itemView struct {
	filter.Item
	Other  bool
	Toggle string
}

type selectAllView struct {
	Checked bool
	Route   string
}

type suggestionView struct {
	filter.Item
	Pick string
}

func (h *Handler) patchPanel(sse humastar.SSE, state service.SessionState) {
	views := make([]any, len(state.Items))
	for i, it := range state.Items {
		views[i] = itemView{Item: it, Other: it.Key == species.Other, Toggle: TogglePath}
	}
	sse.Patch(h.RenderList("species-item", views, "No species", "The dataset has no trees"), "#species-list")
	sse.Replace(h.Render("select-all", selectAllView{Checked: state.AllSelected, Route: SelectAllPath}), "#select-all")
	sse.Signals(map[string]any{SignalActive: state.Active, SignalError: ""})
}
