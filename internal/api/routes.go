// Package api defines the Huma REST routes and handlers.
package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/greenery-map/internal/humastar"
	"github.com/joeblew999/greenery-map/internal/service"
	"github.com/joeblew999/greenery-map/internal/species"
)

// Version is reported by /health and /api/v1/info.
const Version = "1.0.0"

// SearchPath is the species search collection, linked from every other
// collection.
const SearchPath = "/api/v1/species/search"

// GeoJSONType is the media type of GeoJSON bodies.
const GeoJSONType = "application/geo+json"

// Services holds the service dependencies for API handlers.
type Services struct {
	Viewer *service.Viewer
	Files  *service.FileService
}

// Types

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// GeoJSONOutput carries a pre-encoded GeoJSON document.
type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func geoJSON(fc *geojson.FeatureCollection) (*GeoJSONOutput, error) {
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to encode features", err)
	}
	return &GeoJSONOutput{ContentType: GeoJSONType, Body: data}, nil
}

// APIHandler holds the REST handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// operationID sets an explicit operation ID. The viewer page finds its
// routes by these IDs.
func operationID(id string) func(o *huma.Operation) {
	return func(o *huma.Operation) {
		o.OperationID = id
	}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterMap registers the basemap and camera routes.
func (h *APIHandler) RegisterMap(api huma.API) {
	huma.Get(api, "/api/v1/map", h.GetMapView, operationID("get-map-view"), huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/reset", h.ResetMapView, operationID("reset-map-view"), huma.OperationTags("map"))
	huma.Get(api, "/api/v1/grid", h.GetGrid, operationID("get-grid"), huma.OperationTags("map"))
}

// RegisterSpecies registers the ranking routes.
func (h *APIHandler) RegisterSpecies(api huma.API) {
	huma.Get(api, "/api/v1/species", h.ListSpecies, operationID("list-species"), huma.OperationTags("species"))
	huma.Get(api, SearchPath, h.SearchSpecies, operationID("search-species"), huma.OperationTags("species"))
}

// RegisterFiles registers data file listing routes.
func (h *APIHandler) RegisterFiles(api huma.API) {
	huma.Get(api, "/api/v1/files", h.GetFiles, operationID("list-files"), huma.OperationTags("files"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetMapView(ctx context.Context, input *struct{}) (*struct{ Body service.MapView }, error) {
	return &struct{ Body service.MapView }{Body: h.svc.Viewer.MapView()}, nil
}

func (h *APIHandler) ResetMapView(ctx context.Context, input *struct{}) (*struct{ Body service.Camera }, error) {
	return &struct{ Body service.Camera }{Body: h.svc.Viewer.ResetView()}, nil
}

// GetGrid returns the greenery grid with its choropleth fill colors.
func (h *APIHandler) GetGrid(ctx context.Context, input *struct{}) (*GeoJSONOutput, error) {
	return geoJSON(h.svc.Viewer.Grid())
}

type SpeciesInput struct {
	Offset int `query:"offset" minimum:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"0" maximum:"1000" doc:"Page size" default:"50"`
}

type SpeciesOutput struct {
	Body humastar.PageBody[species.Entry]
}

// ListSpecies pages through the ranking: the top species, then the rest.
func (h *APIHandler) ListSpecies(ctx context.Context, input *SpeciesInput) (*SpeciesOutput, error) {
	entries := h.svc.Viewer.Ranking().Entries()
	return &SpeciesOutput{Body: humastar.NewPage(entries, input.Offset, input.Limit)}, nil
}

type SearchInput struct {
	Query string `query:"q" doc:"Case-insensitive substring of a species label" example:"oak"`
}

type SearchBody struct {
	Query   string        `json:"query" doc:"The query as given"`
	Matches []species.Key `json:"matches" doc:"Matching selection keys in list order"`
}

// SearchSpecies matches the query against the selectable controls.
func (h *APIHandler) SearchSpecies(ctx context.Context, input *SearchInput) (*struct{ Body SearchBody }, error) {
	matches := h.svc.Viewer.Search(input.Query)
	if matches == nil {
		matches = []species.Key{}
	}
	return &struct{ Body SearchBody }{Body: SearchBody{Query: input.Query, Matches: matches}}, nil
}

func (h *APIHandler) GetFiles(ctx context.Context, input *struct{}) (*struct{ Body []service.DataFile }, error) {
	if h.svc.Files == nil {
		return &struct{ Body []service.DataFile }{Body: []service.DataFile{}}, nil
	}
	files, err := h.svc.Files.List()
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list data files", err)
	}
	return &struct{ Body []service.DataFile }{Body: files}, nil
}
