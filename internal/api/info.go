package api

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/greenery-map/internal/service"
)

type InfoHandler struct {
	dataDir string
	dbOK    bool
	viewer  *service.Viewer
}

func NewInfoHandler(dataDir string, dbOK bool, viewer *service.Viewer) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, dbOK: dbOK, viewer: viewer}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, operationID("get-info"), huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string    `json:"name" doc:"Service name"`
	Version  string    `json:"version" doc:"Service version"`
	DataDir  string    `json:"data_dir" doc:"Data directory path"`
	DB       bool      `json:"db" doc:"Whether the DuckDB mirror is available"`
	Trees    int       `json:"trees" doc:"Trees in the loaded dataset"`
	Grid     int       `json:"grid" doc:"Grid cells in the loaded dataset"`
	Species  int       `json:"species" doc:"Distinct species"`
	Sessions int       `json:"sessions" doc:"Live viewer sessions"`
	Loaded   time.Time `json:"loaded" doc:"When the dataset was loaded"`
	Features []string  `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	ds := h.viewer.Dataset()
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "greenery-map",
		Version:  Version,
		DataDir:  h.dataDir,
		DB:       h.dbOK,
		Trees:    len(ds.Trees.Features),
		Grid:     len(ds.Grid.Features),
		Species:  len(h.viewer.Ranking().Counts),
		Sessions: len(h.viewer.Sessions()),
		Loaded:   h.viewer.Loaded(),
		Features: []string{"species-filter", "clusters", "choropleth", "vector-tiles", "duckdb", "hot-reload"},
	}}, nil
}
