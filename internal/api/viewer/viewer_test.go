package viewer

import (
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/greenery-map/internal/config"
	"github.com/joeblew999/greenery-map/internal/dataset"
	"github.com/joeblew999/greenery-map/internal/service"
	"github.com/joeblew999/greenery-map/internal/species"
	"github.com/joeblew999/greenery-map/internal/templates"
)

func setup(t *testing.T) (humatest.TestAPI, *service.Viewer, *service.Session) {
	t.Helper()

	fc := geojson.NewFeatureCollection()
	for i, name := range []string{"Oak", "Oak", "Maple", "Birch"} {
		f := geojson.NewFeature(orb.Point{-123 + float64(i)/100, 44})
		f.Properties["Species"] = name
		fc.Append(f)
	}
	cfg := config.Default()
	cfg.Species.TopN = 2
	v, err := service.NewViewer(cfg, &dataset.Dataset{Trees: fc}, nil)
	require.NoError(t, err)

	renderer, err := templates.New("../../../web/templates")
	require.NoError(t, err)

	api := humatest.Wrap(t, humago.New(http.NewServeMux(), huma.DefaultConfig("test", "1.0.0")))
	New(v, renderer, nil).RegisterRoutes(api)
	return api, v, v.Open()
}

func TestPanel(t *testing.T) {
	api, _, s := setup(t)

	resp := api.Post(PanelPath, map[string]any{SignalSession: s.ID()})
	require.Equal(t, http.StatusOK, resp.Code)

	body := resp.Body.String()
	assert.Contains(t, body, "datastar-patch-elements")
	assert.Contains(t, body, "#species-list")
	assert.Contains(t, body, "Oak")
	assert.Contains(t, body, species.OtherLabel)
	assert.Contains(t, body, "#select-all")
}

func TestPanel_UnknownSession(t *testing.T) {
	api, _, _ := setup(t)

	resp := api.Post(PanelPath, map[string]any{SignalSession: "nope"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestToggle(t *testing.T) {
	api, _, s := setup(t)

	resp := api.Post(TogglePath+"?key=Oak&checked=false", map[string]any{
		SignalSession: s.ID(),
		SignalTab:     "tab-1",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), SelectionChanged)

	st := s.State()
	assert.False(t, st.AllSelected)
	assert.Equal(t, 2, st.Active)
	assert.NotContains(t, st.Selected, species.Key("Oak"))
}

func TestToggle_PublishesOrigin(t *testing.T) {
	api, v, s := setup(t)
	ch := v.Bus().Subscribe()
	defer v.Bus().Unsubscribe(ch)

	api.Post(TogglePath+"?key=Oak&checked=false", map[string]any{
		SignalSession: s.ID(),
		SignalTab:     "tab-1",
	})

	ev := <-ch
	assert.Equal(t, s.ID(), ev.Session)
	assert.Equal(t, "tab-1", ev.Origin)
	assert.Equal(t, "toggle", ev.Action)
}

func TestSelectAll(t *testing.T) {
	api, _, s := setup(t)

	resp := api.Post(SelectAllPath+"?active=false", map[string]any{SignalSession: s.ID()})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 0, s.State().Active)

	api.Post(SelectAllPath+"?active=true", map[string]any{SignalSession: s.ID()})
	assert.True(t, s.State().AllSelected)
	assert.Equal(t, 4, s.State().Active)
}

func TestSearchAndPick(t *testing.T) {
	api, _, s := setup(t)
	api.Post(SelectAllPath+"?active=false", map[string]any{SignalSession: s.ID()})

	resp := api.Post(SearchPath, map[string]any{SignalSession: s.ID(), SignalSearch: "ma"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "#suggestions")
	assert.Contains(t, resp.Body.String(), "Maple")

	resp = api.Post(SearchPath, map[string]any{SignalSession: s.ID(), SignalSearch: "zzz"})
	assert.Contains(t, resp.Body.String(), "No match")

	resp = api.Post(PickPath+"?key=Maple", map[string]any{SignalSession: s.ID()})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, s.State().Selected, species.Key("Maple"))
	assert.Equal(t, 1, s.State().Active)
}

func TestSearch_BlankClears(t *testing.T) {
	api, _, s := setup(t)

	resp := api.Post(SearchPath, map[string]any{SignalSession: s.ID(), SignalSearch: "  "})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotContains(t, resp.Body.String(), "suggestion\"")
	assert.NotContains(t, resp.Body.String(), "No match")
}
