// pagedata.go: OpenAPI operations to page template data.
//
// BuildPageData collects what a page template needs from the registered
// operations, so the HTML never hardcodes URLs or signal names:
//   - Signals JSON for data-signals
//   - Routes keyed by operation ID
//   - Init actions fired on load
package humastar

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// PageData holds everything a page template needs from the OpenAPI spec.
// Templates use {{.Signals}} for data-signals and {{.Route "viewer-toggle"}}
// for action URLs.
type PageData struct {
	// Signals is the JSON string for data-signals initialization.
	Signals string

	// Routes maps operation IDs to their paths.
	Routes map[string]string

	// Inits lists operation IDs posted once the page loads.
	Inits []string

	// Data carries page-specific values, such as the map view.
	Data any
}

// Route returns the path of an operation, or "#" when it is not registered.
func (pd PageData) Route(operationID string) string {
	if p, ok := pd.Routes[operationID]; ok {
		return p
	}
	return "#"
}

// DataInit returns a Datastar data-init attribute value posting every init
// route, e.g. "@post('/api/v1/viewer/panel')".
func (pd PageData) DataInit() string {
	var parts []string
	for _, id := range pd.Inits {
		if p, ok := pd.Routes[id]; ok {
			parts = append(parts, fmt.Sprintf("@post('%s')", p))
		}
	}
	return strings.Join(parts, "; ")
}

// BuildPageData discovers the routes of operations tagged tag and encodes
// signals for the page.
func BuildPageData(api huma.API, tag string, signals map[string]any, inits ...string) PageData {
	pd := PageData{
		Routes: discoverRoutes(api, tag),
		Inits:  inits,
	}
	if signals == nil {
		signals = map[string]any{}
	}
	signalsJSON, _ := json.Marshal(signals)
	pd.Signals = string(signalsJSON)
	return pd
}

// discoverRoutes maps operation IDs to paths for operations carrying tag.
func discoverRoutes(api huma.API, tag string) map[string]string {
	routes := map[string]string{}
	for p, item := range api.OpenAPI().Paths {
		for _, op := range operationsOf(item) {
			if op == nil || op.OperationID == "" {
				continue
			}
			if tag != "" && !hasAnyTag(op.Tags, []string{tag}) {
				continue
			}
			routes[op.OperationID] = p
		}
	}
	return routes
}
