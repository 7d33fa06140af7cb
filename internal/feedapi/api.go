// Package feedapi exposes the regwatch dashboard and research assistant over
// a JSON HTTP API.
package feedapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/regwatch/internal/authmw"
	"github.com/linnemanlabs/regwatch/internal/dashboard"
	"github.com/linnemanlabs/regwatch/internal/feed"
	"github.com/linnemanlabs/regwatch/internal/research"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// DashboardService defines the dashboard operations feedapi needs.
type DashboardService interface {
	View() dashboard.View
	Present(ids []string, search string) []dashboard.PresentedItem
	Sources() []feed.Source
	Discover(ctx context.Context, input string) (string, error)
	AddFeed(ctx context.Context, input string) (feed.Source, error)
	SelectSources(ids []string) (dashboard.View, error)
	SetSearch(q string) dashboard.View
	SetView(m dashboard.ViewMode) (dashboard.View, error)
	TriggerRefresh(ctx context.Context) bool
}

// ResearchService defines the research operation feedapi needs.
type ResearchService interface {
	Ask(ctx context.Context, query string, history []research.Turn) (*research.Answer, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger   log.Logger
	dash     DashboardService
	research ResearchService
	apiToken string
}

// New creates a new API handler. An empty apiToken leaves mutating routes open.
func New(logger log.Logger, dash DashboardService, res ResearchService, apiToken string) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if dash == nil {
		panic(xerrors.New("dashboard service is required"))
	}
	if res == nil {
		panic(xerrors.New("research service is required"))
	}
	return &API{
		logger:   logger,
		dash:     dash,
		research: res,
		apiToken: apiToken,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authmw.SafeMethodsOr(authmw.BearerToken(a.apiToken)))

		r.Get("/dashboard", a.handleDashboard)
		r.Get("/items", a.handleItems)
		r.Get("/sources", a.handleListSources)
		r.Post("/sources", a.handleAddSource)
		r.Post("/discover", a.handleDiscover)
		r.Put("/selection", a.handleSelection)
		r.Put("/search", a.handleSearch)
		r.Put("/view", a.handleView)
		r.Post("/refresh", a.handleRefresh)
		r.Post("/research", a.handleResearch)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody reads a JSON body into v, writing a 400 and returning false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	return true
}
