package feedapi

import (
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/regwatch/internal/dashboard"
	"github.com/linnemanlabs/regwatch/internal/discovery"
)

func (a *API) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.dash.View())
}

func (a *API) handleItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ids := q["source"]
	search := q.Get("q")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.StringSlice("regwatch.source_ids", ids),
		attribute.Bool("regwatch.search", search != ""),
	)

	items := a.dash.Present(ids, search)
	span.SetAttributes(attribute.Int("regwatch.items", len(items)))
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleListSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": a.dash.Sources()})
}

type urlRequest struct {
	URL string `json:"url"`
}

func (a *API) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if !decodeBody(w, r, &req) {
		return
	}

	src, err := a.dash.AddFeed(r.Context(), req.URL)
	switch {
	case errors.Is(err, discovery.ErrNoFeedFound):
		writeError(w, http.StatusNotFound, "no feed found")
		return
	case err != nil:
		a.logger.Error(r.Context(), err, "failed to add source", "input", req.URL)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("regwatch.source_id", src.ID))
	writeJSON(w, http.StatusCreated, src)
}

func (a *API) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if !decodeBody(w, r, &req) {
		return
	}

	feedURL, err := a.dash.Discover(r.Context(), req.URL)
	switch {
	case errors.Is(err, discovery.ErrNoFeedFound):
		writeError(w, http.StatusNotFound, "no feed found")
		return
	case err != nil:
		a.logger.Error(r.Context(), err, "feed discovery failed", "input", req.URL)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"feed_url": feedURL})
}

func (a *API) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceIDs []string `json:"source_ids"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	v, err := a.dash.SelectSources(req.SourceIDs)
	if errors.Is(err, dashboard.ErrUnknownSource) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to select sources")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, a.dash.SetSearch(req.Query))
}

func (a *API) handleView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode dashboard.ViewMode `json:"mode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	v, err := a.dash.SetView(req.Mode)
	if errors.Is(err, dashboard.ErrInvalidView) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to set view")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	started := a.dash.TriggerRefresh(r.Context())
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Bool("regwatch.refresh.started", started))
	writeJSON(w, http.StatusAccepted, map[string]bool{"started": started})
}
