package feedapi

import (
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/regwatch/internal/research"
)

type researchRequest struct {
	Query   string          `json:"query"`
	History []research.Turn `json:"history"`
}

func (a *API) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("regwatch.research.history", len(req.History)))

	ans, err := a.research.Ask(r.Context(), req.Query, req.History)
	if errors.Is(err, research.ErrEmptyQuery) {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if err != nil {
		a.logger.Error(r.Context(), err, "research request failed")
		writeError(w, http.StatusBadGateway, "research failed")
		return
	}

	span.SetAttributes(
		attribute.Bool("regwatch.research.failed", ans.Failed),
		attribute.Int("regwatch.research.citations", len(ans.Citations)),
	)
	writeJSON(w, http.StatusOK, ans)
}
