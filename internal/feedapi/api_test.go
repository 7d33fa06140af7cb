package feedapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/regwatch/internal/dashboard"
	"github.com/linnemanlabs/regwatch/internal/dashboard/memstore"
	"github.com/linnemanlabs/regwatch/internal/discovery"
	"github.com/linnemanlabs/regwatch/internal/feed"
	"github.com/linnemanlabs/regwatch/internal/research"
)

type stubAggregator struct {
	items []feed.Item
}

func (s *stubAggregator) Aggregate(_ context.Context, sources []feed.Source) ([]feed.Item, error) {
	out := append([]feed.Item(nil), s.items...)
	for _, src := range sources {
		if strings.HasPrefix(src.ID, "custom-") {
			out = append(out, feed.Item{ID: "item-" + src.ID, Title: "Latest Regulatory Update from " + src.Name, SourceID: src.ID, Tier: feed.TierFYI, KeywordsFound: []string{}})
		}
	}
	return out, nil
}

type stubResearch struct {
	ans *research.Answer
	err error
	got string
}

func (s *stubResearch) Ask(_ context.Context, q string, _ []research.Turn) (*research.Answer, error) {
	s.got = q
	if strings.TrimSpace(q) == "" {
		return nil, research.ErrEmptyQuery
	}
	return s.ans, s.err
}

func testSources() []feed.Source {
	return []feed.Source{
		{ID: "fda", Name: "FDA Drug Safety", URL: "https://fda.example/rss.xml", Category: "Health"},
		{ID: "epa", Name: "EPA Newsroom", URL: "https://epa.example/rss.xml", Category: "Environment"},
	}
}

func testItems() []feed.Item {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []feed.Item{
		{ID: "a", Title: "Routine notice", SourceID: "fda", Tier: feed.TierFYI, PublishedAt: now, KeywordsFound: []string{}},
		{ID: "b", Title: "Product recall", SourceID: "fda", Tier: feed.TierCritical, PublishedAt: now.Add(-time.Hour), KeywordsFound: []string{"recall"}},
		{ID: "c", Title: "Draft guidance", SourceID: "epa", Tier: feed.TierOpportunity, PublishedAt: now.Add(-2 * time.Hour), KeywordsFound: []string{"draft guidance"}},
	}
}

type fixture struct {
	router   chi.Router
	svc      *dashboard.Service
	research *stubResearch
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	svc, err := dashboard.NewService(context.Background(),
		memstore.New(testSources()...),
		&stubAggregator{items: testItems()},
		discovery.New(-1),
		log.Nop(),
		dashboard.Options{},
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	t.Cleanup(svc.Wait)

	res := &stubResearch{ans: &research.Answer{Text: "answer", Citations: []research.Citation{{Title: "SEC", URI: "https://sec.example"}}}}
	r := chi.NewRouter()
	New(nil, svc, res, token).RegisterRoutes(r)
	return &fixture{router: r, svc: svc, research: res}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

//  New / constructor

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	api := New(nil, f.svc, f.research, "")
	if api.logger == nil {
		t.Fatal("New left logger nil; expected Nop logger")
	}
}

func TestNew_NilServices_Panic(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	tests := []struct {
		name string
		fn   func()
	}{
		{"nil dashboard", func() { New(nil, nil, f.research, "") }},
		{"nil research", func() { New(nil, f.svc, nil, "") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			defer func() {
				if r := recover(); r == nil {
					t.Fatal("expected panic")
				}
			}()
			tt.fn()
		})
	}
}

// Routing

func TestRoutes_StatusCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"dashboard", http.MethodGet, "/api/v1/dashboard", "", http.StatusOK},
		{"items", http.MethodGet, "/api/v1/items", "", http.StatusOK},
		{"sources", http.MethodGet, "/api/v1/sources", "", http.StatusOK},
		{"add source", http.MethodPost, "/api/v1/sources", `{"url":"www.example.com/"}`, http.StatusCreated},
		{"add source no feed", http.MethodPost, "/api/v1/sources", `{"url":"localhost"}`, http.StatusNotFound},
		{"add source bad json", http.MethodPost, "/api/v1/sources", `{bad`, http.StatusBadRequest},
		{"discover", http.MethodPost, "/api/v1/discover", `{"url":"example.com"}`, http.StatusOK},
		{"discover no feed", http.MethodPost, "/api/v1/discover", `{"url":""}`, http.StatusNotFound},
		{"selection", http.MethodPut, "/api/v1/selection", `{"source_ids":["epa"]}`, http.StatusOK},
		{"selection unknown", http.MethodPut, "/api/v1/selection", `{"source_ids":["nope"]}`, http.StatusBadRequest},
		{"search", http.MethodPut, "/api/v1/search", `{"query":"recall"}`, http.StatusOK},
		{"view", http.MethodPut, "/api/v1/view", `{"mode":"research"}`, http.StatusOK},
		{"view invalid", http.MethodPut, "/api/v1/view", `{"mode":"graph"}`, http.StatusBadRequest},
		{"refresh", http.MethodPost, "/api/v1/refresh", "", http.StatusAccepted},
		{"research", http.MethodPost, "/api/v1/research", `{"query":"what is rule 5-04?"}`, http.StatusOK},
		{"research empty", http.MethodPost, "/api/v1/research", `{"query":"  "}`, http.StatusBadRequest},
		{"dashboard POST not allowed", http.MethodPost, "/api/v1/dashboard", "", http.StatusMethodNotAllowed},
		{"refresh GET not allowed", http.MethodGet, "/api/v1/refresh", "", http.StatusMethodNotAllowed},
		{"unknown", http.MethodGet, "/api/v1/unknown", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, "")
			if rec := f.do(t, tt.method, tt.path, tt.body); rec.Code != tt.wantStatus {
				t.Errorf("%s %s = %d, want %d (%s)", tt.method, tt.path, rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestDashboard_View(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	v := decode[dashboard.View](t, f.do(t, http.MethodGet, "/api/v1/dashboard", ""))

	if v.Title != "Regulatory Feed" || !v.AllSelected {
		t.Errorf("title=%q all=%v", v.Title, v.AllSelected)
	}
	if len(v.Items) != 3 || v.Items[0].ID != "b" || v.Items[0].SourceName != "FDA Drug Safety" {
		t.Errorf("items = %+v", v.Items)
	}
	if v.Items[0].Tier != feed.TierCritical {
		t.Errorf("tier = %v", v.Items[0].Tier)
	}
	if v.Stats != (feed.Stats{Critical: 1, Opportunity: 1, FYI: 1}) {
		t.Errorf("stats = %+v", v.Stats)
	}
}

func TestItems_Query(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"b", "c", "a"}},
		{"?source=epa", []string{"c"}},
		{"?source=fda&source=epa&q=RECALL", []string{"b"}},
		{"?q=nothing-matches", []string{}},
	}
	for _, tt := range tests {
		got := decode[struct {
			Items []dashboard.PresentedItem `json:"items"`
		}](t, f.do(t, http.MethodGet, "/api/v1/items"+tt.query, ""))

		ids := make([]string, len(got.Items))
		for i, it := range got.Items {
			ids[i] = it.ID
		}
		if strings.Join(ids, ",") != strings.Join(tt.want, ",") {
			t.Errorf("items%s = %v, want %v", tt.query, ids, tt.want)
		}
	}
}

func TestAddSource_SelectsNewSource(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	rec := f.do(t, http.MethodPost, "/api/v1/sources", `{"url":"https://www.agency.gov/"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	src := decode[feed.Source](t, rec)
	if src.URL != "https://www.agency.gov/rss.xml" || src.Name != "agency.gov" || src.Category != discovery.CustomCategory {
		t.Errorf("source = %+v", src)
	}

	f.svc.Wait()
	v := f.svc.View()
	if v.AllSelected || v.CurrentSource == nil || v.CurrentSource.ID != src.ID {
		t.Errorf("current source = %+v", v.CurrentSource)
	}
	if len(v.Items) != 1 || v.Items[0].SourceID != src.ID {
		t.Errorf("items after add = %+v", v.Items)
	}
}

func TestAddSource_NoFeedFoundBody(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	rec := f.do(t, http.MethodPost, "/api/v1/sources", `{"url":"nodots"}`)
	body := decode[map[string]string](t, rec)
	if body["error"] != "no feed found" {
		t.Errorf("body = %v", body)
	}
	if n := len(f.svc.Sources()); n != 2 {
		t.Errorf("sources = %d, want 2", n)
	}
}

func TestRefresh_ReportsStarted(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	got := decode[map[string]bool](t, f.do(t, http.MethodPost, "/api/v1/refresh", ""))
	if _, ok := got["started"]; !ok {
		t.Errorf("body = %v, want started field", got)
	}
}

func TestResearch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	rec := f.do(t, http.MethodPost, "/api/v1/research", `{"query":"Schedule II?","history":[{"role":"user","content":"hi"}]}`)
	ans := decode[research.Answer](t, rec)
	if ans.Text != "answer" || len(ans.Citations) != 1 || ans.Citations[0].URI != "https://sec.example" {
		t.Errorf("answer = %+v", ans)
	}
	if f.research.got != "Schedule II?" {
		t.Errorf("query = %q", f.research.got)
	}
}

func TestResearch_ProviderError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	f.research.err = errors.New("boom")
	if rec := f.do(t, http.MethodPost, "/api/v1/research", `{"query":"q"}`); rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestAuth_MutatingRoutesRequireToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "s3cret")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		auth   string
		want   int
	}{
		{"read is open", http.MethodGet, "/api/v1/dashboard", "", "", http.StatusOK},
		{"items open", http.MethodGet, "/api/v1/items", "", "", http.StatusOK},
		{"refresh without token", http.MethodPost, "/api/v1/refresh", "", "", http.StatusUnauthorized},
		{"search without token", http.MethodPut, "/api/v1/search", `{"query":"x"}`, "", http.StatusUnauthorized},
		{"search wrong token", http.MethodPut, "/api/v1/search", `{"query":"x"}`, "Bearer nope", http.StatusUnauthorized},
		{"search with token", http.MethodPut, "/api/v1/search", `{"query":"x"}`, "Bearer s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		var headers []string
		if tt.auth != "" {
			headers = []string{"Authorization", tt.auth}
		}
		if rec := f.do(t, tt.method, tt.path, tt.body, headers...); rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
	}
}
