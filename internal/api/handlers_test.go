package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/serieshub/channels/internal/channels"
	"github.com/serieshub/channels/internal/counter"
	"github.com/serieshub/channels/internal/models"
	"github.com/serieshub/channels/pkg/config"
)

type fakeComposer struct {
	keys     []string
	viewerID int64
	rows     []channels.Row
}

func (f *fakeComposer) Compose(ctx context.Context, keys []string, viewerID int64) ([]channels.Row, error) {
	f.keys = keys
	f.viewerID = viewerID
	return f.rows, nil
}

type fakeTarget struct {
	favorited bool
	err       error
}

func (f *fakeTarget) Toggle(ctx context.Context, userID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.favorited = !f.favorited
	return f.favorited, nil
}

func (f *fakeTarget) Active(ctx context.Context, userID int64) (bool, error) {
	return f.favorited, nil
}

func (f *fakeTarget) Count(ctx context.Context) (int64, error) {
	return 0, nil
}

type fakeEngagement struct {
	recorded  bool
	recordErr error
	target    *fakeTarget
}

func (f *fakeEngagement) RecordView(ctx context.Context, articleID, userID int64) (bool, error) {
	if f.recordErr != nil {
		return false, f.recordErr
	}
	return f.recorded, nil
}

func (f *fakeEngagement) TargetFor(itemType string, itemID int64) (counter.FavoriteTarget, error) {
	if itemType != "post" && itemType != "series" {
		return nil, counter.ErrInvalidKind
	}
	return f.target, nil
}

type fakeRebuilder struct {
	snapshot *models.PopularitySnapshot
	err      error
}

func (f *fakeRebuilder) RebuildAll(ctx context.Context) (*models.PopularitySnapshot, error) {
	return f.snapshot, f.err
}

func newTestEngine(composer FeedComposer, engagement EngagementStore, rebuilder Rebuilder) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := NewRouter(composer, engagement, rebuilder, nil, config.ChannelsConfig{})
	engine := gin.New()
	router.SetupRoutes(engine)
	return engine
}

func doJSON(engine *gin.Engine, method, path, body string, viewer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if viewer != "" {
		req.Header.Set(ViewerHeader, viewer)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRowsDefaultKeys(t *testing.T) {
	composer := &fakeComposer{rows: []channels.Row{{Key: "featured", Title: "Featured Posts"}}}
	engine := newTestEngine(composer, &fakeEngagement{}, &fakeRebuilder{})

	w := doJSON(engine, http.MethodGet, "/channels/rows", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	want := strings.Join(channels.DefaultRowKeys, ",")
	if got := strings.Join(composer.keys, ","); got != want {
		t.Errorf("Expected default rows %q, got %q", want, got)
	}

	var rows []channels.Row
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if len(rows) != 1 || rows[0].Key != "featured" {
		t.Errorf("Unexpected rows payload: %+v", rows)
	}
}

func TestRowsExplicitKeysAndViewer(t *testing.T) {
	composer := &fakeComposer{}
	engine := newTestEngine(composer, &fakeEngagement{}, &fakeRebuilder{})

	w := doJSON(engine, http.MethodGet, "/channels/rows?rows=favorites,recently_published", "", "42")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	if got := strings.Join(composer.keys, ","); got != "favorites,recently_published" {
		t.Errorf("Expected requested keys passed through, got %q", got)
	}
	if composer.viewerID != 42 {
		t.Errorf("Expected viewer 42, got %d", composer.viewerID)
	}
}

func TestViewRequiresViewer(t *testing.T) {
	engine := newTestEngine(&fakeComposer{}, &fakeEngagement{recorded: true}, &fakeRebuilder{})

	w := doJSON(engine, http.MethodPost, "/channels/view", `{"item_id": 7}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for anonymous view, got %d", w.Code)
	}
}

func TestViewMalformedBody(t *testing.T) {
	engine := newTestEngine(&fakeComposer{}, &fakeEngagement{recorded: true}, &fakeRebuilder{})

	w := doJSON(engine, http.MethodPost, "/channels/view", `{}`, "42")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing item_id, got %d", w.Code)
	}
}

func TestViewUnknownItem(t *testing.T) {
	engine := newTestEngine(&fakeComposer{}, &fakeEngagement{recordErr: counter.ErrNotFound}, &fakeRebuilder{})

	w := doJSON(engine, http.MethodPost, "/channels/view", `{"item_id": 999}`, "42")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown item, got %d", w.Code)
	}
}

func TestViewRecorded(t *testing.T) {
	engine := newTestEngine(&fakeComposer{}, &fakeEngagement{recorded: true}, &fakeRebuilder{})

	w := doJSON(engine, http.MethodPost, "/channels/view", `{"item_id": 7}`, "42")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		OK       bool `json:"ok"`
		Recorded bool `json:"recorded"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if !resp.OK || !resp.Recorded {
		t.Errorf("Expected ok+recorded, got %+v", resp)
	}
}

func TestFavoriteToggles(t *testing.T) {
	engagement := &fakeEngagement{target: &fakeTarget{}}
	engine := newTestEngine(&fakeComposer{}, engagement, &fakeRebuilder{})

	w := doJSON(engine, http.MethodPost, "/channels/favorite", `{"item_id": 7, "item_type": "series"}`, "42")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		OK        bool `json:"ok"`
		Favorited bool `json:"favorited"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if !resp.OK || !resp.Favorited {
		t.Errorf("Expected ok+favorited on first toggle, got %+v", resp)
	}
}

func TestFavoriteUnknownType(t *testing.T) {
	engine := newTestEngine(&fakeComposer{}, &fakeEngagement{target: &fakeTarget{}}, &fakeRebuilder{})

	w := doJSON(engine, http.MethodPost, "/channels/favorite", `{"item_id": 7, "item_type": "page"}`, "42")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown item type, got %d", w.Code)
	}
}

func TestFavoriteRequiresViewer(t *testing.T) {
	engine := newTestEngine(&fakeComposer{}, &fakeEngagement{target: &fakeTarget{}}, &fakeRebuilder{})

	w := doJSON(engine, http.MethodPost, "/channels/favorite", `{"item_id": 7, "item_type": "post"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for anonymous favorite, got %d", w.Code)
	}
}

func TestRebuildReportsCounts(t *testing.T) {
	rebuilder := &fakeRebuilder{snapshot: &models.PopularitySnapshot{
		ItemsScored: 12,
		Items:       []models.RankedSeries{{SeriesID: 1}, {SeriesID: 2}},
	}}
	engine := newTestEngine(&fakeComposer{}, &fakeEngagement{}, rebuilder)

	w := doJSON(engine, http.MethodPost, "/channels/rebuild", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		OK           bool `json:"ok"`
		ItemsScored  int  `json:"items_scored"`
		SeriesRanked int  `json:"series_ranked"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if !resp.OK || resp.ItemsScored != 12 || resp.SeriesRanked != 2 {
		t.Errorf("Unexpected rebuild response %+v", resp)
	}
}

func TestHealthEndpoints(t *testing.T) {
	engine := newTestEngine(&fakeComposer{}, &fakeEngagement{}, &fakeRebuilder{})

	for _, path := range []string{"/health", "/.well-known/healthcheck.json"} {
		w := doJSON(engine, http.MethodGet, path, "", "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestViewerIDParsing(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected int64
	}{
		{"absent", "", 0},
		{"valid", "42", 42},
		{"garbage", "abc", 0},
		{"negative", "-1", 0},
		{"zero", "0", 0},
	}

	gin.SetMode(gin.TestMode)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				c.Request.Header.Set(ViewerHeader, tt.header)
			}
			if got := viewerID(c); got != tt.expected {
				t.Errorf("viewerID() = %d, want %d", got, tt.expected)
			}
		})
	}
}
