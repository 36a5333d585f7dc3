package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitesh/civictrack/internal/db"
	"github.com/nitesh/civictrack/internal/geo"
	"github.com/nitesh/civictrack/internal/geocode"
	"github.com/nitesh/civictrack/internal/location"
	"github.com/nitesh/civictrack/internal/service"
	"github.com/nitesh/civictrack/internal/store"
)

type stubGeocoder struct{}

func (stubGeocoder) Geocode(_ context.Context, address string) (geocode.Match, error) {
	if address == "City Hall" {
		return geocode.Match{Point: geo.GeoPoint{Latitude: 0, Longitude: 0}}, nil
	}
	return geocode.Match{}, geocode.ErrNoResults
}

func (stubGeocoder) Reverse(context.Context, geo.GeoPoint) (geocode.Match, error) {
	return geocode.Match{}, geocode.ErrNoResults
}

func newTestRouter(t *testing.T, writes ...gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, filepath.Join(t.TempDir(), "api.db"), db.DefaultOptions)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck
	require.NoError(t, store.RunMigrations(ctx, conn))

	svc := service.NewService(store.NewSQLStore(conn), location.MemoryProvider(), stubGeocoder{})
	r := gin.New()
	r.Use(RequestLogger())
	RegisterRoutes(r, NewHandler(svc, geo.Radius5Km), writes...)
	return r
}

func do(r http.Handler, method, path, sid string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.Header.Set(SessionHeader, sid)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Meta   map[string]any  `json:"meta"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Access json.RawMessage `json:"access"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func createIssue(t *testing.T, r http.Handler, title string, lat, lon float64) string {
	t.Helper()
	w := do(r, http.MethodPost, "/v1/issues", "", map[string]any{
		"title": title, "category": "pothole", "latitude": lat, "longitude": lon,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var is struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &is))
	return is.ID
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w := do(r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestReportIssue_BadRequest(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/v1/issues", "", map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/issues", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListIssues(t *testing.T) {
	r := newTestRouter(t)
	createIssue(t, r, "a", 0, 0)
	createIssue(t, r, "b", 50, 50)

	w := do(r, http.MethodGet, "/v1/issues?limit=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.EqualValues(t, 1, env.Meta["count"])

	w = do(r, http.MethodGet, "/v1/issues?status=closed", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNearby_FailsClosed(t *testing.T) {
	r := newTestRouter(t)
	createIssue(t, r, "here", 0, 0)

	w := do(r, http.MethodGet, "/v1/nearby", "nobody", nil)

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestNearby_SavedLocation(t *testing.T) {
	r := newTestRouter(t)
	createIssue(t, r, "near", 0, 0.01)
	createIssue(t, r, "far", 0, 1)

	w := do(r, http.MethodPut, "/v1/location", "s1", map[string]any{"latitude": 0, "longitude": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/v1/nearby?radius=3", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.EqualValues(t, 3, env.Meta["radius_km"])
	var got []struct {
		Title      string  `json:"title"`
		DistanceKm float64 `json:"distance_km"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].Title)
	assert.Equal(t, 1.1, got[0].DistanceKm)
}

func TestNearby_BadParams(t *testing.T) {
	r := newTestRouter(t)

	for _, q := range []string{"radius=10", "radius=abc", "lat=1", "lat=x&lon=1", "lat=91&lon=0"} {
		w := do(r, http.MethodGet, "/v1/nearby?"+q, "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestGetIssue_AccessControl(t *testing.T) {
	r := newTestRouter(t)
	id := createIssue(t, r, "near", 0, 0.01)

	w := do(r, http.MethodGet, "/v1/issues/"+id, "s1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "location required", decode(t, w).Error)

	w = do(r, http.MethodGet, "/v1/issues/"+id+"?lat=0&lon=0", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/v1/issues/"+id+"/access?lat=0.1&lon=0&radius=3", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var d struct {
		Allowed    bool    `json:"allowed"`
		DistanceKm float64 `json:"distance_km"`
		Reason     string  `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &d))
	assert.False(t, d.Allowed)
	assert.Equal(t, "11.2 km away, outside 3 km zone", d.Reason)

	w = do(r, http.MethodGet, "/v1/issues/00000000-0000-0000-0000-000000000000", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVoteAndStatus(t *testing.T) {
	r := newTestRouter(t)
	id := createIssue(t, r, "pothole", 0, 0)

	w := do(r, http.MethodPost, "/v1/issues/"+id+"/vote", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPatch, "/v1/issues/"+id+"/status", "", map[string]string{"status": "resolved"})
	require.Equal(t, http.StatusOK, w.Code)
	var is struct {
		Status string `json:"status"`
		Votes  int    `json:"votes"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &is))
	assert.Equal(t, "resolved", is.Status)
	assert.Equal(t, 1, is.Votes)

	w = do(r, http.MethodPatch, "/v1/issues/"+id+"/status", "", map[string]string{"status": "closed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/v1/issues/nope/vote", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMapGeoJSON(t *testing.T) {
	r := newTestRouter(t)
	createIssue(t, r, "near", 0, 0.01)

	w := do(r, http.MethodGet, "/v1/map.geojson?lat=0&lon=0", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, []float64{0.01, 0}, fc.Features[0].Geometry.Coordinates)
	assert.Equal(t, "near", fc.Features[0].Properties["title"])
}

func TestLocationLifecycle(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/v1/location", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/v1/location", "s1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPut, "/v1/location", "s1", map[string]string{"address": "City Hall"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/v1/location", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"latitude":0,"longitude":0,"address":"City Hall","isManual":true}`, string(decode(t, w).Data))

	w = do(r, http.MethodPut, "/v1/location", "s1", map[string]string{"address": "Atlantis"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodDelete, "/v1/location", "s1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodGet, "/v1/location", "s1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimitedWrites(t *testing.T) {
	r := newTestRouter(t, NewRateLimiter(0.001, 1).Middleware())

	w := do(r, http.MethodPut, "/v1/location", "s1", map[string]any{"latitude": 1, "longitude": 1})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPut, "/v1/location", "s1", map[string]any{"latitude": 1, "longitude": 1})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = do(r, http.MethodGet, "/v1/location", "s1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_PerClient(t *testing.T) {
	l := NewRateLimiter(0.001, 2)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
}

func TestGetIssue_AntipodeIsForbidden(t *testing.T) {
	r := newTestRouter(t)
	id := createIssue(t, r, "antipode", -18.83885183633153, -21.41672830379554)
	query := "?lat=18.83885183633153&lon=158.58327169620446&radius=3"

	w := do(r, http.MethodGet, "/v1/issues/"+id+query, "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "20015.1 km away, outside 3 km zone", decode(t, w).Error)

	w = do(r, http.MethodGet, "/v1/issues/"+id+"/access"+query, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"allowed":false,"distance_km":20015.1,"reason":"20015.1 km away, outside 3 km zone"}`, string(decode(t, w).Data))
}

func TestComments(t *testing.T) {
	r := newTestRouter(t)
	id := createIssue(t, r, "Pothole", 0, 0)

	w := do(r, http.MethodPost, "/v1/issues/"+id+"/comments", "", map[string]any{"author": "alice", "body": "Still there"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(r, http.MethodPost, "/v1/issues/"+id+"/comments", "", map[string]any{"body": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/v1/issues/7b0c6c1e-4c0a-4bb1-9d53-0d5f0f3b1e11/comments", "", map[string]any{"body": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/v1/issues/"+id+"/comments", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.EqualValues(t, 1, env.Meta["count"])
	var comments []struct {
		Author string `json:"author"`
		Body   string `json:"body"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &comments))
	require.Len(t, comments, 1)
	assert.Equal(t, "alice", comments[0].Author)
	assert.Equal(t, "Still there", comments[0].Body)

	w = do(r, http.MethodGet, "/v1/issues/bogus/comments", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
