package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/nitesh/civictrack/internal/geo"
	"github.com/nitesh/civictrack/internal/service"
	"github.com/nitesh/civictrack/internal/store"
	"github.com/nitesh/civictrack/pkg/models"
)

// SessionHeader identifies the client whose saved location is used.
const SessionHeader = "X-Session-ID"

type Handler struct {
	svc           *service.Service
	defaultRadius geo.Radius
}

func NewHandler(svc *service.Service, defaultRadius geo.Radius) *Handler {
	if !defaultRadius.Valid() {
		defaultRadius = geo.DefaultRadius
	}
	return &Handler{svc: svc, defaultRadius: defaultRadius}
}

// RegisterRoutes mounts the API. writes run before every mutating handler.
func RegisterRoutes(r *gin.Engine, h *Handler, writes ...gin.HandlerFunc) {
	r.GET("/healthz", h.Health)

	w := func(hf gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, writes...), hf)
	}

	v1 := r.Group("/v1")
	{
		v1.POST("/issues", w(h.ReportIssue)...)
		v1.GET("/issues", h.ListIssues)
		v1.GET("/issues/:id", h.GetIssue)
		v1.GET("/issues/:id/access", h.Access)
		v1.POST("/issues/:id/vote", w(h.Vote)...)
		v1.PATCH("/issues/:id/status", w(h.UpdateStatus)...)
		v1.POST("/issues/:id/comments", w(h.AddComment)...)
		v1.GET("/issues/:id/comments", h.ListComments)
		v1.GET("/nearby", h.Nearby)
		v1.GET("/map.geojson", h.Map)
		v1.PUT("/location", w(h.SaveLocation)...)
		v1.GET("/location", h.GetLocation)
		v1.DELETE("/location", w(h.ClearLocation)...)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// ReportIssue: POST /v1/issues
func (h *Handler) ReportIssue(c *gin.Context) {
	var payload models.NewIssue
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	is, err := h.svc.ReportIssue(c.Request.Context(), payload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": is})
}

// ListIssues: GET /v1/issues?status=open&category=pothole&limit=50
func (h *Handler) ListIssues(c *gin.Context) {
	f := models.IssueFilter{
		Status:   models.Status(c.Query("status")),
		Category: models.Category(c.Query("category")),
		Limit:    parseLimit(c.DefaultQuery("limit", strconv.Itoa(store.DefaultLimit))),
	}
	res, err := h.svc.ListIssues(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{
			"count": len(res),
			"limit": f.Limit,
		},
		"data": res,
	})
}

// GetIssue: GET /v1/issues/:id?radius=5
// Responds 403 with the decision when the issue is outside the caller's neighborhood.
func (h *Handler) GetIssue(c *gin.Context) {
	detail, ok := h.detail(c)
	if !ok {
		return
	}
	if !detail.Access.Allowed {
		c.JSON(http.StatusForbidden, gin.H{
			"error":  detail.Access.Reason,
			"access": detail.Access,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail})
}

// Access: GET /v1/issues/:id/access?radius=5&lat=..&lon=..
func (h *Handler) Access(c *gin.Context) {
	detail, ok := h.detail(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail.Access})
}

func (h *Handler) detail(c *gin.Context) (*service.IssueDetail, bool) {
	radius, ref, ok := h.neighborhood(c)
	if !ok {
		return nil, false
	}
	detail, err := h.svc.GetIssue(c.Request.Context(), session(c), c.Param("id"), ref, radius)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return detail, true
}

// Vote: POST /v1/issues/:id/vote
func (h *Handler) Vote(c *gin.Context) {
	is, err := h.svc.Vote(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": is})
}

// UpdateStatus: PATCH /v1/issues/:id/status
// Body: {"status": "resolved"}
func (h *Handler) UpdateStatus(c *gin.Context) {
	var payload models.StatusUpdate
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	is, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), payload.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": is})
}

// AddComment: POST /v1/issues/:id/comments
// Body: {"author": "alice", "body": "still broken"}
func (h *Handler) AddComment(c *gin.Context) {
	var payload models.NewComment
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	comment, err := h.svc.Comment(c.Request.Context(), c.Param("id"), payload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": comment})
}

// ListComments: GET /v1/issues/:id/comments?limit=50
func (h *Handler) ListComments(c *gin.Context) {
	limit := parseLimit(c.DefaultQuery("limit", strconv.Itoa(store.DefaultLimit)))
	comments, err := h.svc.ListComments(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{"count": len(comments), "limit": limit},
		"data": comments,
	})
}

// Nearby: GET /v1/nearby?radius=5&lat=12.97&lon=77.59&limit=50
// Without lat/lon the session's saved location is used; with neither the result is empty.
func (h *Handler) Nearby(c *gin.Context) {
	radius, ref, ok := h.neighborhood(c)
	if !ok {
		return
	}
	limit := parseLimit(c.DefaultQuery("limit", strconv.Itoa(store.DefaultLimit)))

	results, err := h.svc.Nearby(c.Request.Context(), session(c), ref, radius, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{
			"count":     len(results),
			"radius_km": int(radius),
			"limit":     limit,
		},
		"data": results,
	})
}

// Map: GET /v1/map.geojson?radius=5&lat=..&lon=..
func (h *Handler) Map(c *gin.Context) {
	radius, ref, ok := h.neighborhood(c)
	if !ok {
		return
	}
	results, err := h.svc.Nearby(c.Request.Context(), session(c), ref, radius, store.MaxLimit)
	if err != nil {
		writeError(c, err)
		return
	}

	features := make([]*geojson.Feature, 0, len(results))
	for _, is := range results {
		lat, lon, located := is.Coordinates()
		if !located {
			continue
		}
		p := geo.GeoPoint{Latitude: lat, Longitude: lon}
		props := map[string]any{
			"title":    is.Title,
			"category": is.Category,
			"status":   is.Status,
			"votes":    is.Votes,
		}
		if is.DistanceKm != nil {
			props["distance_km"] = *is.DistanceKm
		}
		features = append(features, geo.PointFeature(is.ID, p, props))
	}
	data, err := geo.MarshalFeatureCollection(features)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}

// SaveLocation: PUT /v1/location
// Body: {"latitude": 40.7, "longitude": -74.0} or {"address": "..."}
func (h *Handler) SaveLocation(c *gin.Context) {
	sid, ok := requireSession(c)
	if !ok {
		return
	}
	var payload models.LocationInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	loc, err := h.svc.SaveLocation(c.Request.Context(), sid, payload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": loc})
}

// GetLocation: GET /v1/location
func (h *Handler) GetLocation(c *gin.Context) {
	sid, ok := requireSession(c)
	if !ok {
		return
	}
	loc, found := h.svc.LoadLocation(c.Request.Context(), sid)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no saved location"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": loc})
}

// ClearLocation: DELETE /v1/location
func (h *Handler) ClearLocation(c *gin.Context) {
	sid, ok := requireSession(c)
	if !ok {
		return
	}
	if err := h.svc.ClearLocation(c.Request.Context(), sid); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// neighborhood parses radius and the optional lat/lon override.
func (h *Handler) neighborhood(c *gin.Context) (geo.Radius, *geo.GeoPoint, bool) {
	radius, err := geo.ParseRadius(c.Query("radius"), h.defaultRadius)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, nil, false
	}
	ref, err := parsePoint(c.Query("lat"), c.Query("lon"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, nil, false
	}
	return radius, ref, true
}

// parsePoint returns nil when both values are empty.
func parsePoint(latStr, lonStr string) (*geo.GeoPoint, error) {
	latStr, lonStr = strings.TrimSpace(latStr), strings.TrimSpace(lonStr)
	if latStr == "" && lonStr == "" {
		return nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, eris.New("lat and lon must be given together")
	}
	lat, latErr := strconv.ParseFloat(latStr, 64)
	lon, lonErr := strconv.ParseFloat(lonStr, 64)
	if latErr != nil || lonErr != nil {
		return nil, eris.New("invalid lat/lon parameters")
	}
	p := geo.GeoPoint{Latitude: lat, Longitude: lon}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func session(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(SessionHeader))
}

func requireSession(c *gin.Context) (string, bool) {
	sid := session(c)
	if sid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + SessionHeader + " header"})
		return "", false
	}
	return sid, true
}

// writeError maps service errors to status codes.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case eris.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case eris.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "issue not found"})
	case eris.Is(err, service.ErrGeocoder):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		zap.L().Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// parseLimit ensures a sane integer limit, with bounds
func parseLimit(s string) int {
	l, err := strconv.Atoi(s)
	if err != nil || l <= 0 {
		return store.DefaultLimit
	}
	if l > store.MaxLimit {
		return store.MaxLimit
	}
	return l
}
