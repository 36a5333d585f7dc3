package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nitesh/civictrack/internal/access"
	"github.com/nitesh/civictrack/internal/geo"
	"github.com/nitesh/civictrack/internal/geocode"
	"github.com/nitesh/civictrack/internal/location"
	"github.com/nitesh/civictrack/internal/store"
	"github.com/nitesh/civictrack/pkg/models"
)

var (
	// ErrInvalidInput marks caller mistakes; the message says which.
	ErrInvalidInput = eris.New("invalid input")
	// ErrNotFound is returned for unknown issues.
	ErrNotFound = store.ErrNotFound
	// ErrGeocoder is returned when a manual address cannot be resolved upstream.
	ErrGeocoder = eris.New("geocoder unavailable")
)

type IssueStore interface {
	Create(ctx context.Context, is *models.Issue) error
	Get(ctx context.Context, id string) (*models.Issue, error)
	List(ctx context.Context, f models.IssueFilter) ([]*models.Issue, error)
	WithinBox(ctx context.Context, box geo.Box, limit, offset int) ([]*models.Issue, error)
	UpdateStatus(ctx context.Context, id string, status models.Status) (*models.Issue, error)
	Vote(ctx context.Context, id string) (*models.Issue, error)
	AddComment(ctx context.Context, c *models.Comment) error
	ListComments(ctx context.Context, issueID string, limit int) ([]*models.Comment, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (geocode.Match, error)
	Reverse(ctx context.Context, p geo.GeoPoint) (geocode.Match, error)
}

type Service struct {
	repo      IssueStore
	locations location.Provider
	geocoder  Geocoder
	pageSize  int
}

// NewService wires the service. geocoder may be nil, which disables manual address entry.
func NewService(repo IssueStore, locations location.Provider, geocoder Geocoder) *Service {
	return &Service{repo: repo, locations: locations, geocoder: geocoder, pageSize: store.MaxCandidates}
}

// IssueDetail is an issue together with the caller's access decision.
type IssueDetail struct {
	Issue  *models.Issue   `json:"issue"`
	Access access.Decision `json:"access"`
}

// located adapts an issue to access.Locatable.
type located struct{ *models.Issue }

func (l located) Location() (geo.GeoPoint, bool) {
	return geo.PointFromPtrs(l.Latitude, l.Longitude)
}

func invalid(format string, args ...any) error {
	return eris.Wrapf(ErrInvalidInput, format, args...)
}

// ReportIssue validates and stores a new issue.
func (s *Service) ReportIssue(ctx context.Context, in models.NewIssue) (*models.Issue, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	category := in.Category
	if category == "" {
		category = models.CategoryOther
	}
	if !category.Valid() {
		return nil, invalid("unknown category %q", category)
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, invalid("latitude and longitude must be given together")
	}
	if p, ok := geo.PointFromPtrs(in.Latitude, in.Longitude); ok {
		if err := p.Validate(); err != nil {
			return nil, eris.Wrap(ErrInvalidInput, err.Error())
		}
	}

	is := &models.Issue{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Category:    category,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Address:     strings.TrimSpace(in.Address),
		Reporter:    strings.TrimSpace(in.Reporter),
	}
	if err := s.repo.Create(ctx, is); err != nil {
		return nil, err
	}
	zap.L().Info("issue reported",
		zap.String("id", is.ID),
		zap.String("category", string(is.Category)),
		zap.Bool("located", is.Latitude != nil),
	)
	return is, nil
}

func (s *Service) ListIssues(ctx context.Context, f models.IssueFilter) ([]*models.Issue, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid("unknown status %q", f.Status)
	}
	if f.Category != "" && !f.Category.Valid() {
		return nil, invalid("unknown category %q", f.Category)
	}
	return s.repo.List(ctx, f)
}

func (s *Service) getIssue(ctx context.Context, id string) (*models.Issue, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// reference returns override when set, otherwise the session's saved location.
// nil means no location is known.
func (s *Service) reference(ctx context.Context, session string, override *geo.GeoPoint) *geo.GeoPoint {
	if override != nil {
		return override
	}
	if session == "" {
		return nil
	}
	loc, ok := s.locations(session).Load(ctx)
	if !ok {
		return nil
	}
	return loc.Point()
}

// GetIssue returns an issue with the access decision for the given reference point
// (or the session's saved location when ref is nil).
func (s *Service) GetIssue(ctx context.Context, session, id string, ref *geo.GeoPoint, radius geo.Radius) (*IssueDetail, error) {
	is, err := s.getIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	decision := access.CanAccess(located{is}, s.reference(ctx, session, ref), radius.Km())
	is.DistanceKm = decision.DistanceKm
	return &IssueDetail{Issue: is, Access: decision}, nil
}

// Nearby returns located issues within radius of the reference point, newest first.
// Without a reference point the result is empty. The store's bounding-box query is
// read page by page until limit issues are in range or the box is exhausted; limit
// <= 0 reads the whole box.
func (s *Service) Nearby(ctx context.Context, session string, ref *geo.GeoPoint, radius geo.Radius, limit int) ([]*models.Issue, error) {
	point := s.reference(ctx, session, ref)
	if point == nil {
		return []*models.Issue{}, nil
	}

	box := geo.BoundingBox(*point, radius.Km())
	nearby := []*models.Issue{}
	scanned := 0
	for {
		page, err := s.repo.WithinBox(ctx, box, s.pageSize, scanned)
		if err != nil {
			return nil, err
		}
		scanned += len(page)

		candidates := make([]located, len(page))
		for i, is := range page {
			candidates[i] = located{is}
		}
		for _, l := range access.FilterWithinRadius(candidates, point, radius.Km()) {
			target, _ := l.Location()
			d := geo.RoundKm(geo.Distance(*point, target))
			l.DistanceKm = &d
			nearby = append(nearby, l.Issue)
		}

		if limit > 0 && len(nearby) >= limit {
			nearby = nearby[:limit]
			break
		}
		if len(page) < s.pageSize {
			break
		}
	}

	zap.L().Debug("nearby issues",
		zap.Int("candidates", scanned),
		zap.Int("in_range", len(nearby)),
		zap.Int("radius_km", int(radius)),
	)
	return nearby, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status models.Status) (*models.Issue, error) {
	if !status.Valid() {
		return nil, invalid("unknown status %q", status)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	is, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	zap.L().Info("issue status changed", zap.String("id", id), zap.String("status", string(status)))
	return is, nil
}

func (s *Service) Vote(ctx context.Context, id string) (*models.Issue, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.repo.Vote(ctx, id)
}

// MaxCommentLength caps a comment body, in runes.
const MaxCommentLength = 2000

// Comment adds a note to an issue.
func (s *Service) Comment(ctx context.Context, id string, in models.NewComment) (*models.Comment, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, invalid("comment body is required")
	}
	if n := utf8.RuneCountInString(body); n > MaxCommentLength {
		return nil, invalid("comment is %d characters, limit is %d", n, MaxCommentLength)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	c := &models.Comment{
		IssueID: id,
		Author:  strings.TrimSpace(in.Author),
		Body:    body,
	}
	if err := s.repo.AddComment(ctx, c); err != nil {
		return nil, err
	}
	zap.L().Info("comment added", zap.String("issue", id), zap.String("comment", c.ID))
	return c, nil
}

func (s *Service) ListComments(ctx context.Context, id string, limit int) ([]*models.Comment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.repo.ListComments(ctx, id, limit)
}

// SaveLocation stores the session's reference location. Coordinates are taken as GPS
// readings; an address alone is geocoded and marked manual.
func (s *Service) SaveLocation(ctx context.Context, session string, in models.LocationInput) (location.UserLocation, error) {
	address := strings.TrimSpace(in.Address)

	var loc location.UserLocation
	switch p, ok := geo.PointFromPtrs(in.Latitude, in.Longitude); {
	case ok:
		if err := p.Validate(); err != nil {
			return location.UserLocation{}, eris.Wrap(ErrInvalidInput, err.Error())
		}
		loc = location.UserLocation{GeoPoint: p, Address: address}
		if address == "" {
			loc.Address = s.describe(ctx, p)
		}
	case in.Latitude != nil || in.Longitude != nil:
		return location.UserLocation{}, invalid("latitude and longitude must be given together")
	case address != "":
		p, err := s.resolve(ctx, address)
		if err != nil {
			return location.UserLocation{}, err
		}
		loc = location.UserLocation{GeoPoint: p, Address: address, IsManual: true}
	default:
		return location.UserLocation{}, invalid("coordinates or address required")
	}

	if err := s.locations(session).Save(ctx, loc); err != nil {
		return location.UserLocation{}, err
	}
	return loc, nil
}

func (s *Service) LoadLocation(ctx context.Context, session string) (location.UserLocation, bool) {
	return s.locations(session).Load(ctx)
}

func (s *Service) ClearLocation(ctx context.Context, session string) error {
	return s.locations(session).Clear(ctx)
}

func (s *Service) resolve(ctx context.Context, address string) (geo.GeoPoint, error) {
	if s.geocoder == nil {
		return geo.GeoPoint{}, eris.Wrap(ErrGeocoder, "manual address entry is disabled")
	}
	m, err := s.geocoder.Geocode(ctx, address)
	if eris.Is(err, geocode.ErrNoResults) {
		return geo.GeoPoint{}, invalid("address %q not found", address)
	}
	if err != nil {
		zap.L().Warn("geocode failed", zap.String("address", address), zap.Error(err))
		return geo.GeoPoint{}, eris.Wrap(ErrGeocoder, err.Error())
	}
	return m.Point, nil
}

// describe reverse-geocodes p for display. Failures leave the address empty.
func (s *Service) describe(ctx context.Context, p geo.GeoPoint) string {
	if s.geocoder == nil {
		return ""
	}
	m, err := s.geocoder.Reverse(ctx, p)
	if err != nil {
		zap.L().Debug("reverse geocode failed", zap.Error(err))
		return ""
	}
	return m.DisplayName
}
