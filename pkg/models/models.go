package models

import (
	"time"
)

// Category classifies a reported issue.
type Category string

const (
	CategoryPothole     Category = "pothole"
	CategoryStreetlight Category = "streetlight"
	CategoryWaste       Category = "waste"
	CategoryWater       Category = "water"
	CategoryRoad        Category = "road"
	CategoryOther       Category = "other"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryPothole, CategoryStreetlight, CategoryWaste, CategoryWater, CategoryRoad, CategoryOther:
		return true
	}
	return false
}

// Status is where an issue sits in admin triage.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusRejected   Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// Issue is a civic problem reported by a citizen.
type Issue struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Category    Category  `db:"category" json:"category"`
	Status      Status    `db:"status" json:"status"`
	Latitude    *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude   *float64  `db:"longitude" json:"longitude,omitempty"`
	Address     string    `db:"address" json:"address,omitempty"`
	Reporter    string    `db:"reporter" json:"reporter,omitempty"`
	Votes       int       `db:"votes" json:"votes"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	// DistanceKm is set at runtime by nearby queries (not persisted).
	DistanceKm *float64 `db:"-" json:"distance_km,omitempty"`
}

// Coordinates returns the issue's position; ok is false unless both
// latitude and longitude are set.
func (i *Issue) Coordinates() (lat, lon float64, ok bool) {
	if i.Latitude == nil || i.Longitude == nil {
		return 0, 0, false
	}
	return *i.Latitude, *i.Longitude, true
}

// NewIssue is the request body for reporting an issue.
type NewIssue struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Address     string   `json:"address"`
	Reporter    string   `json:"reporter"`
}

// IssueFilter narrows issue listings.
type IssueFilter struct {
	Status   Status
	Category Category
	Limit    int
}

// StatusUpdate is the request body for triaging an issue.
type StatusUpdate struct {
	Status Status `json:"status"`
}

// LocationInput is the request body for saving a location: either coordinates
// (GPS) or an address to geocode (manual entry).
type LocationInput struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   string   `json:"address"`
}

// Comment is a note left on an issue.
type Comment struct {
	ID        string    `db:"id" json:"id"`
	IssueID   string    `db:"issue_id" json:"issue_id"`
	Author    string    `db:"author" json:"author,omitempty"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewComment is the request body for commenting on an issue.
type NewComment struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}
