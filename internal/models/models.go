// Package models holds the resource types shared by the store, the HTTP
// server, and the API client.
package models

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus is the lifecycle state of a marketing campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

// Campaign is a marketing campaign with its running performance counters.
type Campaign struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Channel     string         `json:"channel"`
	Status      CampaignStatus `json:"status"`
	BudgetCents int64          `json:"budget_cents"`
	SpendCents  int64          `json:"spend_cents"`
	Impressions int64          `json:"impressions"`
	Clicks      int64          `json:"clicks"`
	Conversions int64          `json:"conversions"`
	StartsAt    *time.Time     `json:"starts_at,omitempty"`
	EndsAt      *time.Time     `json:"ends_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Segment is a saved audience slice campaigns target.
type Segment struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	MemberCount int64     `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Candidate is a person sourced into a segment for recruiting campaigns.
type Candidate struct {
	ID        uuid.UUID  `json:"id"`
	SegmentID *uuid.UUID `json:"segment_id,omitempty"`
	FullName  string     `json:"full_name"`
	Email     string     `json:"email"`
	Status    string     `json:"status"`
	Score     float64    `json:"score"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// JobOpening is a position recruiting campaigns advertise.
type JobOpening struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Department string    `json:"department"`
	Location   string    `json:"location"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Notification is an in-app notification shown to dashboard users.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
