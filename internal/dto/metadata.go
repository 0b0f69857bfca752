// Package dto holds the command payloads shared by the HTTP and MCP
// transports. "json" tags serve HTTP bodies; "mapstructure" tags decode MCP
// tool arguments.
package dto

import (
	"time"

	"github.com/aretw0/arcflow/pkg/domain"
)

// TransitionInput asks to move a request to another status.
type TransitionInput struct {
	To    string `json:"to" mapstructure:"to" validate:"required"`
	Notes string `json:"notes,omitempty" mapstructure:"notes"`
}

// SignoffInput records a neighbor's position.
type SignoffInput struct {
	NeighborID string `json:"neighbor_id" mapstructure:"neighbor_id" validate:"required"`
	Status     string `json:"status" mapstructure:"status" validate:"required,oneof=signed objected pending"`
	Comment    string `json:"comment,omitempty" mapstructure:"comment"`
}

// VoteInput records the caller's board vote.
type VoteInput struct {
	Decision string `json:"decision" mapstructure:"decision" validate:"required,oneof=approve deny abstain"`
	Comment  string `json:"comment,omitempty" mapstructure:"comment"`
}

// InspectionInput records an inspection outcome.
type InspectionInput struct {
	Passed bool   `json:"passed" mapstructure:"passed"`
	Notes  string `json:"notes,omitempty" mapstructure:"notes"`
}

// CommentInput appends to a request's thread.
type CommentInput struct {
	Body string `json:"body" mapstructure:"body" validate:"required"`
}

// ProgressView bundles the derived progress figures of a request.
type ProgressView struct {
	RequestID           string        `json:"request_id"`
	Status              domain.Status `json:"status"`
	Progress            int           `json:"progress"`
	EstimatedCompletion *time.Time    `json:"estimated_completion,omitempty"`
}

// RequestSummary is the list view of a request.
type RequestSummary struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Classification string        `json:"classification"`
	Status         domain.Status `json:"status"`
	OwnerID        string        `json:"owner_id"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Summarize maps a request onto its list view.
func Summarize(r *domain.Request) RequestSummary {
	return RequestSummary{
		ID:             r.ID,
		Title:          r.Title,
		Classification: r.Classification,
		Status:         r.Status,
		OwnerID:        r.Submitter.OwnerID,
		UpdatedAt:      r.UpdatedAt,
	}
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
