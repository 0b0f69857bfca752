package domain

import "time"

// Contact describes the homeowner who submitted a request.
type Contact struct {
	Name            string `json:"name" yaml:"name" mapstructure:"name" validate:"required"`
	PropertyAddress string `json:"property_address" yaml:"property_address" mapstructure:"property_address" validate:"required"`
	Email           string `json:"email" yaml:"email" mapstructure:"email" validate:"omitempty,email"`
	Phone           string `json:"phone,omitempty" yaml:"phone,omitempty" mapstructure:"phone"`
	OwnerID         string `json:"owner_id" yaml:"owner_id" mapstructure:"owner_id" validate:"required"`
}

// StageEntry is one record of the append-only stage history.
type StageEntry struct {
	Stage     Status    `json:"stage"`
	EnteredAt time.Time `json:"entered_at"`
	Actor     string    `json:"actor"`
	Notes     string    `json:"notes,omitempty"`
}

// SignoffStatus is a neighbor's recorded position.
type SignoffStatus string

const (
	SignoffPending  SignoffStatus = "pending"
	SignoffSigned   SignoffStatus = "signed"
	SignoffObjected SignoffStatus = "objected"
)

// IsValid reports whether s is a known sign-off status.
func (s SignoffStatus) IsValid() bool {
	return s == SignoffPending || s == SignoffSigned || s == SignoffObjected
}

// NeighborSignoff records one neighbor's position on a request.
type NeighborSignoff struct {
	NeighborID string        `json:"neighbor_id"`
	Name       string        `json:"name,omitempty"`
	Status     SignoffStatus `json:"status"`
	Comment    string        `json:"comment,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at,omitempty"`
}

// VoteDecision is a board member's vote.
type VoteDecision string

const (
	VoteApprove VoteDecision = "approve"
	VoteDeny    VoteDecision = "deny"
	VoteAbstain VoteDecision = "abstain"
)

// IsValid reports whether d is a known vote decision.
func (d VoteDecision) IsValid() bool {
	return d == VoteApprove || d == VoteDeny || d == VoteAbstain
}

// BoardVote records one board member's decision.
type BoardVote struct {
	VoterID  string       `json:"voter_id"`
	Decision VoteDecision `json:"decision"`
	Comment  string       `json:"comment,omitempty"`
	CastAt   time.Time    `json:"cast_at"`
}

// Document is a reference to a file attached to a request. Storage of the
// file itself lives outside the engine.
type Document struct {
	Name string `json:"name" validate:"required"`
	URI  string `json:"uri" validate:"required"`
	Kind string `json:"kind,omitempty"`
}

// Message is an entry of the request's conversation thread.
type Message struct {
	Author   string    `json:"author"`
	Body     string    `json:"body"`
	PostedAt time.Time `json:"posted_at"`
}

// Appeal is a homeowner's appeal of a decision.
type Appeal struct {
	Reason  string    `json:"reason"`
	FiledBy string    `json:"filed_by"`
	FiledAt time.Time `json:"filed_at"`
}

// Inspection records the outcome of a post-execution inspection.
type Inspection struct {
	InspectorID string    `json:"inspector_id"`
	Passed      bool      `json:"passed"`
	Notes       string    `json:"notes,omitempty"`
	InspectedAt time.Time `json:"inspected_at"`
}

// Request is an ARC modification request.
type Request struct {
	ID                 string            `json:"id"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	Classification     string            `json:"classification"`
	Submitter          Contact           `json:"submitter"`
	Status             Status            `json:"status"`
	History            []StageEntry      `json:"history"`
	Documents          []Document        `json:"documents"`
	Messages           []Message         `json:"messages"`
	GoverningDocuments []Document        `json:"governing_documents"`
	Forms              []string          `json:"forms"`
	NeighborPositions  []string          `json:"neighbor_positions"`
	Signoffs           []NeighborSignoff `json:"signoffs"`
	Votes              []BoardVote       `json:"votes"`
	Appeals            []Appeal          `json:"appeals"`
	Inspections        []Inspection      `json:"inspections"`
	NotificationIDs    []string          `json:"notification_ids"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Draft carries the homeowner-provided fields of a new request.
type Draft struct {
	Title              string     `json:"title" mapstructure:"title" validate:"required,max=200"`
	Description        string     `json:"description" mapstructure:"description" validate:"max=5000"`
	Classification     string     `json:"classification" mapstructure:"classification" validate:"required"`
	Submitter          Contact    `json:"submitter" mapstructure:"submitter"`
	Documents          []Document `json:"documents" mapstructure:"documents" validate:"dive"`
	GoverningDocuments []Document `json:"governing_documents" mapstructure:"governing_documents" validate:"dive"`
	Forms              []string   `json:"forms" mapstructure:"forms"`
	NeighborPositions  []string   `json:"neighbor_positions" mapstructure:"neighbor_positions"`
	Neighbors          []Neighbor `json:"neighbors" mapstructure:"neighbors" validate:"dive"`
}

// Neighbor identifies a neighbor whose sign-off a request needs.
type Neighbor struct {
	ID   string `json:"id" mapstructure:"id" validate:"required"`
	Name string `json:"name,omitempty" mapstructure:"name"`
}

// LastStage returns the most recent history entry.
func (r *Request) LastStage() (StageEntry, bool) {
	if len(r.History) == 0 {
		return StageEntry{}, false
	}
	return r.History[len(r.History)-1], true
}

// HasStage reports whether the stage appears anywhere in the history.
func (r *Request) HasStage(stage Status) bool {
	for _, e := range r.History {
		if e.Stage == stage {
			return true
		}
	}
	return false
}

// FirstEntry returns the first history entry for the stage.
func (r *Request) FirstEntry(stage Status) (StageEntry, bool) {
	for _, e := range r.History {
		if e.Stage == stage {
			return e, true
		}
	}
	return StageEntry{}, false
}

// AppendStage records a new stage and moves the status with it.
// The two fields are only ever updated together.
func (r *Request) AppendStage(entry StageEntry) {
	r.History = append(r.History, entry)
	r.Status = entry.Stage
	r.UpdatedAt = entry.EnteredAt
}

// PendingSignoffs returns the neighbors that have not answered yet.
func (r *Request) PendingSignoffs() []NeighborSignoff {
	var out []NeighborSignoff
	for _, s := range r.Signoffs {
		if s.Status == SignoffPending {
			out = append(out, s)
		}
	}
	return out
}

// VoteBy returns the vote cast by a voter, if any.
func (r *Request) VoteBy(voterID string) (BoardVote, bool) {
	for _, v := range r.Votes {
		if v.VoterID == voterID {
			return v, true
		}
	}
	return BoardVote{}, false
}

// LatestInspection returns the most recent inspection record.
func (r *Request) LatestInspection() (Inspection, bool) {
	if len(r.Inspections) == 0 {
		return Inspection{}, false
	}
	return r.Inspections[len(r.Inspections)-1], true
}

// Clone returns a deep copy so callers never share slices with the store.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.History = append([]StageEntry{}, r.History...)
	c.Documents = append([]Document{}, r.Documents...)
	c.Messages = append([]Message{}, r.Messages...)
	c.GoverningDocuments = append([]Document{}, r.GoverningDocuments...)
	c.Forms = append([]string{}, r.Forms...)
	c.NeighborPositions = append([]string{}, r.NeighborPositions...)
	c.Signoffs = append([]NeighborSignoff{}, r.Signoffs...)
	c.Votes = append([]BoardVote{}, r.Votes...)
	c.Appeals = append([]Appeal{}, r.Appeals...)
	c.Inspections = append([]Inspection{}, r.Inspections...)
	c.NotificationIDs = append([]string{}, r.NotificationIDs...)
	return &c
}
