package domain

// Capability is a permission checked by the authorization oracle.
type Capability string

const (
	CapView     Capability = "requests:view"
	CapCreate   Capability = "requests:create"
	CapReview   Capability = "requests:review"
	CapOverride Capability = "requests:override"
	CapBoard    Capability = "requests:board"
	CapVote     Capability = "requests:vote"
	CapSignoff  Capability = "requests:signoff"
	CapExecute  Capability = "requests:execute"
	CapInspect  Capability = "requests:inspect"
)

// Capabilities lists every capability known to the engine.
var Capabilities = []Capability{
	CapView, CapCreate, CapReview, CapOverride, CapBoard,
	CapVote, CapSignoff, CapExecute, CapInspect,
}

// Built-in roles. The authorization policy maps them to capabilities.
const (
	RoleHomeowner   = "homeowner"
	RoleNeighbor    = "neighbor"
	RoleReviewer    = "arc-reviewer"
	RoleChair       = "arc-chair"
	RoleBoardMember = "board-member"
	RoleInspector   = "inspector"
	RoleAdmin       = "admin"
)

// SystemActorID identifies transitions performed by the engine itself.
const SystemActorID = "system"

// Actor is the caller on whose behalf a command runs.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// System returns the actor used for automatic progression.
func System() Actor {
	return Actor{ID: SystemActorID, Role: RoleAdmin}
}
