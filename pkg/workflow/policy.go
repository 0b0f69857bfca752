package workflow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/inflight"
)

// SignoffMode selects how neighbor sign-offs are counted.
type SignoffMode string

const (
	// SignoffAll requires every neighbor to have answered (signed or objected).
	SignoffAll SignoffMode = "all"
	// SignoffMajority requires more than half of the records to be signed.
	SignoffMajority SignoffMode = "majority"
)

// SignoffPolicy is the rule that lets a request leave neighbor-signoff.
type SignoffPolicy struct {
	Mode SignoffMode `yaml:"mode" json:"mode"`
	// ObjectionsBlock fails the policy as soon as any neighbor objected.
	ObjectionsBlock bool `yaml:"objections_block" json:"objections_block"`
	// AutoAdvance moves the request to board-voting once a sign-off
	// satisfies the policy.
	AutoAdvance bool `yaml:"auto_advance" json:"auto_advance"`
}

// Check returns nil when the sign-offs satisfy the policy.
func (p SignoffPolicy) Check(signoffs []domain.NeighborSignoff) error {
	var signed, objected, pending int
	for _, s := range signoffs {
		switch s.Status {
		case domain.SignoffSigned:
			signed++
		case domain.SignoffObjected:
			objected++
		default:
			pending++
		}
	}

	if p.ObjectionsBlock && objected > 0 {
		return fmt.Errorf("%d neighbor objection(s) on record", objected)
	}

	switch p.Mode {
	case SignoffMajority:
		if signed*2 <= len(signoffs) {
			return fmt.Errorf("%d of %d neighbors signed, majority required", signed, len(signoffs))
		}
	default:
		if pending > 0 {
			return fmt.Errorf("%d neighbor sign-off(s) pending", pending)
		}
	}
	return nil
}

// DefaultTransitionTimeout bounds a single command's commit.
const DefaultTransitionTimeout = 10 * time.Second

// Policy is the configurable part of the workflow.
type Policy struct {
	Signoff SignoffPolicy `yaml:"signoff" json:"signoff"`
	// SignoffExempt lists classifications that may skip neighbor sign-off.
	SignoffExempt []string `yaml:"signoff_exempt" json:"signoff_exempt"`
	// BoardMembers is the voting roster used to list missing votes.
	BoardMembers []string `yaml:"board_members" json:"board_members"`
	// EstimateMode is "fixed" or "observed".
	EstimateMode      string        `yaml:"estimate_mode" json:"estimate_mode"`
	TransitionTimeout time.Duration `yaml:"transition_timeout" json:"transition_timeout"`
	LockTTL           time.Duration `yaml:"lock_ttl" json:"lock_ttl"`
}

// DefaultPolicy requires every neighbor to answer, lets objections through
// to the board and never advances automatically.
func DefaultPolicy() Policy {
	return Policy{
		Signoff:           SignoffPolicy{Mode: SignoffAll},
		EstimateMode:      "fixed",
		TransitionTimeout: DefaultTransitionTimeout,
	}
}

// RequiresSignoff reports whether requests of the classification must go
// through neighbor sign-off.
func (p Policy) RequiresSignoff(classification string) bool {
	for _, c := range p.SignoffExempt {
		if c == classification {
			return false
		}
	}
	return true
}

// Validate checks the policy for unknown modes, negative durations and a
// lock TTL that could expire while a commit is still allowed to run.
func (p Policy) Validate() error {
	switch p.Signoff.Mode {
	case "", SignoffAll, SignoffMajority:
	default:
		return fmt.Errorf("unknown sign-off mode %q", p.Signoff.Mode)
	}
	switch p.EstimateMode {
	case "", "fixed", "observed":
	default:
		return fmt.Errorf("unknown estimate mode %q", p.EstimateMode)
	}
	if p.TransitionTimeout < 0 {
		return fmt.Errorf("transition_timeout must not be negative")
	}
	if p.LockTTL < 0 {
		return fmt.Errorf("lock_ttl must not be negative")
	}
	timeout, ttl := p.TransitionTimeout, p.LockTTL
	if timeout == 0 {
		timeout = DefaultTransitionTimeout
	}
	if ttl == 0 {
		ttl = inflight.DefaultLockTTL
	}
	if ttl < timeout {
		return fmt.Errorf("lock_ttl (%s) must not be shorter than transition_timeout (%s)", ttl, timeout)
	}
	seen := make(map[string]bool, len(p.BoardMembers))
	for _, m := range p.BoardMembers {
		if seen[m] {
			return fmt.Errorf("board member %q listed twice", m)
		}
		seen[m] = true
	}
	return nil
}

// ParsePolicy decodes a YAML policy on top of DefaultPolicy.
// Unknown keys are rejected.
func ParsePolicy(data []byte) (Policy, error) {
	p := DefaultPolicy()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Policy{}, fmt.Errorf("failed to parse policy: %w", err)
	}
	if p.TransitionTimeout == 0 {
		p.TransitionTimeout = DefaultTransitionTimeout
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid policy: %w", err)
	}
	return p, nil
}

// LoadPolicy reads a YAML policy file.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}
