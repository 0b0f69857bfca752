package tui

import (
	"bytes"
	"testing"
	"time"

	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestRequestMarkdown(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	eta := at.Add(72 * time.Hour)
	md := RequestMarkdown(RequestView{
		Request: &domain.Request{
			ID:             "r1",
			Title:          "Backyard Fence",
			Classification: "fence",
			Status:         domain.StatusNeighborSignoff,
			Submitter:      domain.Contact{Name: "Dana", PropertyAddress: "12 Elm Ct"},
			History: []domain.StageEntry{
				{Stage: domain.StatusSubmitted, EnteredAt: at, Actor: "owner-1"},
				{Stage: domain.StatusUnderReview, EnteredAt: at.Add(time.Hour), Actor: "rev-1", Notes: "looks complete"},
			},
			Signoffs: []domain.NeighborSignoff{{NeighborID: "n-1", Status: domain.SignoffPending}},
		},
		Steps: []domain.WorkflowStepView{
			{Order: 1, Title: "Submit", IsCompleted: true, CompletedAt: &at},
			{Order: 2, Title: "Neighbor review", IsActive: true, Responsible: "neighbors"},
		},
		Actions:     []string{"Awaiting sign-off from n-1"},
		Transitions: []domain.Status{domain.StatusDenied},
		Progress:    40,
		ETA:         &eta,
	})

	assert.Contains(t, md, "# Backyard Fence")
	assert.Contains(t, md, "**neighbor-signoff** · fence · 40% complete")
	assert.Contains(t, md, "Estimated completion: 2026-05-04")
	assert.Contains(t, md, "- [x] **Submit** done 2026-05-01 10:00")
	assert.Contains(t, md, "- [>] **Neighbor review** (neighbors)")
	assert.Contains(t, md, "- Awaiting sign-off from n-1")
	assert.Contains(t, md, "`denied`")
	assert.Contains(t, md, "| n-1 | pending |")
	assert.Contains(t, md, "**under-review** by rev-1: looks complete")
}

func TestNotificationLine(t *testing.T) {
	n := &domain.Notification{ID: "n1", Severity: domain.SeverityWarning, Title: "Returned", Message: "Add a site plan"}
	line := NotificationLine(n)
	assert.Contains(t, line, "●")
	assert.Contains(t, line, "Returned")
	assert.Contains(t, line, "(n1)")

	n.Read = true
	assert.Contains(t, NotificationLine(n), "○")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|_|")
}
