package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/muesli/termenv"
)

const timeLayout = "2006-01-02 15:04"

// RequestView is everything the inspect screen shows about one request.
type RequestView struct {
	Request     *domain.Request
	Steps       []domain.WorkflowStepView
	Actions     []string
	Transitions []domain.Status
	Progress    int
	ETA         *time.Time
}

// RequestMarkdown formats a request as a markdown document.
func RequestMarkdown(v RequestView) string {
	r := v.Request
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	fmt.Fprintf(&b, "`%s` · **%s** · %s · %d%% complete\n\n", r.ID, r.Status, r.Classification, v.Progress)
	if v.ETA != nil {
		fmt.Fprintf(&b, "Estimated completion: %s\n\n", v.ETA.Format("2006-01-02"))
	}
	if r.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", r.Description)
	}
	fmt.Fprintf(&b, "Submitted by %s, %s\n\n", r.Submitter.Name, r.Submitter.PropertyAddress)

	if len(v.Steps) > 0 {
		b.WriteString("## Steps\n\n")
		for _, s := range v.Steps {
			mark := "[ ]"
			switch {
			case s.IsCompleted:
				mark = "[x]"
			case s.IsActive:
				mark = "[>]"
			}
			fmt.Fprintf(&b, "- %s **%s**", mark, s.Title)
			if s.Responsible != "" {
				fmt.Fprintf(&b, " (%s)", s.Responsible)
			}
			if s.CompletedAt != nil {
				fmt.Fprintf(&b, " done %s", s.CompletedAt.Format(timeLayout))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(v.Actions) > 0 {
		b.WriteString("## Waiting on\n\n")
		for _, a := range v.Actions {
			fmt.Fprintf(&b, "- %s\n", a)
		}
		b.WriteString("\n")
	}

	if len(v.Transitions) > 0 {
		parts := make([]string, len(v.Transitions))
		for i, t := range v.Transitions {
			parts[i] = "`" + string(t) + "`"
		}
		fmt.Fprintf(&b, "You may move this request to: %s\n\n", strings.Join(parts, ", "))
	}

	if len(r.Signoffs) > 0 {
		b.WriteString("## Neighbor sign-offs\n\n| Neighbor | Status | Comment |\n|---|---|---|\n")
		for _, s := range r.Signoffs {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", s.NeighborID, s.Status, s.Comment)
		}
		b.WriteString("\n")
	}

	b.WriteString("## History\n\n")
	for _, h := range r.History {
		fmt.Fprintf(&b, "- %s **%s** by %s", h.EnteredAt.Format(timeLayout), h.Stage, h.Actor)
		if h.Notes != "" {
			fmt.Fprintf(&b, ": %s", h.Notes)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// NotificationLine formats a notification for list output, colored by severity.
func NotificationLine(n *domain.Notification) string {
	p := termenv.ColorProfile()
	marker := "●"
	if n.Read {
		marker = "○"
	}
	sev := termenv.String(fmt.Sprintf("%-7s", n.Severity)).Foreground(p.Color(severityColor(n.Severity)))
	return fmt.Sprintf("%s %s %s  %s  %s (%s)", marker, n.CreatedAt.Format(timeLayout), sev, n.Title, n.Message, n.ID)
}

// StatusLabel colors a status for list output.
func StatusLabel(s domain.Status) string {
	p := termenv.ColorProfile()
	color := "#94a3b8"
	switch s {
	case domain.StatusApproved, domain.StatusCompleted:
		color = "#34d399"
	case domain.StatusDenied:
		color = "#f87171"
	case domain.StatusUnderReview, domain.StatusNeighborSignoff, domain.StatusBoardVoting:
		color = "#fbbf24"
	}
	return termenv.String(string(s)).Foreground(p.Color(color)).String()
}

func severityColor(s domain.Severity) string {
	switch s {
	case domain.SeveritySuccess:
		return "#34d399"
	case domain.SeverityWarning:
		return "#fbbf24"
	case domain.SeverityError:
		return "#f87171"
	default:
		return "#60a5fa"
	}
}
