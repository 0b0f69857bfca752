package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/workflow"
)

// Overlay marks the stages a request has been through.
type Overlay struct {
	Visited []domain.Status
	Current domain.Status
}

// OverlayFor builds the overlay of a request from its history.
func OverlayFor(req *domain.Request) *Overlay {
	o := &Overlay{Current: req.Status}
	for _, h := range req.History {
		o.Visited = append(o.Visited, h.Stage)
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of the transition table.
// Shapes:
// - submitted: ((Circle))
// - terminal statuses: ([Stadium])
// - everything else: [Rectangle]
// Edges that need a reason are dotted; guard rules become edge labels.
func GenerateMermaid(edges []workflow.Edge, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	declared := make(map[domain.Status]bool)
	declare := func(s domain.Status) {
		if declared[s] {
			return
		}
		declared[s] = true
		opener, closer := "[", "]"
		switch {
		case s == domain.StatusSubmitted:
			opener, closer = "((", "))"
		case s.IsTerminal():
			opener, closer = "([", "])"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(string(s)), opener, s, closer)
	}

	for _, e := range edges {
		declare(e.From)
		declare(e.To)

		label := capsLabel(e.AnyOf)
		if e.Rule != "" {
			label += " <br/> " + strings.ReplaceAll(e.Rule, "\"", "'")
		}
		arrow := fmt.Sprintf("-- \"%s\" -->", label)
		if e.RequiresNotes {
			arrow = fmt.Sprintf("-. \"%s\" .->", label)
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(string(e.From)), arrow, sanitizeMermaidID(string(e.To)))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, s := range overlay.Visited {
			id := sanitizeMermaidID(string(s))
			if id == "" || seen[id] || s == overlay.Current {
				continue
			}
			seen[id] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", id)
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(string(overlay.Current)))
		}
	}

	return sb.String()
}

func capsLabel(cs []domain.Capability) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = string(c)
	}
	return strings.Join(parts, " | ")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}
