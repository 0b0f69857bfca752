/*
Package arcflow is a workflow engine for Architectural Review Committee (ARC)
requests: homeowner modification requests that move through review, neighbor
sign-off, board voting, a decision, execution and inspection.

It enforces role-gated transitions from an exhaustive transition table,
serializes commands per request with a fail-fast in-flight guard, derives
progress, step and ETA views from the append-only stage history, and emits
notifications for every committed transition.

# Concept

The Engine owns its request and notification collections behind the
in-flight guard and exposes a command/query API. Storage, authorization and
workflow templates are ports; adapters for memory, files, Redis, Loam, HTTP
and MCP live under pkg/adapters and internal/adapters.

# Usage

	eng, err := arcflow.New()
	if err != nil {
		log.Fatal(err)
	}

	owner := arcflow.WithActor(ctx, domain.Actor{ID: "owner-1", Role: domain.RoleHomeowner})
	req, err := eng.CreateRequest(owner, domain.Draft{
		Title:          "Solar Panel Installation",
		Classification: "solar",
		Submitter:      domain.Contact{Name: "Dana", PropertyAddress: "12 Elm Ct"},
	})

	reviewer := arcflow.WithActor(ctx, domain.Actor{ID: "rev-1", Role: domain.RoleReviewer})
	_, err = eng.TransitionRequest(reviewer, req.ID, domain.StatusUnderReview, "")

Derived views are recomputed on every call:

	pct, _ := eng.CalculateProgress(ctx, req.ID)
	steps, _ := eng.GetWorkflowSteps(ctx, req.ID)
	todo, _ := eng.GetRequiredActions(reviewer, req.ID)
*/
package arcflow
