package arcflow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/arcflow"
	"github.com/aretw0/arcflow/pkg/domain"
)

// ExampleNew demonstrates a request moving from submission into review with
// the default in-memory setup.
func ExampleNew() {
	eng, err := arcflow.New()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	owner := arcflow.WithActor(ctx, domain.Actor{ID: "owner-1", Role: domain.RoleHomeowner})
	reviewer := arcflow.WithActor(ctx, domain.Actor{ID: "rev-1", Role: domain.RoleReviewer})

	req, err := eng.CreateRequest(owner, domain.Draft{
		Title:          "Solar Panel Installation",
		Classification: "solar",
		Submitter:      domain.Contact{Name: "Dana", PropertyAddress: "12 Elm Ct"},
		Neighbors:      []domain.Neighbor{{ID: "n-1", Name: "Lee"}},
	})
	if err != nil {
		log.Fatal(err)
	}

	pct, _ := eng.CalculateProgress(ctx, req.ID)
	fmt.Printf("%s: %d%%\n", req.Status, pct)

	next, _ := eng.GetAvailableTransitions(reviewer, req.ID)
	fmt.Println("reviewer may move to:", next)

	res, err := eng.TransitionRequest(reviewer, req.ID, domain.StatusUnderReview, "complete package")
	if err != nil {
		log.Fatal(err)
	}
	pct, _ = eng.CalculateProgress(ctx, req.ID)
	fmt.Printf("%s: %d%%, %s\n", res.To, pct, res.Notification.Severity)

	// Output:
	// submitted: 12%
	// reviewer may move to: [under-review denied]
	// under-review: 25%, info
}

// ExampleEngine_GetRequiredActions shows the reviewer's to-do list while
// neighbors are still answering.
func ExampleEngine_GetRequiredActions() {
	eng, _ := arcflow.New()
	ctx := context.Background()
	owner := arcflow.WithActor(ctx, domain.Actor{ID: "owner-1", Role: domain.RoleHomeowner})
	reviewer := arcflow.WithActor(ctx, domain.Actor{ID: "rev-1", Role: domain.RoleReviewer})

	req, _ := eng.CreateRequest(owner, domain.Draft{
		Title:          "Backyard Fence",
		Classification: "fence",
		Submitter:      domain.Contact{Name: "Dana", PropertyAddress: "12 Elm Ct"},
		Neighbors:      []domain.Neighbor{{ID: "n-1", Name: "Lee"}, {ID: "n-2", Name: "Kim"}},
	})
	_, _ = eng.TransitionRequest(reviewer, req.ID, domain.StatusUnderReview, "")
	_, _ = eng.TransitionRequest(reviewer, req.ID, domain.StatusNeighborSignoff, "")

	todo, _ := eng.GetRequiredActions(reviewer, req.ID)
	for _, a := range todo {
		fmt.Println(a)
	}

	// Output:
	// Awaiting sign-off from Lee (n-1)
	// Awaiting sign-off from Kim (n-2)
}
