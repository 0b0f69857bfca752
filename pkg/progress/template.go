package progress

import (
	"time"

	"github.com/aretw0/arcflow/pkg/domain"
)

const day = 24 * time.Hour

// DefaultTemplate is the canonical step list used when a classification has
// no dedicated template. Durations feed the fixed ETA table.
func DefaultTemplate() domain.WorkflowTemplate {
	return domain.WorkflowTemplate{
		Classification: "default",
		Steps: []domain.StepTemplate{
			{Order: 1, Title: "Submitted", Description: "Request received by the ARC.",
				Stages: []domain.Status{domain.StatusSubmitted}, Responsible: "Homeowner"},
			{Order: 2, Title: "ARC Review", Description: "Committee checks the request against the guidelines.",
				Stages: []domain.Status{domain.StatusUnderReview}, Responsible: "ARC Reviewer", Duration: 5 * day},
			{Order: 3, Title: "Neighbor Sign-off", Description: "Affected neighbors record their position.",
				Stages: []domain.Status{domain.StatusNeighborSignoff}, Responsible: "Neighbors", Duration: 7 * day},
			{Order: 4, Title: "Board Vote", Description: "Board members vote on the request.",
				Stages: []domain.Status{domain.StatusBoardVoting}, Responsible: "Board", Duration: 7 * day},
			{Order: 5, Title: "Decision", Description: "Request is approved or denied.",
				Stages: []domain.Status{domain.StatusApproved, domain.StatusDenied}, Responsible: "Board", Duration: 2 * day},
			{Order: 6, Title: "Project Execution", Description: "Homeowner carries out the approved work.",
				Stages: []domain.Status{domain.StatusInProgress}, Responsible: "Homeowner", Duration: 30 * day},
			{Order: 7, Title: "Final Inspection", Description: "Inspector verifies the finished work.",
				Stages: []domain.Status{domain.StatusInspectionRequired}, Responsible: "Inspector", Duration: 3 * day},
			{Order: 8, Title: "Completed", Description: "Request closed.",
				Stages: []domain.Status{domain.StatusCompleted}, Responsible: "ARC", Duration: 1 * day},
		},
	}
}
