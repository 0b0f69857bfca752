package loam

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arcflow/internal/testutils"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/ports/tests"
	"github.com/aretw0/arcflow/pkg/progress"
	"github.com/aretw0/loam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fenceDoc = `---
steps:
  - title: Submitted
    stages: [submitted]
    responsible: Homeowner
  - title: ARC Review
    stages: [under-review]
    responsible: ARC Reviewer
    duration: 3d
    weight: 2
  - title: Decision
    stages: [approved, denied]
    duration: 36h
  - title: Completed
    stages: [completed]
---
Fences under six feet skip the board vote.`

const solarJSON = `{
  "classification": "solar",
  "steps": [
    {"title": "Submitted", "stages": ["submitted"]},
    {"title": "Review", "stages": ["under-review"], "duration": 5},
    {"title": "Board", "stages": ["board-voting"], "duration": "7d"},
    {"title": "Decision", "stages": ["approved", "denied"]},
    {"title": "Done", "stages": ["completed"]}
  ]
}`

func seed(t *testing.T, files map[string]string) *Loader {
	t.Helper()
	_, repo := testutils.SetupTemplateRepo(t, files, loam.WithVersioning(false))
	return New(loam.NewTypedRepository[TemplateMetadata](repo), progress.DefaultTemplate())
}

func TestLoader_Contract(t *testing.T) {
	loader := seed(t, map[string]string{
		"fence.md":   fenceDoc,
		"solar.json": solarJSON,
	})
	tests.TemplateLoaderContractTest(t, loader, map[string]int{"fence": 4, "solar": 5})
}

func TestLoader_ConvertsSteps(t *testing.T) {
	loader := seed(t, map[string]string{"fence.md": fenceDoc})

	tpl, err := loader.Template(context.Background(), "fence")
	require.NoError(t, err)
	require.Len(t, tpl.Steps, 4)

	review := tpl.Steps[1]
	assert.Equal(t, 2, review.Order)
	assert.Equal(t, "ARC Review", review.Title)
	assert.Equal(t, 2, review.Weight)
	assert.Equal(t, 72*time.Hour, review.Duration)
	assert.Equal(t, []domain.Status{domain.StatusApproved, domain.StatusDenied}, tpl.Steps[2].Stages)
	assert.Equal(t, 36*time.Hour, tpl.Steps[2].Duration)
}

func TestLoader_FallbackDocument(t *testing.T) {
	loader := seed(t, map[string]string{
		"fence.md": fenceDoc,
		"standard.md": `---
fallback: true
steps:
  - title: Submitted
    stages: [submitted]
  - title: Completed
    stages: [completed]
---
`,
	})

	tpl, err := loader.Template(context.Background(), "pergola")
	require.NoError(t, err)
	assert.Equal(t, "standard", tpl.Classification)
	assert.Len(t, tpl.Steps, 2)
}

func TestLoader_DetectsCollisions(t *testing.T) {
	loader := seed(t, map[string]string{
		"fence.md":   fenceDoc,
		"fence.json": `{"steps": [{"title": "Only", "stages": ["submitted"]}]}`,
	})

	_, err := loader.Classifications(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
}

func TestLoader_RejectsInvalidStep(t *testing.T) {
	loader := seed(t, map[string]string{
		"broken.md": `---
steps:
  - title: Missing stages
---
`,
	})

	_, err := loader.Template(context.Background(), "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   any
		want time.Duration
		err  bool
	}{
		{nil, 0, false},
		{"", 0, false},
		{"2d", 48 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{3, 72 * time.Hour, false},
		{0.5, 12 * time.Hour, false},
		{"-1d", 0, true},
		{"soon", 0, true},
		{true, 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.in)
		if tc.err {
			assert.Error(t, err, "%v", tc.in)
			continue
		}
		require.NoError(t, err, "%v", tc.in)
		assert.Equal(t, tc.want, got, "%v", tc.in)
	}
}
