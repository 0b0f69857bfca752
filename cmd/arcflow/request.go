package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/aretw0/arcflow/internal/cli"
	"github.com/aretw0/arcflow/internal/dto"
	"github.com/aretw0/arcflow/internal/presentation/tui"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var requestCmd = &cobra.Command{
	Use:     "request",
	Aliases: []string{"req"},
	Short:   "File, inspect and move ARC requests",
}

var requestCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "File a new request as the current actor",
	Long: `Files a new request. Pass the draft as a YAML or JSON file with --file,
or build it from flags. Neighbors are given as id:name pairs.`,
	RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *cli.Runtime) error {
		ctx, err := actorContext(cmd, rt)
		if err != nil {
			return err
		}
		draft, err := draftFromFlags(cmd)
		if err != nil {
			return err
		}
		req, err := rt.Engine.CreateRequest(ctx, draft)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, req)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", req.ID, req.Status)
		return nil
	}),
}

func draftFromFlags(cmd *cobra.Command) (domain.Draft, error) {
	var draft domain.Draft
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return draft, fmt.Errorf("failed to read draft: %w", err)
		}
		return decodeDraft(data)
	}

	draft.Title, _ = cmd.Flags().GetString("title")
	draft.Description, _ = cmd.Flags().GetString("description")
	draft.Classification, _ = cmd.Flags().GetString("classification")
	draft.Submitter.Name, _ = cmd.Flags().GetString("name")
	draft.Submitter.PropertyAddress, _ = cmd.Flags().GetString("address")
	draft.Submitter.Email, _ = cmd.Flags().GetString("email")
	draft.Submitter.Phone, _ = cmd.Flags().GetString("phone")
	pairs, _ := cmd.Flags().GetStringSlice("neighbor")
	for _, p := range pairs {
		id, name, _ := strings.Cut(p, ":")
		draft.Neighbors = append(draft.Neighbors, domain.Neighbor{ID: strings.TrimSpace(id), Name: strings.TrimSpace(name)})
	}
	return draft, nil
}

// decodeDraft reads YAML or JSON (a YAML subset) into a draft using the
// same keys as the MCP and HTTP payloads.
func decodeDraft(data []byte) (domain.Draft, error) {
	var draft domain.Draft
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return draft, fmt.Errorf("failed to parse draft: %w", err)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &draft,
		TagName:     "mapstructure",
		ErrorUnused: true,
	})
	if err != nil {
		return draft, err
	}
	if err := dec.Decode(raw); err != nil {
		return draft, fmt.Errorf("invalid draft: %w", err)
	}
	return draft, nil
}

var requestListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List requests",
	RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *cli.Runtime) error {
		status, _ := cmd.Flags().GetString("status")
		out := []dto.RequestSummary{}
		for _, r := range rt.Engine.ListRequests(cmd.Context()) {
			if status == "" || string(r.Status) == status {
				out = append(out, dto.Summarize(r))
			}
		}
		if wantJSON(cmd) {
			return printJSON(cmd, out)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATUS\tCLASS\tTITLE\tUPDATED")
		for _, s := range out {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, tui.StatusLabel(s.Status), s.Classification, s.Title, s.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	}),
}

var requestInspectCmd = &cobra.Command{
	Use:   "inspect ID",
	Short: "Show a request with its steps, progress and pending actions",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *cli.Runtime) error {
		ctx := cmd.Context()
		if actx, err := actorContext(cmd, rt); err == nil {
			ctx = actx
		}
		id := args[0]
		req, err := rt.Engine.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, req)
		}
		view := tui.RequestView{Request: req}
		if view.Steps, err = rt.Engine.GetWorkflowSteps(ctx, id); err != nil {
			return err
		}
		if view.Actions, err = rt.Engine.GetRequiredActions(ctx, id); err != nil {
			return err
		}
		if view.Transitions, err = rt.Engine.GetAvailableTransitions(ctx, id); err != nil {
			return err
		}
		if view.Progress, err = rt.Engine.CalculateProgress(ctx, id); err != nil {
			return err
		}
		if view.ETA, err = rt.Engine.GetEstimatedCompletion(ctx, id); err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), tui.Render(tui.RequestMarkdown(view)))
		return nil
	}),
}

var requestTransitionCmd = &cobra.Command{
	Use:   "transition ID STATUS",
	Short: "Move a request to another status",
	Args:  cobra.ExactArgs(2),
	RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *cli.Runtime) error {
		ctx, err := actorContext(cmd, rt)
		if err != nil {
			return err
		}
		notes, _ := cmd.Flags().GetString("notes")
		res, err := rt.Engine.TransitionRequest(ctx, args[0], domain.Status(args[1]), notes)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", args[0], res.From, res.To)
		for _, s := range res.AutoAdvanced {
			fmt.Fprintf(cmd.OutOrStdout(), "  advanced to %s\n", s)
		}
		return nil
	}),
}

var requestStepsCmd = &cobra.Command{
	Use:   "steps ID",
	Short: "Show the workflow steps of a request",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *cli.Runtime) error {
		steps, err := rt.Engine.GetWorkflowSteps(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, steps)
		}
		for _, s := range steps {
			mark := " "
			switch {
			case s.IsCompleted:
				mark = "x"
			case s.IsActive:
				mark = ">"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %d. %s\n", mark, s.Order, s.Title)
		}
		return nil
	}),
}

var requestActionsCmd = &cobra.Command{
	Use:   "actions ID",
	Short: "Show what a request is waiting on",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *cli.Runtime) error {
		todo, err := rt.Engine.GetRequiredActions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, todo)
		}
		if len(todo) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing pending.")
		}
		for _, a := range todo {
			fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", a)
		}
		return nil
	}),
}

var requestSignoffCmd = &cobra.Command{
	Use:   "signoff ID NEIGHBOR STATUS",
	Short: "Record a neighbor sign-off (signed, objected or pending)",
	Args:  cobra.ExactArgs(3),
	RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *cli.Runtime) error {
		ctx, err := actorContext(cmd, rt)
		if err != nil {
			return err
		}
		comment, _ := cmd.Flags().GetString("comment")
		res, err := rt.Engine.RecordSignoff(ctx, args[0], args[1], domain.SignoffStatus(args[2]), comment)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for %s\n", args[2], args[1])
		return nil
	}),
}

var requestVoteCmd = &cobra.Command{
	Use:   "vote ID DECISION",
	Short: "Cast a board vote (approve, deny or abstain)",
	Args:  cobra.ExactArgs(2),
	RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *cli.Runtime) error {
		ctx, err := actorContext(cmd, rt)
		if err != nil {
			return err
		}
		comment, _ := cmd.Flags().GetString("comment")
		req, err := rt.Engine.CastVote(ctx, args[0], domain.VoteDecision(args[1]), comment)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, req)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Vote recorded (%d votes)\n", len(req.Votes))
		return nil
	}),
}

var requestInspectionCmd = &cobra.Command{
	Use:   "inspection ID",
	Short: "Record an inspection outcome",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *cli.Runtime) error {
		ctx, err := actorContext(cmd, rt)
		if err != nil {
			return err
		}
		passed, _ := cmd.Flags().GetBool("passed")
		notes, _ := cmd.Flags().GetString("notes")
		req, err := rt.Engine.RecordInspection(ctx, args[0], passed, notes)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, req)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Inspection recorded (%d inspections)\n", len(req.Inspections))
		return nil
	}),
}

var requestCommentCmd = &cobra.Command{
	Use:   "comment ID BODY",
	Short: "Add a comment to a request",
	Args:  cobra.ExactArgs(2),
	RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *cli.Runtime) error {
		ctx, err := actorContext(cmd, rt)
		if err != nil {
			return err
		}
		req, err := rt.Engine.AddComment(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, req)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Comment added (%d messages)\n", len(req.Messages))
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.AddCommand(requestCreateCmd, requestListCmd, requestInspectCmd, requestTransitionCmd,
		requestStepsCmd, requestActionsCmd, requestSignoffCmd, requestVoteCmd, requestInspectionCmd, requestCommentCmd)

	f := requestCreateCmd.Flags()
	f.StringP("file", "f", "", "Read the draft from a YAML or JSON file")
	f.String("title", "", "Request title")
	f.String("description", "", "What will be built or changed")
	f.String("classification", "", "Project classification, e.g. fence or solar")
	f.String("name", "", "Submitter name")
	f.String("address", "", "Property address")
	f.String("email", "", "Submitter email")
	f.String("phone", "", "Submitter phone")
	f.StringSlice("neighbor", nil, "Neighbor whose sign-off is needed, as id:name (repeatable)")

	requestListCmd.Flags().String("status", "", "Only list requests in this status")
	requestTransitionCmd.Flags().String("notes", "", "Reason, required for denials and returns")
	requestSignoffCmd.Flags().String("comment", "", "Optional comment")
	requestVoteCmd.Flags().String("comment", "", "Optional comment")
	requestInspectionCmd.Flags().Bool("passed", false, "Whether the inspection passed")
	requestInspectionCmd.Flags().String("notes", "", "Inspector notes")
}
