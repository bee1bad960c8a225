// cmd/matchctl/lifecycle.go
package main

import (
	"context"

	"github.com/spf13/cobra"

	"trade-match-engine/internal/models"
)

func newInteractionCmd(e *env) *cobra.Command {
	var candidateID, jobID, notes string

	cmd := &cobra.Command{
		Use:   "interaction",
		Short: "Track a candidate's interest in an aggregated job",
	}
	f := cmd.PersistentFlags()
	f.StringVar(&candidateID, "candidate", "", "candidate id")
	f.StringVar(&jobID, "job", "", "job id")
	_ = cmd.MarkPersistentFlagRequired("candidate")
	_ = cmd.MarkPersistentFlagRequired("job")

	actions := []struct {
		use   string
		short string
		do    func(ctx context.Context) (*models.Interaction, error)
	}{
		{"save", "Bookmark the job", func(ctx context.Context) (*models.Interaction, error) {
			return e.interactions.Save(ctx, candidateID, jobID)
		}},
		{"apply-click", "Record a click through to the external posting", func(ctx context.Context) (*models.Interaction, error) {
			return e.interactions.RecordApplyClick(ctx, candidateID, jobID)
		}},
		{"applied", "Mark the job as applied", func(ctx context.Context) (*models.Interaction, error) {
			return e.interactions.MarkApplied(ctx, candidateID, jobID, notes)
		}},
		{"not-interested", "Dismiss the job", func(ctx context.Context) (*models.Interaction, error) {
			return e.interactions.MarkNotInterested(ctx, candidateID, jobID)
		}},
		{"notes", "Replace the candidate's notes", func(ctx context.Context) (*models.Interaction, error) {
			return e.interactions.UpdateNotes(ctx, candidateID, jobID, notes)
		}},
		{"get", "Print the interaction", func(ctx context.Context) (*models.Interaction, error) {
			return e.interactions.Get(ctx, candidateID, jobID)
		}},
	}

	for _, a := range actions {
		sub := &cobra.Command{
			Use:   a.use,
			Short: a.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				it, err := a.do(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, it)
			},
		}
		if a.use == "applied" || a.use == "notes" {
			sub.Flags().StringVar(&notes, "notes", "", "free text notes")
		}
		cmd.AddCommand(sub)
	}
	return cmd
}

func newApplicationCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "application",
		Short: "Drive first-party applications through the employer pipeline",
	}
	cmd.AddCommand(
		newApplicationCreateCmd(e),
		newApplicationTransitionCmd(e),
		&cobra.Command{
			Use:   "notes APPLICATION_ID TEXT",
			Short: "Replace the employer notes",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := e.applications.UpdateNotes(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd, app)
			},
		},
		&cobra.Command{
			Use:   "get APPLICATION_ID",
			Short: "Print an application",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := e.applications.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, app)
			},
		},
	)
	return cmd
}

func newApplicationCreateCmd(e *env) *cobra.Command {
	var req models.NewApplication

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit an application for a first-party job; the match score is computed from the stored profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := e.applications.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, app)
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.CandidateID, "candidate", "", "candidate id")
	f.StringVar(&req.JobID, "job", "", "job id")
	f.StringVar(&req.CoverMessage, "cover", "", "cover message")
	_ = cmd.MarkFlagRequired("candidate")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func newApplicationTransitionCmd(e *env) *cobra.Command {
	var change models.StatusChange

	cmd := &cobra.Command{
		Use:     "transition APPLICATION_ID STATUS",
		Short:   "Move an application to reviewing, interview, offer, hired or rejected",
		Example: `  matchctl application transition 6f1c... rejected --reason "position filled"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			change.ApplicationID = args[0]
			change.Status = models.ApplicationStatus(args[1])
			app, err := e.applications.Transition(cmd.Context(), change)
			if err != nil {
				return err
			}
			return printJSON(cmd, app)
		},
	}
	cmd.Flags().StringVar(&change.EmployerNotes, "notes", "", "employer notes")
	cmd.Flags().StringVar(&change.RejectionReason, "reason", "", "rejection reason")
	return cmd
}
