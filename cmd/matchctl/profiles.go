// cmd/matchctl/profiles.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trade-match-engine/internal/models"
)

func newProfileCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage candidate profiles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import FILE",
		Short: "Upsert candidate profiles from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var profiles []models.CandidateProfile
			if err := readJSON(args[0], &profiles); err != nil {
				return err
			}
			for i := range profiles {
				if err := profiles[i].Validate(); err != nil {
					return fmt.Errorf("profile %d: %w", i, err)
				}
				if err := e.store.UpsertProfile(cmd.Context(), &profiles[i]); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d profiles\n", len(profiles))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get CANDIDATE_ID",
		Short: "Print a stored profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := e.store.GetProfile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, p)
		},
	})

	return cmd
}

func newContactCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Manage candidate contact details used for notifications",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import FILE",
		Short: "Upsert contacts from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var contacts []models.Contact
			if err := readJSON(args[0], &contacts); err != nil {
				return err
			}
			for i := range contacts {
				if contacts[i].CandidateID == "" {
					return fmt.Errorf("contact %d: candidateId is required", i)
				}
				if err := e.store.UpsertContact(cmd.Context(), &contacts[i]); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d contacts\n", len(contacts))
			return nil
		},
	})

	return cmd
}
