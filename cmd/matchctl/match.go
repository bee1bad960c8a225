// cmd/matchctl/match.go
package main

import (
	"github.com/spf13/cobra"

	"trade-match-engine/internal/engine/feed"
	"trade-match-engine/internal/engine/ranking"
)

func newScoreCmd(e *env) *cobra.Command {
	var candidateID, jobID string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one candidate against one job from --jobs",
		Example: `  matchctl --jobs jobs.json score --candidate c1 --job pipe`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := e.store.GetProfile(cmd.Context(), candidateID)
			if err != nil {
				return err
			}
			job, err := e.jobs.GetJob(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			result, err := e.scorer.Score(*profile, *job)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().StringVar(&candidateID, "candidate", "", "candidate id")
	cmd.Flags().StringVar(&jobID, "job", "", "job id")
	_ = cmd.MarkFlagRequired("candidate")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func newFeedCmd(e *env) *cobra.Command {
	var (
		candidateID string
		sortBy      string
		filter      ranking.FilterSpec
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Build the ranked job feed for a candidate",
		Example: `  matchctl --jobs jobs.json feed --candidate c1 --sort match --good-only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.SortBy = ranking.SortKey(sortBy)

			builder := feed.NewBuilder(e.store, e.jobs, e.store, e.scorer, e.log,
				feed.WithGoodMatchThreshold(e.threshold()))
			out, err := builder.Build(cmd.Context(), feed.Request{CandidateID: candidateID, Filter: filter})
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}

	f := cmd.Flags()
	f.StringVar(&candidateID, "candidate", "", "candidate id")
	f.StringVar(&filter.Query, "query", "", "free text over title and company")
	f.StringVar(&filter.Location, "location", "", "location substring")
	f.StringVar(&filter.Source, "source", "", "job source")
	f.BoolVar(&filter.GoodMatchesOnly, "good-only", false, "only rows at or above the threshold")
	f.BoolVar(&filter.HideDismissed, "hide-dismissed", false, "hide jobs marked not interested")
	f.StringVar(&sortBy, "sort", "", "match, date or pay")
	f.IntVar(&filter.Limit, "limit", 0, "maximum rows, 0 for all")
	_ = cmd.MarkFlagRequired("candidate")
	return cmd
}
