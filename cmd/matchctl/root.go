// cmd/matchctl/root.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"trade-match-engine/internal/common/config"
	"trade-match-engine/internal/common/database"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/engine/application"
	"trade-match-engine/internal/engine/interaction"
	"trade-match-engine/internal/engine/ranking"
	"trade-match-engine/internal/engine/scoring"
	"trade-match-engine/internal/models"
	"trade-match-engine/internal/notify"
	"trade-match-engine/internal/store/memory"
	"trade-match-engine/internal/store/sqlstore"
)

const app = "matchctl"

// env is the state shared by every subcommand. It is filled in by open
// once flags are parsed.
type env struct {
	v *viper.Viper

	zap          *zap.Logger
	log          logger.Logger
	client       *database.SQLClient
	store        *sqlstore.Store
	jobs         *memory.Store
	scorer       *scoring.Scorer
	interactions *interaction.Service
	applications *application.Service
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	e := &env{v: viper.New()}
	root := newRootCmd(e)
	root.SetArgs(args)
	root.SetOut(stdout)

	err := root.ExecuteContext(ctx)
	if cerr := e.close(); err == nil {
		err = cerr
	}
	return err
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   app,
		Short: "matchctl scores jobs, ranks feeds and drives interactions and applications against a local SQLite store",
		// errors are printed once by main
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.open(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.String("db", "match.db", `sqlite database path, ":memory:" for a throwaway store`)
	flags.String("jobs", "", "JSON file with an array of job postings")
	flags.String("log-level", "warn", "debug, info, warn or error")
	flags.Int("threshold", ranking.DefaultGoodMatchThreshold, "good match threshold (0..100)")

	e.v.SetEnvPrefix(strings.ToUpper(app))
	e.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	e.v.AutomaticEnv()
	_ = e.v.BindPFlags(flags)

	root.AddCommand(
		newMigrateCmd(e),
		newProfileCmd(e),
		newContactCmd(e),
		newScoreCmd(e),
		newFeedCmd(e),
		newInteractionCmd(e),
		newApplicationCmd(e),
	)
	return root
}

func (e *env) open(ctx context.Context) error {
	e.zap = logger.New(e.v.GetString("log-level"), "console", "stderr")
	e.log = logger.NewZapAdapter(e.zap)

	client, err := database.NewSQLite(config.SQLiteConfig{Path: e.v.GetString("db")})
	if err != nil {
		return err
	}
	e.client = client
	e.store = sqlstore.New(client, e.log)
	if err := e.store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	e.jobs = memory.New()
	if path := e.v.GetString("jobs"); path != "" {
		if err := loadJobs(path, e.jobs); err != nil {
			return err
		}
	}

	e.scorer = scoring.New(e.log)
	e.interactions = interaction.NewService(e.store, e.log)
	notifier := application.NewNotifier(notify.NewLogDispatcher(e.log), e.log, 4, 5*time.Second, nil)
	e.applications = application.NewService(e.store, notifier, e.log,
		application.WithAdmission(e.jobs, e.store, e.scorer))
	return nil
}

func (e *env) close() error {
	if e.applications != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.applications.Close(ctx); err != nil {
			e.log.Warn("pending notifications abandoned", map[string]interface{}{"error": err})
		}
	}
	if e.zap != nil {
		_ = e.zap.Sync()
	}
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

func (e *env) threshold() int {
	return e.v.GetInt("threshold")
}

func loadJobs(path string, into *memory.Store) error {
	var jobs []models.JobPosting
	if err := readJSON(path, &jobs); err != nil {
		return err
	}
	for i, job := range jobs {
		if err := job.Validate(); err != nil {
			return fmt.Errorf("%s: job %d: %w", path, i, err)
		}
		into.PutJob(job)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the SQLite schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date in %s\n", e.v.GetString("db"))
			return nil
		},
	}
}
