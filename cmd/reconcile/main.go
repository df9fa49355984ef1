package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-reconcile-pipeline/internal/config"
	"go-reconcile-pipeline/internal/pipeline"
	"go-reconcile-pipeline/internal/render"
	"go-reconcile-pipeline/internal/store"
)

var (
	v          = config.New()
	configPath string
	asJSON     bool
)

func main() {
	root := &cobra.Command{
		Use:          "reconcile",
		Short:        "Reconcile per-group order counts against survey responses",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (yaml or json)")
	root.PersistentFlags().String("db", "", "run ledger path")
	root.PersistentFlags().String("log-level", "", "log level")
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "print reports as JSON")
	v.BindPFlag("ledger", root.PersistentFlags().Lookup("db"))
	v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(runCmd(), listCmd(), showCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config, configures logging and opens the ledger.
func setup() (*config.Config, error) {
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Log.Apply(); err != nil {
		return nil, err
	}
	if err := store.InitDB(cfg.Ledger); err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", cfg.Ledger, err)
	}
	return cfg, nil
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			id := uuid.New().String()
			if err := store.SaveRun(id, cfg.ReconcileJobSpec); err != nil {
				return err
			}
			rep, err := pipeline.Run(ctx, id, cfg.ReconcileJobSpec)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			fmt.Printf("Run %s\n", id)
			return render.Report(os.Stdout, rep)
		},
	}
	flags := cmd.Flags()
	flags.String("fact", "", "fact source: file path, http URL or DSN")
	flags.String("fact-type", "", "fact source type (csv, json, xlsx, postgres, sqlite)")
	flags.String("fact-query", "", "SQL query for database fact sources")
	flags.String("survey", "", "survey source: file path or http URL")
	flags.Bool("survey-optional", false, "continue with a fact-only analysis when the survey cannot be loaded")
	flags.StringSlice("predicate", nil, "response values counted by the predicate measures")
	flags.String("out", "", "output directory root")

	for key, name := range map[string]string{
		"fact.url":         "fact",
		"fact.type":        "fact-type",
		"fact.query":       "fact-query",
		"survey.url":       "survey",
		"survey.optional":  "survey-optional",
		"predicate_values": "predicate",
		"export.dir":       "out",
	} {
		v.BindPFlag(key, flags.Lookup(name))
	}
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setup(); err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns()
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Printf("%s  %-18s  %s\n", r.ID, r.Status, humanize.Time(r.CreatedAt))
			}
			log.Debugf("%d runs", len(runs))
			return nil
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the stored report of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setup(); err != nil {
				return err
			}
			defer store.Close()

			rep, err := store.GetReport(args[0])
			if err != nil {
				return fmt.Errorf("run %s: %w", args[0], err)
			}
			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(rep)
			}
			return render.Report(os.Stdout, rep)
		},
	}
}
