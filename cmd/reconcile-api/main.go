package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-reconcile-pipeline/internal/api"
	"go-reconcile-pipeline/internal/config"
	"go-reconcile-pipeline/internal/store"
	"go-reconcile-pipeline/pkg/router"
)

func main() {
	var configPath string
	v := config.New()

	cmd := &cobra.Command{
		Use:          "reconcile-api",
		Short:        "Serve the reconciliation API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			if err := cfg.Log.Apply(); err != nil {
				return err
			}

			// Init DB
			if err := store.InitDB(cfg.Ledger); err != nil {
				return err
			}
			defer store.Close()

			r := router.New()
			api.RegisterRoutes(r)
			return r.Start(cfg.Addr)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (yaml or json)")
	cmd.Flags().String("addr", "", "listen address")
	cmd.Flags().String("db", "", "run ledger path")
	v.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	v.BindPFlag("ledger", cmd.Flags().Lookup("db"))

	if err := cmd.Execute(); err != nil {
		log.WithError(err).Error("server stopped")
		os.Exit(1)
	}
}
