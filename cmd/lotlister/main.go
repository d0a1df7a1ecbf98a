package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"lotlister/internal/config"
	"lotlister/internal/pipeline"
	"lotlister/internal/storage"
)

// app carries what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	cfg     config.Config
	profile config.Profile
	logger  *slog.Logger
	db      *storage.DB
}

func (a *app) service() *pipeline.Service {
	return pipeline.NewService(a.db, a.cfg, a.profile, a.logger)
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:           "lotlister",
		Short:         "Turn wholesale manifests and supplier invoices into marketplace listings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
			slog.SetDefault(a.logger)

			a.profile, err = config.LoadProfile(cfg.ListingProfile)
			if err != nil {
				return err
			}
			a.db, err = storage.Open(cfg.DBPath)
			return err
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.db != nil {
				return a.db.Close()
			}
			return nil
		},
	}

	root.AddCommand(
		runCmd(a),
		classifyCmd(a),
		taxonomyCmd(a),
		cacheCmd(a),
		invoiceCmd(a),
		mailCmd(a),
		runsCmd(a),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
