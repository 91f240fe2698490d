package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"settings-portal/config"
	"settings-portal/eeprom"
	"settings-portal/feed"
	"settings-portal/logger"
	"settings-portal/portal"
	"settings-portal/settings"
)

// app is what every subcommand works on once config is loaded.
type app struct {
	cfgFile string
	cfg     config.Config
	store   *settings.Store
	backend *eeprom.File
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "settings-portal",
		Short:         "Persist device settings and edit them through a web form",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default ./config.yaml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Load settings and serve the web form",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.serve(cmd.Context())
			},
		},
		newEraseCmd(a),
		&cobra.Command{
			Use:   "get LABEL",
			Short: "Print one setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.store.Load(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), a.store.Get(args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "set LABEL VALUE",
			Short: "Change one setting",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.store.Load(); err != nil {
					return err
				}
				if _, ok := a.store.Catalog().Lookup(args[0]); !ok {
					return oops.Errorf("unknown setting %q", args[0])
				}
				return a.store.Set(args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "labels",
			Short: "List setting labels in storage order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, e := range a.store.Catalog().Entries() {
					fmt.Fprintf(cmd.OutOrStdout(), "%4d  %s\n", e.Offset, e.Label)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "export",
			Short: "Write all settings as YAML to stdout",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.store.Load(); err != nil {
					return err
				}
				return a.store.Export(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "import FILE",
			Short: "Apply settings from a YAML file produced by export",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				f, err := os.Open(args[0])
				if err != nil {
					return oops.Wrapf(err, "open %s", args[0])
				}
				defer f.Close()
				if err := a.store.Load(); err != nil {
					return err
				}
				n, err := a.store.Import(f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d settings applied\n", n)
				return nil
			},
		},
	)
	return root
}

func newEraseCmd(a *app) *cobra.Command {
	var reinit bool
	cmd := &cobra.Command{
		Use:   "erase",
		Short: "Zero the settings storage (factory reset)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.EraseAll(); err != nil {
				return err
			}
			if reinit {
				return a.store.Load()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reinit, "reinit", false, "write factory defaults right after erasing")
	return cmd
}

func (a *app) open() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return err
	}

	catalog := settings.DefaultCatalog(cfg.Defaults)
	backend, err := eeprom.OpenFile(cfg.EEPROMPath, catalog.RegionSize())
	if err != nil {
		return err
	}
	store, err := settings.NewStore(backend, catalog)
	if err != nil {
		return err
	}
	a.cfg, a.backend, a.store = cfg, backend, store
	return nil
}

func (a *app) serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var limiter *rate.Limiter
	if a.cfg.SaveRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(a.cfg.SaveRate), max(a.cfg.SaveBurst, 1))
	}

	p := portal.New(a.store, feed.NewHub(), portal.Options{
		Addr:        a.cfg.Listen,
		Interval:    a.cfg.ServiceInterval,
		QueueDepth:  a.cfg.QueueDepth,
		SaveLimiter: limiter,
	})
	if err := p.Begin(ctx); err != nil {
		return err
	}
	log.WithField("eeprom", a.backend.Path()).Infof("settings portal listening on %s", p.Addr())

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return p.Stop(shutdownCtx)
}
