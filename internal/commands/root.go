package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/balkashynov/evshift/internal/config"
	"github.com/balkashynov/evshift/internal/logging"
	"github.com/balkashynov/evshift/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app holds what a command needs once config is loaded
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  store.Store
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// rootOptions carries the persistent flags
type rootOptions struct {
	configPath string
}

// openApp loads config, builds the logger and opens the store
func (o *rootOptions) openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	s, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	logger.Debug("store opened", zap.String("backend", s.Describe()), zap.String("config", cfg.Path()))
	return &app{cfg: cfg, logger: logger, store: s}, nil
}

// withApp wraps a command function to open the store first and close it after
func (o *rootOptions) withApp(fn func(*cobra.Command, []string, *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
			cmd.SetContext(ctx)
		}
		a, err := o.openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd, args, a)
	}
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// NewRootCmd builds the evshift command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "evshift",
		Short: "EV maintenance shift lifecycle reconciler",
		Long: `evshift keeps maintenance shifts for an EV service workshop in the right
lifecycle state. Shifts waiting for an assignee turn late once they start,
scheduled shifts go in progress at their start time and in-progress shifts
complete once their end time passes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.evshift/config.yaml)")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newReconcileCmd(opts))
	rootCmd.AddCommand(newShiftCmd(opts))
	rootCmd.AddCommand(newListCmd(opts))
	rootCmd.AddCommand(newBoardCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.SetHelpCommand(newHelpCmd())
	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "evshift %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
