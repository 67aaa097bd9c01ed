package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fgrehm/moor/internal/config"
	"github.com/fgrehm/moor/internal/editor"
	"github.com/fgrehm/moor/internal/editor/socket"
	"github.com/fgrehm/moor/internal/lifecycle"
	"github.com/fgrehm/moor/internal/runner"
	"github.com/fgrehm/moor/internal/ui"
	"github.com/fgrehm/moor/internal/workspace"
	"github.com/spf13/cobra"
)

var (
	debugFlag      bool
	configFileFlag string
	dirFlag        string
	logger         *slog.Logger
)

// Version variables injected at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Built   = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "moor",
	Short:   "Moor your editor to a devcontainer",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if debugFlag {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					if t, ok := a.Value.Any().(time.Time); ok {
						a.Value = slog.TimeValue(t.UTC())
					}
				}
				return a
			},
		}))

		// Apply .moorrc defaults for flags not explicitly set by the user.
		if !cmd.Root().PersistentFlags().Changed("dir") {
			if rc, err := loadMoorRC(); err != nil {
				logger.Debug("could not load .moorrc", "error", err)
			} else if rc != nil && rc.Dir != "" {
				dirFlag = rc.Dir
				logger.Debug("loaded project dir from .moorrc", "dir", rc.Dir)
			}
		}

		return nil
	},
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configFileFlag, "config-file", "", "path to moor config.toml (defaults to ~/.config/moor/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&dirFlag, "dir", "d", "", "project directory to operate on (defaults to current directory)")
	rootCmd.SetVersionTemplate(fmt.Sprintf("moor version %s\n", Version))
	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command with signal handling.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		u := newUI()
		u.Error(err.Error())
		fmt.Fprintf(os.Stderr, "\nmoor %s (%s)\n", Version, Commit)
		os.Exit(1)
	}
}

// newUI creates a UI that writes to stdout and stderr.
func newUI() *ui.UI {
	return ui.New(os.Stdout, os.Stderr)
}

// loadConfig loads the moor configuration from --config-file or the
// default location, applying .moorrc overrides.
func loadConfig() (*config.Config, error) {
	path := configFileFlag
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if rc, err := loadMoorRC(); err == nil && rc != nil {
		if rc.Engine != "" {
			cfg.Engine = rc.Engine
		}
		if rc.Dotfiles != "" {
			cfg.DotfilesRepository = rc.Dotfiles
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf(".moorrc: %w", err)
		}
	}

	return cfg, nil
}

// newController assembles the lifecycle controller from configuration.
// When no editor socket is configured the editor boundary is a no-op and
// moor drives containers standalone.
func newController() (*lifecycle.Controller, *config.Config, *workspace.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := workspace.NewStore()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing session registry: %w", err)
	}

	var ed editor.Client = editor.Nop{}
	if cfg.EditorSocket != "" {
		client, err := socket.Dial(cfg.EditorSocket)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting to editor: %w", err)
		}
		ed = client
	} else {
		logger.Debug("no editor socket configured, document tracking disabled")
	}

	ctrl := lifecycle.New(cfg, runner.New(logger), ed, store, logger)
	return ctrl, cfg, store, nil
}

// projectDir returns the directory the command operates on: --dir (or the
// .moorrc dir) if set, the current directory otherwise.
func projectDir() (string, error) {
	if dirFlag != "" {
		return dirFlag, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return cwd, nil
}

// versionString returns a formatted version string for display.
// For dev builds, includes commit and build timestamp.
func versionString() string {
	v := "moor " + Version
	if strings.Contains(Version, "-dev") && Commit != "unknown" {
		v += " (" + Commit
		if Built != "unknown" {
			v += ", " + Built
		}
		v += ")"
	}
	return v
}

// shortID returns the first 12 characters of a container ID.
func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
