// Package cli implements quotectl, the command-line client for the quote
// list. It opens the same storage as the service and runs the same use
// cases directly, so it works whether or not the service is running.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jsamuelsen/quote-sync/internal/bootstrap"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
)

// BuildInfo identifies the quotectl binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// App holds quotectl state across one invocation.
type App struct {
	build BuildInfo

	configDir string
	profile   string
	output    string
	logLevel  string

	format     Format
	logger     *slog.Logger
	components *bootstrap.Components
}

// NewApp creates an App for the given build.
func NewApp(build BuildInfo) *App {
	return &App{build: build}
}

// Execute parses args and runs the selected command. Storage opened by the
// command is closed before returning.
func (a *App) Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	root := a.newRootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)

	if a.components != nil {
		if closeErr := a.components.Close(); closeErr != nil && err == nil {
			err = closeErr
		}

		a.components = nil
	}

	return err
}

func (a *App) newRootCommand() *cobra.Command {
	defaultProfile := os.Getenv("APP_ENVIRONMENT")
	if defaultProfile == "" {
		defaultProfile = "local"
	}

	root := &cobra.Command{
		Use:   "quotectl",
		Short: "Manage the quote-sync quote list",
		Long: `quotectl reads and edits the quote list kept by quote-sync.

It opens the configured storage directly, so quotes added here are seen by
the service and the other way round. "quotectl sync" reconciles the list
with the remote quote source once, like the service's periodic sync.`,
		Version:           a.build.Version,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configDir, "config-dir", "configs", "directory holding base.yaml and profile files")
	flags.StringVar(&a.profile, "profile", defaultProfile, "configuration profile (env APP_ENVIRONMENT)")
	flags.StringVarP(&a.output, "output", "o", "", "output format: table, json, yaml (default: table on a terminal, json otherwise)")
	flags.StringVar(&a.logLevel, "log-level", "warn", "log level: trace, debug, info, warn, error")

	root.SetVersionTemplate("quotectl {{.Version}}\n")

	root.AddCommand(
		a.newListCommand(),
		a.newAddCommand(),
		a.newRandomCommand(),
		a.newCategoriesCommand(),
		a.newFilterCommand(),
		a.newSyncCommand(),
		a.newExportCommand(),
		a.newImportCommand(),
		a.newVersionCommand(),
	)

	return root
}

func (a *App) setup(cmd *cobra.Command, _ []string) error {
	format, err := ParseFormat(a.output)
	if err != nil {
		return err
	}

	if format == "" {
		format = detectFormat(cmd.OutOrStdout())
	}

	a.format = format
	a.logger = logging.NewWithWriter(&logging.Config{
		Level:   a.logLevel,
		Format:  "pretty",
		Service: "quotectl",
		Version: a.build.Version,
	}, cmd.ErrOrStderr())

	return nil
}

// open loads configuration and assembles the application on first use.
func (a *App) open(ctx context.Context) (*bootstrap.Components, error) {
	if a.components != nil {
		return a.components, nil
	}

	cfg, err := config.LoadFrom(a.configDir, a.profile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// CLI runs keep their metrics private; nothing scrapes them.
	components, err := bootstrap.New(ctx, cfg, a.logger, prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}

	a.components = components

	return components, nil
}

func (a *App) print(cmd *cobra.Command, v any) error {
	return render(cmd.OutOrStdout(), a.format, v)
}

func (a *App) versionView() versionView {
	return versionView{
		Version:   a.build.Version,
		Commit:    a.build.Commit,
		BuildTime: a.build.BuildTime,
		GoVersion: runtime.Version(),
	}
}
