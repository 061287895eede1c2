// Package cli implements the analyticsctl command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/app"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/config"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/redisclient"
)

// CLIApp represents the command-line interface application.
type CLIApp struct {
	rootCmd   *cobra.Command
	container *app.Container
	owned     bool
	version   string

	configFile string
	envFile    string
	asJSON     bool
}

// NewCLIApp builds the root command and its subcommands.
func NewCLIApp(version string) *CLIApp {
	cli := &CLIApp{version: version}

	rootCmd := &cobra.Command{
		Use:           "analyticsctl",
		Short:         "Credits analytics reports from the terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate(`{{printf "analyticsctl version: %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVarP(&cli.configFile, "config", "C", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&cli.envFile, "env-file", "", "Path to a .env file loaded before the environment")
	rootCmd.PersistentFlags().BoolVar(&cli.asJSON, "json", false, "Print the raw view as JSON instead of tables")

	rootCmd.AddCommand(
		cli.dashboardCmd(),
		cli.summaryCmd(),
		cli.featuresCmd(),
		cli.usersCmd(),
		cli.costsCmd(),
		cli.trendsCmd(),
		cli.estimateCmd(),
		cli.tiersCmd(),
		cli.tokenCmd(),
	)

	cli.rootCmd = rootCmd
	return cli
}

// SetContainer injects a prebuilt container; commands skip config loading.
func (cli *CLIApp) SetContainer(container *app.Container) {
	cli.container = container
}

// SetArgs overrides os.Args for the next Execute call.
func (cli *CLIApp) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

// SetOutput redirects both standard and error output.
func (cli *CLIApp) SetOutput(w io.Writer) {
	cli.rootCmd.SetOut(w)
	cli.rootCmd.SetErr(w)
}

// Execute runs the CLI application.
func (cli *CLIApp) Execute() error {
	return cli.rootCmd.Execute()
}

// ExecuteContext runs the CLI application with ctx passed to every command.
func (cli *CLIApp) ExecuteContext(ctx context.Context) error {
	return cli.rootCmd.ExecuteContext(ctx)
}

func (cli *CLIApp) ensureContainer(ctx context.Context) (*app.Container, error) {
	if cli.container != nil {
		return cli.container, nil
	}
	cfg, err := config.Load(config.Options{ConfigFile: cli.configFile, EnvFile: cli.envFile})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	redisClient := redisclient.New(cfg.Redis)
	if redisClient != nil {
		if err := redisclient.Ping(ctx, redisClient); err != nil {
			pterm.Warning.Printfln("redis unreachable, continuing without shared cache: %v", err)
			_ = redisClient.Close()
			redisClient = nil
		}
	}

	// keep the terminal free of service logs
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	container, err := app.NewContainer(ctx, cfg, redisClient, app.Options{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("build container: %w", err)
	}
	cli.container = container
	cli.owned = true
	return container, nil
}

// Close releases a container built from configuration. Injected containers
// are left to their owner.
func (cli *CLIApp) Close(ctx context.Context) error {
	if !cli.owned {
		return nil
	}
	return cli.container.Close(ctx)
}

func (cli *CLIApp) writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
