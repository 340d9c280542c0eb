// Package commands provides the serverscout command line interface.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"

	"github.com/go-viper/mapstructure/v2"
	"github.com/serverscout/serverscout/internal/cli"
	"github.com/serverscout/serverscout/internal/constants"
	"github.com/serverscout/serverscout/internal/fileutils"
	"github.com/serverscout/serverscout/internal/search"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	minMemory string
	importOut string

	stop  context.CancelFunc
	ready chan struct{}
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity  int
	JSONLogs   bool
	CatalogDir string
	ReportsDir string
	Watch      bool

	Search search.Config
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{ready: make(chan struct{})}

	a.cmd = &cobra.Command{
		Use:           constants.CmdName,
		Short:         "CLI tool to hunt down the best server hardware for the money",
		Long:          constants.CmdName + " assembles random server configurations out of a parts catalog, scores each one on turbo GFLOPS per dollar and keeps a leaderboard of the best machines it has seen.",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetVerbosity(a.config.Verbosity) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.CmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				byteSizeHook(),
			))); err != nil {
				return fmt.Errorf("unable to strictly decode configuration into struct: %w", err)
			}
			slog.Info("got app config", "config", a.config)

			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs)
			return nil
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	a.installSearch()
	a.installCatalog()
	a.installImport()
	a.installVersion()

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "emit logs as JSON on stdout instead of text on stderr")
	cmd.PersistentFlags().StringVar(&app.config.CatalogDir, "catalog-dir", constants.GetDefaultCatalogPath(), "directory holding the parts catalog")

	err := cmd.MarkPersistentFlagDirname("catalog-dir")
	if err != nil {
		// This should never happen.
		panic(fmt.Sprintf("failed to mark catalog-dir flag as dirname: %v", err))
	}
}

// byteSizeHook decodes byte sizes written as strings, such as "4GiB" from a
// config file or an environment variable, into uint64 fields.
func byteSizeHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Uint64 {
			return data, nil
		}
		return fileutils.ParseSize(data.(string))
	}
}

// Run executes the command and associated process, returning an error if any.
func (a App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Hup prints all goroutine stack traces and return false to signal you shouldn't quit.
func (a App) Hup() (shouldQuit bool) {
	buf := make([]byte, 1<<16)
	runtime.Stack(buf, true)
	fmt.Printf("%s", buf)
	return false
}

// Quit stops a running search, if any.
func (a *App) Quit() {
	a.WaitReady()
	if a.stop != nil {
		a.stop()
	}
}

// WaitReady waits for the invoked command to be past its setup.
func (a *App) WaitReady() {
	<-a.ready
}

// RootCmd returns the root command.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}
