// Package cmd defines and implements the CLI commands for the seo-pilot executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JakeFAU/seo-pilot/internal/app"
	"github.com/JakeFAU/seo-pilot/internal/commands"
	"github.com/JakeFAU/seo-pilot/internal/ui"
	"github.com/JakeFAU/seo-pilot/pkg/config"
)

// Version is stamped at build time with -ldflags "-X .../cmd.Version=...".
var Version = "0.1.0"

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Close()
	Deps() *commands.Deps
}

// newApp is the application factory. It's a variable so tests can swap it.
var newApp = func(settings config.Settings, streams app.Streams) (App, error) {
	a, err := app.New(settings, streams)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// rootOptions holds the persistent flags shared by every subcommand and the
// app built for the running command.
type rootOptions struct {
	configPath string
	v          *viper.Viper
	app        App
}

// closeApp closes the app once. Cobra skips post-run hooks when RunE fails,
// so run calls it as well.
func (o *rootOptions) closeApp() {
	if o.app != nil {
		o.app.Close()
		o.app = nil
	}
}

// newRootCmd creates and configures the root command.
func newRootCmd(opts *rootOptions) *cobra.Command {

	cmd := &cobra.Command{
		Use:   "seo-pilot",
		Short: "Submit, inspect, rank and audit the pages of a website.",
		Long: `seo-pilot drives the search engine chores for one site from its sitemap:
URL submission to IndexNow, Google and Bing, index inspection, keyword
rankings, backlink discovery and on-page audits. Results are appended to
JSON history files in the state directory.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Runs after flags are parsed but before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.Load(opts.v)
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}
			appInstance, err := newApp(settings, streamsFor(cmd))
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			opts.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			opts.closeApp()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "site config file (default is ./seo-pilot.config.json)")
	flags.String("state-dir", "", "directory for history files (default .seo-pilot)")
	flags.Bool("verbose", false, "enable development logging")
	cobra.CheckErr(opts.v.BindPFlag("state_dir", flags.Lookup("state-dir")))
	cobra.CheckErr(opts.v.BindPFlag("log.development", flags.Lookup("verbose")))

	cmd.AddCommand(
		newIndexCmd(opts),
		newInspectCmd(opts),
		newRankCmd(opts),
		newDiscoverCmd(opts),
		newAuditCmd(opts),
		newSetupCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func streamsFor(cmd *cobra.Command) app.Streams {
	out := cmd.OutOrStdout()
	return app.Streams{
		In:    cmd.InOrStdin(),
		Out:   out,
		Err:   cmd.ErrOrStderr(),
		Color: isTerminal(out),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && ui.IsTerminal(f)
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// resolveDeps returns the handler dependencies of the app stored in ctx.
func resolveDeps(ctx context.Context) (*commands.Deps, error) {
	appInstance, err := resolveApp(ctx)
	if err != nil {
		return nil, err
	}
	return appInstance.Deps(), nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command's context.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := &rootOptions{v: config.New()}
	defer opts.closeApp()

	root := newRootCmd(opts)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	if err := root.ExecuteContext(ctx); err != nil {
		ui.New(out, errOut).WithColor(isTerminal(errOut)).Error("%v", err)
		return 1
	}
	return 0
}
