package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/waabox/devicelogin/internal/auth"
	"github.com/waabox/devicelogin/internal/config"
	"github.com/waabox/devicelogin/internal/logging"
	"github.com/waabox/devicelogin/internal/login"
	"github.com/waabox/devicelogin/internal/prompt"
	githubprovider "github.com/waabox/devicelogin/internal/provider/github"
	"github.com/waabox/devicelogin/internal/tui"
)

const dotenvFile = ".env"

type options struct {
	configPath string
	clientID   string
	scope      string
	ui         string
	noBrowser  bool
	debug      bool
}

func newRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	opts := &options{configPath: config.DefaultConfigPath()}

	root := &cobra.Command{
		Use:           "devicelogin",
		Short:         "Authenticate with GitHub using the OAuth device flow",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, opts)
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", opts.configPath, "Path to config file")
	flags.StringVar(&opts.clientID, "client-id", "", "OAuth App client ID (env GITHUB_CLIENT_ID)")
	flags.StringVar(&opts.scope, "scope", "", "Space-delimited scopes to request (env GITHUB_SCOPE)")
	flags.StringVar(&opts.ui, "ui", "", "Prompt style: plain or tui (env DEVICELOGIN_UI)")
	flags.BoolVar(&opts.noBrowser, "no-browser", false, "Do not open a browser (env DEVICELOGIN_NO_BROWSER)")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging (env DEVICELOGIN_DEBUG)")

	root.AddCommand(
		&cobra.Command{
			Use:   "login",
			Short: "Run the device flow and verify the token",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runLogin(cmd, opts)
			},
		},
		newConfigCommand(opts),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "devicelogin", version)
			return nil
		},
	}
}

func newConfigCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the devicelogin config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(opts.configPath); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", opts.configPath)
			}
			if err := config.Save(opts.configPath, config.Defaults()); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", opts.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	cmd.AddCommand(initCmd)
	return cmd
}

// loadConfig layers the command line flags on top of the file and environment settings.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg, err := config.LoadFrom(opts.configPath, dotenvFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("client-id") {
		cfg.GitHub.ClientID = opts.clientID
	}
	if flags.Changed("scope") {
		cfg.GitHub.Scope = opts.scope
	}
	if flags.Changed("ui") {
		cfg.UI = opts.ui
	}
	if flags.Changed("no-browser") {
		cfg.NoBrowser = opts.noBrowser
	}
	if flags.Changed("debug") {
		cfg.Debug = opts.debug
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runLogin(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Debug)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	authenticator := newAuthenticator(cfg, cmd.InOrStdin(), cmd.OutOrStdout(), log)
	_, err = authenticator.Run(cmd.Context())
	return err
}

func newAuthenticator(cfg config.Config, in io.Reader, out io.Writer, log *zap.SugaredLogger) *login.Authenticator {
	timeout := cfg.RequestTimeoutOrDefault()

	flow := auth.NewGitHubDeviceFlow(cfg.ClientIDOrDefault(), cfg.GitHub.Scope, cfg.GitHub.BaseURL,
		auth.WithHTTPClient(&http.Client{Timeout: timeout}),
		auth.WithMaxInterval(cfg.MaxPollIntervalOrDefault()),
		auth.WithLogger(log),
	)

	open := prompt.OpenBrowser
	if cfg.NoBrowser {
		open = prompt.NoBrowser
	}

	var prompter login.Prompter
	switch cfg.UIOrDefault() {
	case config.UITUI:
		prompter = tui.NewPrompter(in, out, open)
	default:
		prompter = prompt.NewConsole(in, out, open, log)
	}

	verifier := githubprovider.NewAdapter(cfg.GitHub.APIURL, timeout)
	return login.NewAuthenticator(flow, prompter, verifier, out, log)
}
