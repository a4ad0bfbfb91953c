package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joelmoss/vcsinfo/internal/config"
	"github.com/joelmoss/vcsinfo/internal/errs"
	"github.com/joelmoss/vcsinfo/internal/fleet"
	"github.com/joelmoss/vcsinfo/internal/remote"
	"github.com/joelmoss/vcsinfo/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	verbose        bool
	selectUsers    bool
	usersFile      string
	projectPath    string
	format         string
	knownHosts     string
	configPath     string
	concurrency    int
	port           int
	timeout        time.Duration
	hostTimeout    time.Duration
	connectTimeout time.Duration
	versionStr     = "dev"
)

func SetVersion(v string) {
	versionStr = v
}

var rootCmd = &cobra.Command{
	Use:          "vcsinfo",
	Short:        "Find VCS info of users' work directories",
	Long:         "Connect to every host in the users file over SSH and report the Git or Subversion revision and branch checked out in the project path.",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&usersFile, "users-file", "", "Path for file with user credentials. Example: --users-file users.json")
	f.StringVar(&projectPath, "project-path", config.DefaultProjectPath, "Path for work directory on server")
	f.StringVarP(&format, "format", "f", "json", "Output format: json or table")
	f.StringVar(&knownHosts, "known-hosts", "", "Verify host keys against this known_hosts file (default accepts any host key)")
	f.IntVarP(&concurrency, "concurrency", "c", config.DefaultConcurrency, "Number of hosts to inspect at once")
	f.IntVar(&port, "port", config.DefaultPort, "SSH port for hosts that do not set one")
	f.DurationVar(&timeout, "timeout", config.DefaultTimeout, "Limit for the whole run")
	f.DurationVar(&hostTimeout, "host-timeout", config.DefaultHostTimeout, "Limit for each host, from connecting to the last command")
	f.DurationVar(&connectTimeout, "connect-timeout", config.DefaultConnectTimeout, "Limit for establishing each SSH connection")
	f.BoolVarP(&selectUsers, "select", "s", false, "Choose which users to inspect from an interactive list")
	rootCmd.MarkFlagRequired("users-file")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default ~/.config/vcsinfo/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed and verbose output")
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func run(cmd *cobra.Command) error {
	if format != "json" && format != "table" {
		return fmt.Errorf("%w: %q", errs.ErrInvalidFormat, format)
	}

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	creds, err := config.LoadCredentials(usersFile)
	if err != nil {
		return err
	}

	if selectUsers {
		creds, err = chooseCredentials(creds)
		if err != nil {
			return err
		}
		if len(creds) == 0 {
			fmt.Fprintln(os.Stderr, ui.Yellow("Aborting. No users were selected."))
			return nil
		}
	}

	dialer := &remote.SSHDialer{
		Port:           settings.Port,
		KnownHosts:     settings.KnownHosts,
		ConnectTimeout: settings.ConnectTimeout,
	}
	svc := &fleet.Service{
		Dial: func(ctx context.Context, cred config.Credential) (fleet.Session, error) {
			client, err := dialer.Dial(ctx, cred)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		ProjectPath: settings.ProjectPath,
		Concurrency: settings.Concurrency,
		HostTimeout: settings.HostTimeout,
		Logger:      newLogger(verbose),
	}

	ctx := cmd.Context()
	if settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}

	report, err := svc.Collect(ctx, creds)
	if err != nil {
		return err
	}

	if format == "table" {
		report.WriteTable(os.Stdout)
		return nil
	}
	return report.WriteJSON(os.Stdout)
}

// loadSettings reads the settings file and lets explicitly set flags win.
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	settings, err := config.New(configPath).Read()
	if err != nil {
		return config.Settings{}, err
	}

	f := cmd.Flags()
	if f.Changed("project-path") {
		settings.ProjectPath = projectPath
	}
	if f.Changed("known-hosts") {
		settings.KnownHosts = knownHosts
	}
	if f.Changed("concurrency") {
		settings.Concurrency = concurrency
	}
	if f.Changed("port") {
		settings.Port = port
	}
	if f.Changed("timeout") {
		settings.Timeout = timeout
	}
	if f.Changed("host-timeout") {
		settings.HostTimeout = hostTimeout
	}
	if f.Changed("connect-timeout") {
		settings.ConnectTimeout = connectTimeout
	}
	return settings, nil
}

// chooseCredentials asks which users to inspect. File order is kept so the
// last record for a user still wins.
func chooseCredentials(creds []config.Credential) ([]config.Credential, error) {
	labels := make([]string, len(creds))
	for i, c := range creds {
		labels[i] = fmt.Sprintf("%s@%s", c.User, c.Hostname)
	}

	selected, err := ui.MultiSelect("Select users to inspect:", labels)
	if err != nil {
		return nil, err
	}
	chosen := make(map[string]bool, len(selected))
	for _, label := range selected {
		chosen[label] = true
	}

	var result []config.Credential
	for i, c := range creds {
		if chosen[labels[i]] {
			result = append(result, c)
		}
	}
	return result, nil
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.ErrorLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
		w.TimeFormat = time.TimeOnly
	})
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
