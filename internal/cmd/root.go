// Package cmd implements the ctrader-auth command: flag parsing, configuration
// loading and the orchestration of the authorization flow.
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/router-for-me/CTraderAuth/internal/auth/ctrader"
	"github.com/router-for-me/CTraderAuth/internal/buildinfo"
	"github.com/router-for-me/CTraderAuth/internal/config"
	"github.com/router-for-me/CTraderAuth/internal/logging"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	interactive bool
	manual      bool
	redirectURI string
	port        int
	portSet     bool
	timeout     time.Duration
	timeoutSet  bool
	noBrowser   bool
	save        bool
	copyToken   bool
	envFile     string
	configPath  string
	debug       bool
	logFile     bool
}

type promptLine struct {
	text string
	err  error
}

// newLinePrompt returns a prompt function reading whole lines from in.
// EOF is reported as an empty answer. A prompt blocked on input returns ctx.Err()
// as soon as ctx is done; the pending read is picked up by the next prompt.
func newLinePrompt(ctx context.Context, in io.Reader, out io.Writer) func(string) (string, error) {
	reader := bufio.NewReader(in)
	var pending chan promptLine
	return func(prompt string) (string, error) {
		_, _ = fmt.Fprint(out, prompt)
		if pending == nil {
			pending = make(chan promptLine, 1)
			go func(ch chan<- promptLine) {
				line, err := reader.ReadString('\n')
				ch <- promptLine{text: line, err: err}
			}(pending)
		}

		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(out)
			return "", ctx.Err()
		case read := <-pending:
			pending = nil
			if read.err != nil && !errors.Is(read.err, io.EOF) {
				return "", read.err
			}
			if errors.Is(read.err, io.EOF) {
				_, _ = fmt.Fprintln(out)
			}
			return strings.TrimSpace(read.text), nil
		}
	}
}

// NewRootCommand builds the ctrader-auth command reading user input from in and writing
// user-facing output to out.
func NewRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "ctrader-auth",
		Short: "Obtain a cTrader Open API access token",
		Long: "ctrader-auth runs the cTrader Open API authorization-code flow and prints the resulting access token.\n\n" +
			"Credentials are read from " + config.EnvClientID + " and " + config.EnvClientSecret +
			" (environment or .env in the working directory).",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.portSet = cmd.Flags().Changed("port")
			flags.timeoutSet = cmd.Flags().Changed("timeout")
			return runLogin(cmd.Context(), flags, in, out)
		},
	}

	fs := root.Flags()
	fs.BoolVar(&flags.interactive, "interactive", false, "Capture the redirect with a local callback server")
	fs.BoolVar(&flags.manual, "manual", false, "Paste the authorization code manually")
	fs.StringVar(&flags.redirectURI, "redirect-uri", "", "Redirect URI registered for the application (overrides "+config.EnvRedirectURI+")")
	fs.IntVar(&flags.port, "port", config.DefaultPort, "Callback port when the redirect URI is not a localhost URI with an explicit port")
	fs.DurationVar(&flags.timeout, "timeout", 0, "How long interactive mode waits for the callback (default 5m0s)")
	fs.BoolVar(&flags.noBrowser, "no-browser", false, "Don't open the browser automatically")
	fs.BoolVar(&flags.save, "save", false, "Append the token to the env file without asking")
	fs.BoolVar(&flags.copyToken, "copy", false, "Copy the access token to the clipboard")
	fs.StringVar(&flags.envFile, "env-file", "", "Env file the token is appended to (default: .env one directory above the executable, or the working directory under go run)")
	fs.StringVar(&flags.configPath, "config", "", "Optional YAML configuration file")
	fs.BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&flags.logFile, "log-file", false, "Write logs to a rotating file instead of stderr")
	root.MarkFlagsMutuallyExclusive("interactive", "manual")

	return root
}

func runLogin(ctx context.Context, flags *rootFlags, in io.Reader, out io.Writer) error {
	if flags.timeoutSet {
		if err := config.ValidateDuration("--timeout", flags.timeout); err != nil {
			return ctrader.NewAuthenticationError(ctrader.ErrConfig, err)
		}
	}
	overrides := config.Overrides{
		ConfigPath:      flags.configPath,
		RedirectURI:     flags.redirectURI,
		CallbackTimeout: flags.timeout,
		EnvFile:         flags.envFile,
		Debug:           flags.debug,
		LoggingToFile:   flags.logFile,
	}
	if flags.portSet {
		overrides.Port = flags.port
	}

	cfg, err := config.Load(os.LookupEnv, overrides)
	if err != nil {
		if errors.Is(err, config.ErrMissingCredentials) || errors.Is(err, config.ErrInvalidValue) {
			return ctrader.NewAuthenticationError(ctrader.ErrConfig, err)
		}
		return err
	}
	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Warnf("Failed to configure log output: %v", err)
	}

	_, err = DoCTraderLogin(ctx, cfg, &LoginOptions{
		Mode:      ModeFromFlags(flags.interactive, flags.manual),
		NoBrowser: flags.noBrowser,
		Save:      flags.save,
		Copy:      flags.copyToken,
		Out:       out,
		Prompt:    newLinePrompt(ctx, in, out),
	})
	return err
}

// Execute runs the command with args and returns the process exit code:
// 0 on success and 1 on any failure.
func Execute(ctx context.Context, args []string, in io.Reader, out io.Writer) int {
	logging.SetupBaseLogger()

	root := NewRootCommand(in, out)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(out)

	if err := root.ExecuteContext(ctx); err != nil {
		log.WithError(err).Debug("ctrader-auth failed")
		printFailure(out, err)
		return 1
	}
	return 0
}
