package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/router-for-me/CTraderAuth/internal/auth/ctrader"
	"github.com/router-for-me/CTraderAuth/internal/browser"
	"github.com/router-for-me/CTraderAuth/internal/config"
	"github.com/router-for-me/CTraderAuth/internal/envfile"
	"github.com/router-for-me/CTraderAuth/internal/misc"
	"github.com/router-for-me/CTraderAuth/internal/util"
	log "github.com/sirupsen/logrus"
)

// LoginOptions contains options for the cTrader login process.
type LoginOptions struct {
	// Mode is the requested mode; ModeUnset prompts the user.
	Mode Mode

	// NoBrowser skips opening the browser automatically in interactive mode.
	NoBrowser bool

	// Save appends the token to the env file without asking.
	Save bool

	// Copy copies the token to the system clipboard.
	Copy bool

	// Out receives user-facing output. Defaults to os.Stdout.
	Out io.Writer

	// Prompt reads one line of user input after printing the prompt.
	Prompt func(prompt string) (string, error)

	// OpenURL opens the authorization URL. Defaults to the system browser.
	OpenURL func(url string) error

	// WriteClipboard copies text to the clipboard. Defaults to clipboard.WriteAll.
	WriteClipboard func(text string) error

	// LookupEnv is used for SSH session detection. Defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (o *LoginOptions) withDefaults() *LoginOptions {
	opts := LoginOptions{}
	if o != nil {
		opts = *o
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.OpenURL == nil {
		opts.OpenURL = openInBrowser
	}
	if opts.WriteClipboard == nil {
		opts.WriteClipboard = clipboard.WriteAll
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &opts
}

func openInBrowser(url string) error {
	if !browser.IsAvailable() {
		return fmt.Errorf("no browser available; open the URL manually")
	}
	return browser.OpenURL(url)
}

// DoCTraderLogin runs one authorization attempt: select the mode, obtain the code,
// exchange it and present the token. Every failure is terminal.
//
// Parameters:
//   - ctx: cancels the callback wait and the token request
//   - cfg: the resolved configuration
//   - options: login options including mode, prompts and output
//
// Returns:
//   - *ctrader.TokenResponse: the exchanged token
//   - error: an *ctrader.AuthenticationError for every known failure kind
func DoCTraderLogin(ctx context.Context, cfg *config.Config, options *LoginOptions) (*ctrader.TokenResponse, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ctrader login: configuration is required")
	}
	opts := options.withDefaults()

	mode, err := ResolveMode(opts.Mode, opts.Out, opts.Prompt)
	if err != nil {
		return nil, err
	}
	log.WithField("mode", mode).Debug("Authorization mode selected")

	authSvc := ctrader.NewCTraderAuth(cfg)

	var code string
	switch mode {
	case ModeInteractive:
		code, authSvc, err = obtainCodeInteractive(ctx, cfg, authSvc, opts)
	default:
		code, err = obtainCodeManual(authSvc, opts)
	}
	if err != nil {
		return nil, err
	}

	_, _ = fmt.Fprintln(opts.Out, "Exchanging authorization code for an access token...")
	tokenResp, err := authSvc.ExchangeCodeForTokens(ctx, code)
	if err != nil {
		return nil, err
	}

	printTokenResult(opts.Out, tokenResp, opts.Now())

	if opts.Copy {
		if errCopy := opts.WriteClipboard(tokenResp.AccessToken); errCopy != nil {
			log.Warnf("Failed to copy access token to clipboard: %v", errCopy)
		} else {
			_, _ = fmt.Fprintln(opts.Out, "Access token copied to clipboard.")
		}
	}

	if err = persistToken(cfg, opts, tokenResp.AccessToken); err != nil {
		return nil, err
	}
	return tokenResp, nil
}

// obtainCodeInteractive starts the callback server and waits for the browser redirect.
// It returns the auth service rebound to the redirect URI the server answers on.
func obtainCodeInteractive(ctx context.Context, cfg *config.Config, authSvc *ctrader.CTraderAuth, opts *LoginOptions) (string, *ctrader.CTraderAuth, error) {
	target, err := ResolveCallbackTarget(cfg.RedirectURI, cfg.Port)
	if err != nil {
		return "", authSvc, err
	}
	if target.RedirectURI != cfg.RedirectURI {
		log.Warnf("Using redirect URI %s instead of %s; it must match the redirect URI registered for your application", target.RedirectURI, cfg.RedirectURI)
	}
	authSvc = authSvc.WithRedirectURI(target.RedirectURI)

	oauthServer := ctrader.NewOAuthServer(target.Port, target.Path)
	if err = oauthServer.Start(); err != nil {
		return "", authSvc, err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if stopErr := oauthServer.Stop(stopCtx); stopErr != nil {
			log.Warnf("ctrader oauth server stop error: %v", stopErr)
		}
	}()

	authURL := authSvc.GenerateAuthURL()
	_, _ = fmt.Fprintf(opts.Out, "Open the following URL in your browser to authorize access:\n%s\n", authURL)
	if host, ok := util.RemoteSessionHost(opts.LookupEnv); ok {
		util.PrintSSHTunnelInstructions(opts.Out, host, target.Port)
	}
	if !opts.NoBrowser {
		if errOpen := opts.OpenURL(authURL); errOpen != nil {
			log.Warnf("Failed to open browser automatically: %v", errOpen)
		}
	}

	_, _ = fmt.Fprintf(opts.Out, "Waiting for the authorization callback on http://localhost:%d%s (timeout %s)...\n",
		target.Port, target.Path, cfg.CallbackTimeout)

	result, err := oauthServer.WaitForCallback(ctx, cfg.CallbackTimeout, cfg.ProgressInterval, func(elapsed time.Duration) {
		_, _ = fmt.Fprintf(opts.Out, "Still waiting for authorization... (%s elapsed)\n", elapsed)
	})
	if err != nil {
		return "", authSvc, err
	}

	if result.Error != "" {
		return "", authSvc, ctrader.NewAuthenticationError(ctrader.ErrOAuthDenied, describeOAuthError(result.Error, result.ErrorDescription))
	}

	_, _ = fmt.Fprintln(opts.Out, "Authorization code received.")
	return result.Code, authSvc, nil
}

// obtainCodeManual prints the URL and reads the pasted code or redirect URL.
func obtainCodeManual(authSvc *ctrader.CTraderAuth, opts *LoginOptions) (string, error) {
	authURL := authSvc.GenerateAuthURL()
	_, _ = fmt.Fprintln(opts.Out, "1. Open the following URL in your browser and authorize access:")
	_, _ = fmt.Fprintln(opts.Out, authURL)
	_, _ = fmt.Fprintln(opts.Out, "2. After authorizing you are redirected to", authSvc.RedirectURI())
	_, _ = fmt.Fprintln(opts.Out, "   Copy the 'code' parameter from the address bar (or the whole URL).")

	if opts.Prompt == nil {
		return "", ctrader.NewAuthenticationError(ctrader.ErrEmptyInput, fmt.Errorf("no input available"))
	}
	input, err := opts.Prompt("Paste the authorization code: ")
	if err != nil {
		return "", fmt.Errorf("read authorization code: %w", err)
	}

	parsed, err := misc.ParseOAuthCallback(input)
	if err != nil {
		return "", ctrader.NewAuthenticationErrorWithBody(ctrader.ErrEmptyInput, err, strings.TrimSpace(input))
	}
	if parsed == nil {
		return "", ctrader.NewAuthenticationError(ctrader.ErrEmptyInput, nil)
	}
	if parsed.Error != "" {
		return "", ctrader.NewAuthenticationError(ctrader.ErrOAuthDenied, describeOAuthError(parsed.Error, parsed.ErrorDescription))
	}
	return parsed.Code, nil
}

func describeOAuthError(code, description string) error {
	if description != "" {
		return fmt.Errorf("%s: %s", code, description)
	}
	return fmt.Errorf("%s", code)
}

// persistToken offers to append the token to the env file. Write failures are logged;
// the token has already been shown, so only an interrupted prompt fails the run.
func persistToken(cfg *config.Config, opts *LoginOptions, token string) error {
	path := cfg.EnvFile
	if path == "" {
		defaultPath, err := envfile.DefaultPath()
		if err != nil {
			log.Warnf("Cannot determine the default .env location: %v", err)
			return nil
		}
		path = defaultPath
	}

	if !opts.Save {
		if opts.Prompt == nil {
			return nil
		}
		answer, err := opts.Prompt(fmt.Sprintf("Append %s to %s? [y/N]: ", config.EnvAccessToken, path))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			log.Debugf("Save prompt aborted: %v", err)
			return nil
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
		default:
			_, _ = fmt.Fprintln(opts.Out, "Token not saved.")
			return nil
		}
	}

	misc.LogCredentialSeparator()
	if exists, err := envfile.HasKey(path, config.EnvAccessToken); err != nil {
		log.WithField("env_file", path).Warnf("Could not inspect env file: %v", err)
	} else if exists {
		log.WithField("env_file", path).Warnf("%s is already set; the new line takes precedence", config.EnvAccessToken)
	}

	misc.LogSavingCredentials(opts.Out, path)
	if err := envfile.AppendToken(path, config.EnvAccessToken, token, opts.Now()); err != nil {
		log.WithError(err).WithField("env_file", path).Error("Failed to save access token")
		return nil
	}
	_, _ = fmt.Fprintf(opts.Out, "Token saved to %s\n", path)
	return nil
}
