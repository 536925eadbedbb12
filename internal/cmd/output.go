package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/router-for-me/CTraderAuth/internal/auth/ctrader"
	"github.com/router-for-me/CTraderAuth/internal/config"
)

var (
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	tokenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	hintStyle    = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// printTokenResult shows the access token and the shell/dotenv hints.
func printTokenResult(out io.Writer, resp *ctrader.TokenResponse, now time.Time) {
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, successStyle.Render("Access token obtained successfully!"))
	_, _ = fmt.Fprintf(out, "Access token: %s\n", tokenStyle.Render(resp.AccessToken))

	if tok := resp.OAuth2Token(); !tok.Expiry.IsZero() {
		remaining := tok.Expiry.Sub(now).Round(time.Hour)
		_, _ = fmt.Fprintf(out, "Expires: %s (in about %s)\n", tok.Expiry.Format(time.RFC3339), remaining)
	}
	if resp.RefreshToken != "" {
		_, _ = fmt.Fprintln(out, hintStyle.Render("A refresh token was also issued; it is not stored by this tool."))
	}

	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Use it in your shell:")
	_, _ = fmt.Fprintf(out, "  export %s=%s\n", config.EnvAccessToken, resp.AccessToken)
	_, _ = fmt.Fprintln(out, "Or add it to your .env file:")
	_, _ = fmt.Fprintf(out, "  %s=%s\n", config.EnvAccessToken, resp.AccessToken)
}

// printFailure writes the user-facing description of a terminal error.
func printFailure(out io.Writer, err error) {
	_, _ = fmt.Fprintln(out, errorStyle.Render("Error: "+ctrader.GetUserFriendlyMessage(err)))
	_, _ = fmt.Fprintf(out, "Details: %v\n", err)

	var authErr *ctrader.AuthenticationError
	if errors.As(err, &authErr) && authErr.Body != "" {
		_, _ = fmt.Fprintf(out, "Response: %s\n", authErr.Body)
	}
}
