// Package ctrader implements the cTrader Open API authorization-code flow.
// It builds the consent URL, runs the temporary localhost callback server that
// captures the browser redirect, and exchanges the authorization code for an
// access token.
package ctrader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/router-for-me/CTraderAuth/internal/config"
	"github.com/router-for-me/CTraderAuth/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Fixed query values required by the cTrader consent page.
const (
	Scope   = "accounts"
	Product = "web"
)

const exchangeTimeout = 30 * time.Second

// maxTokenResponseSize caps how much of the token response is read into memory.
const maxTokenResponseSize = 1 << 20

// BuildAuthURL returns the consent page URL the user opens in a browser.
// client_id and redirect_uri are percent-encoded; scope and product are fixed.
func BuildAuthURL(authURL, clientID, redirectURI string) string {
	params := url.Values{
		"client_id":    {clientID},
		"redirect_uri": {redirectURI},
		"scope":        {Scope},
		"product":      {Product},
	}
	return fmt.Sprintf("%s?%s", authURL, params.Encode())
}

// CTraderAuth performs the provider-facing half of the flow.
type CTraderAuth struct {
	httpClient   *http.Client
	authURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	redirectURI  string
}

// NewCTraderAuth creates a CTraderAuth for the given configuration.
// The HTTP client honours the configured proxy.
func NewCTraderAuth(cfg *config.Config) *CTraderAuth {
	return &CTraderAuth{
		httpClient:   util.SetProxy(cfg.ProxyURL, &http.Client{Timeout: exchangeTimeout}),
		authURL:      cfg.AuthURL,
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
	}
}

// WithRedirectURI returns a copy bound to a different redirect URI. Interactive mode uses
// it after normalizing the callback address.
func (a *CTraderAuth) WithRedirectURI(redirectURI string) *CTraderAuth {
	clone := *a
	clone.redirectURI = redirectURI
	return &clone
}

// RedirectURI returns the redirect URI used for both legs of the flow.
func (a *CTraderAuth) RedirectURI() string {
	return a.redirectURI
}

// GenerateAuthURL returns the consent page URL for this client.
func (a *CTraderAuth) GenerateAuthURL() string {
	return BuildAuthURL(a.authURL, a.clientID, a.redirectURI)
}

// ExchangeCodeForTokens exchanges an authorization code for an access token.
// It issues exactly one GET to the token endpoint; failures are never retried.
//
// Returns:
//   - *TokenResponse: the parsed token response
//   - error: ErrCodeExchangeFailed or ErrMissingToken, wrapped in AuthenticationError
func (a *CTraderAuth) ExchangeCodeForTokens(ctx context.Context, code string) (*TokenResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	params := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {a.redirectURI},
		"client_id":     {a.clientID},
		"client_secret": {a.clientSecret},
	}
	endpoint := fmt.Sprintf("%s?%s", a.tokenURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewAuthenticationError(ErrCodeExchangeFailed, fmt.Errorf("failed to create token request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	issuedAt := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, NewAuthenticationError(ErrCodeExchangeFailed, fmt.Errorf("token exchange request failed: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return nil, NewAuthenticationError(ErrCodeExchangeFailed, fmt.Errorf("failed to read token response: %w", err))
	}
	log.Debugf("Token response (status %d): %s", resp.StatusCode, redactTokenBody(body))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, NewAuthenticationErrorWithBody(ErrCodeExchangeFailed,
			fmt.Errorf("token exchange failed with status %d", resp.StatusCode), string(body))
	}

	if !gjson.ValidBytes(body) {
		return nil, NewAuthenticationErrorWithBody(ErrCodeExchangeFailed,
			fmt.Errorf("token response is not valid JSON"), string(body))
	}

	tokenResp := parseTokenResponse(body, issuedAt)
	if tokenResp.AccessToken == "" {
		cause := fmt.Errorf("accessToken field absent")
		if desc := gjson.GetBytes(body, "description").String(); desc != "" {
			cause = fmt.Errorf("accessToken field absent: %s", desc)
		}
		return nil, NewAuthenticationErrorWithBody(ErrMissingToken, cause, string(body))
	}

	return tokenResp, nil
}

// redactTokenBody masks credentials before a token response reaches the debug log.
func redactTokenBody(body []byte) string {
	if !gjson.ValidBytes(body) {
		return string(body)
	}
	redacted := body
	for _, field := range []string{"accessToken", "refreshToken"} {
		if !gjson.GetBytes(redacted, field).Exists() {
			continue
		}
		if updated, err := sjson.SetBytes(redacted, field, "[REDACTED]"); err == nil {
			redacted = updated
		}
	}
	return string(redacted)
}
