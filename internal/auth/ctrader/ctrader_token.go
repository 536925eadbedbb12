package ctrader

import (
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// TokenResponse is the parsed body of a successful token exchange.
// Only AccessToken is guaranteed to be set; the remaining fields are copied when the
// provider sends them and Raw keeps the full body for callers that need more.
type TokenResponse struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken,omitempty"`
	TokenType    string         `json:"tokenType,omitempty"`
	ExpiresIn    int64          `json:"expiresIn,omitempty"`
	Raw          map[string]any `json:"-"`

	issuedAt time.Time
}

// parseTokenResponse builds a TokenResponse from a JSON body that is already known to be valid.
func parseTokenResponse(body []byte, issuedAt time.Time) *TokenResponse {
	parsed := gjson.ParseBytes(body)
	resp := &TokenResponse{
		AccessToken:  parsed.Get("accessToken").String(),
		RefreshToken: parsed.Get("refreshToken").String(),
		TokenType:    parsed.Get("tokenType").String(),
		ExpiresIn:    parsed.Get("expiresIn").Int(),
		issuedAt:     issuedAt,
	}
	if raw, ok := parsed.Value().(map[string]any); ok {
		resp.Raw = raw
	} else {
		resp.Raw = map[string]any{}
	}
	return resp
}

// Expiry returns the absolute expiry time, or the zero time when the provider did not say.
func (t *TokenResponse) Expiry() time.Time {
	if t == nil || t.ExpiresIn <= 0 || t.issuedAt.IsZero() {
		return time.Time{}
	}
	return t.issuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// OAuth2Token converts the response into an oauth2.Token with the raw body attached as extra fields.
func (t *TokenResponse) OAuth2Token() *oauth2.Token {
	if t == nil {
		return nil
	}
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry(),
		ExpiresIn:    t.ExpiresIn,
	}
	return tok.WithExtra(t.Raw)
}
