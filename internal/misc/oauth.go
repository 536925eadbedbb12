// Package misc holds small helpers used by the command layer.
package misc

import (
	"fmt"
	"net/url"
	"strings"
)

// OAuthCallback captures what the user pasted in manual mode.
type OAuthCallback struct {
	Code             string
	Error            string
	ErrorDescription string
}

// ParseOAuthCallback interprets pasted input as either a bare authorization code or the
// full redirect URL copied from the browser address bar.
// It returns nil when the input is empty.
func ParseOAuthCallback(input string) (*OAuthCallback, error) {
	trimmed := strings.Trim(strings.TrimSpace(input), `"'`)
	if trimmed == "" {
		return nil, nil
	}

	if !looksLikeCallbackURL(trimmed) {
		return &OAuthCallback{Code: trimmed}, nil
	}

	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		if strings.HasPrefix(candidate, "?") {
			candidate = "http://localhost" + candidate
		} else if strings.ContainsAny(candidate, "/?#") {
			candidate = "http://" + candidate
		} else {
			candidate = "http://localhost/?" + candidate
		}
	}

	parsedURL, err := url.Parse(candidate)
	if err != nil {
		return nil, fmt.Errorf("invalid callback URL: %w", err)
	}

	query := parsedURL.Query()
	code := strings.TrimSpace(query.Get("code"))
	errCode := strings.TrimSpace(query.Get("error"))
	errDesc := strings.TrimSpace(query.Get("error_description"))

	if parsedURL.Fragment != "" {
		if fragQuery, errFrag := url.ParseQuery(parsedURL.Fragment); errFrag == nil {
			if code == "" {
				code = strings.TrimSpace(fragQuery.Get("code"))
			}
			if errCode == "" {
				errCode = strings.TrimSpace(fragQuery.Get("error"))
			}
		}
	}

	if errCode == "" && errDesc != "" {
		errCode = errDesc
		errDesc = ""
	}

	if code == "" && errCode == "" {
		return nil, fmt.Errorf("callback URL missing code")
	}

	return &OAuthCallback{
		Code:             code,
		Error:            errCode,
		ErrorDescription: errDesc,
	}, nil
}

// looksLikeCallbackURL distinguishes a pasted URL or query string from a bare code.
func looksLikeCallbackURL(s string) bool {
	if strings.Contains(s, "://") || strings.HasPrefix(s, "?") {
		return true
	}
	return strings.Contains(s, "code=") || strings.Contains(s, "error=")
}
