package ctrader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/router-for-me/CTraderAuth/internal/config"
)

func TestIsKind(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("flow: %w", NewAuthenticationError(ErrCallbackTimeout, errors.New("late")))
	if !IsKind(wrapped, ErrCallbackTimeout) {
		t.Fatal("wrapped timeout not detected")
	}
	if IsKind(wrapped, ErrPortInUse) {
		t.Fatal("timeout reported as port_in_use")
	}
	if IsKind(errors.New("plain"), ErrCallbackTimeout) {
		t.Fatal("plain error reported as authentication error")
	}
	if !IsAuthenticationError(wrapped) {
		t.Fatal("IsAuthenticationError should see through wrapping")
	}
}

func TestAuthenticationError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("root cause")
	err := NewAuthenticationErrorWithBody(ErrCodeExchangeFailed, cause, `{"error":"invalid_grant"}`)
	if !errors.Is(err, cause) {
		t.Fatal("cause should be reachable with errors.Is")
	}
	if !strings.Contains(err.Error(), "code_exchange_failed") || !strings.Contains(err.Error(), "root cause") {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	if err.Body != `{"error":"invalid_grant"}` {
		t.Fatalf("Body = %q", err.Body)
	}
}

func TestGetUserFriendlyMessage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{NewAuthenticationError(ErrCallbackTimeout, nil), "--manual"},
		{NewAuthenticationError(ErrPortInUse, nil), "port"},
		{NewAuthenticationError(ErrConfig, nil), "CTRADER_CLIENT_ID"},
		{NewAuthenticationError(ErrOAuthDenied, errors.New("access_denied")), "access_denied"},
		{NewAuthenticationError(ErrEmptyInput, nil), "No authorization code"},
		{NewAuthenticationError(ErrConfig, fmt.Errorf("%w: --timeout must be positive", config.ErrInvalidValue)), "Invalid configuration: "},
		{fmt.Errorf("read authorization code: %w", context.Canceled), "Interrupted"},
		{errors.New("boom"), "boom"},
	}
	for _, tc := range cases {
		if got := GetUserFriendlyMessage(tc.err); !strings.Contains(got, tc.want) {
			t.Errorf("GetUserFriendlyMessage(%v) = %q, want substring %q", tc.err, got, tc.want)
		}
	}
}
