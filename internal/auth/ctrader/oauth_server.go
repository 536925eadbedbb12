package ctrader

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CTraderAuth/internal/logging"
	log "github.com/sirupsen/logrus"
)

// UnknownCallbackError is recorded when the redirect carries neither code nor error.
const UnknownCallbackError = "Unknown error"

var ginModeOnce sync.Once

// OAuthServer handles the local HTTP server for OAuth callbacks.
// It accepts the single browser redirect from the consent page and hands the
// parsed result to WaitForCallback through a one-slot channel.
type OAuthServer struct {
	// server is the underlying HTTP server instance
	server *http.Server
	// listener is bound synchronously by Start so bind failures surface to the caller
	listener net.Listener
	// port is the requested port; 0 selects an ephemeral port
	port int
	// callbackPath is the only path that records a result
	callbackPath string
	// resultChan carries the first captured result
	resultChan chan *OAuthResult
	// errorChan carries a serve failure after a successful bind
	errorChan chan error
	// mu protects server state
	mu sync.Mutex
	// running indicates whether the server is currently running
	running bool
}

// OAuthResult is the outcome of the redirect: exactly one of Code and Error is set.
type OAuthResult struct {
	// Code is the authorization code issued by the consent page
	Code string
	// Error is the provider's error value, or UnknownCallbackError
	Error string
	// ErrorDescription is the optional error_description parameter
	ErrorDescription string
}

// NewOAuthServer creates a callback server for the given port and path.
// An empty path is treated as "/".
func NewOAuthServer(port int, callbackPath string) *OAuthServer {
	if callbackPath == "" {
		callbackPath = "/"
	}
	if !strings.HasPrefix(callbackPath, "/") {
		callbackPath = "/" + callbackPath
	}
	return &OAuthServer{
		port:         port,
		callbackPath: callbackPath,
		resultChan:   make(chan *OAuthResult, 1),
		errorChan:    make(chan error, 1),
	}
}

// Start binds localhost:<port> and serves in a background goroutine.
//
// Returns:
//   - error: ErrPortInUse when the port cannot be bound
func (s *OAuthServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	addr := net.JoinHostPort("localhost", strconv.Itoa(s.port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return NewAuthenticationError(ErrPortInUse, fmt.Errorf("port %d is already in use: %w", s.port, err))
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:      s.newEngine(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.running = true

	server := s.server
	go func() {
		if errServe := server.Serve(listener); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			s.errorChan <- NewAuthenticationError(ErrServerStartFailed, errServe)
		}
	}()

	log.Debugf("OAuth callback server listening on %s%s", listener.Addr(), s.callbackPath)
	return nil
}

// newEngine builds the gin engine serving only the callback path.
func (s *OAuthServer) newEngine() *gin.Engine {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})
	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery())
	engine.GET(s.callbackPath, s.handleCallback)
	return engine
}

// Port returns the bound port, or the requested port before Start.
func (s *OAuthServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		if tcpAddr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return tcpAddr.Port
		}
	}
	return s.port
}

// Stop gracefully stops the OAuth callback server.
func (s *OAuthServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}

	log.Debug("Stopping OAuth callback server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	s.running = false
	s.server = nil
	s.listener = nil

	return err
}

// IsRunning returns whether the server is currently running.
func (s *OAuthServer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// WaitForCallback blocks until a redirect is captured, the timeout elapses or ctx is done.
// When progressEvery is positive, onProgress is called on that interval with the elapsed time.
//
// Returns:
//   - *OAuthResult: the captured result
//   - error: ErrCallbackTimeout, a serve failure, or ctx.Err()
func (s *OAuthServer) WaitForCallback(ctx context.Context, timeout, progressEvery time.Duration, onProgress func(elapsed time.Duration)) (*OAuthResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var tick <-chan time.Time
	if progressEvery > 0 && onProgress != nil {
		ticker := time.NewTicker(progressEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case result := <-s.resultChan:
			return result, nil
		case err := <-s.errorChan:
			return nil, err
		case <-tick:
			onProgress(time.Since(started).Truncate(time.Second))
		case <-timer.C:
			return nil, NewAuthenticationError(ErrCallbackTimeout,
				fmt.Errorf("no callback received within %s", timeout))
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// handleCallback records the redirect outcome and serves the matching static page.
func (s *OAuthServer) handleCallback(c *gin.Context) {
	if code := strings.TrimSpace(c.Query("code")); code != "" {
		s.sendResult(&OAuthResult{Code: code})
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(LoginSuccessHtml))
		return
	}

	errParam := strings.TrimSpace(c.Query("error"))
	if errParam == "" {
		errParam = UnknownCallbackError
	}
	log.Errorf("OAuth error received: %s", errParam)
	s.sendResult(&OAuthResult{
		Error:            errParam,
		ErrorDescription: strings.TrimSpace(c.Query("error_description")),
	})
	c.Data(http.StatusBadRequest, "text/html; charset=utf-8", []byte(LoginFailureHtml))
}

// sendResult stores the result without blocking the handler; only the first one is kept.
func (s *OAuthServer) sendResult(result *OAuthResult) {
	select {
	case s.resultChan <- result:
		log.Debug("OAuth result sent to channel")
	default:
		log.Warn("OAuth result already captured, ignoring additional callback")
	}
}
