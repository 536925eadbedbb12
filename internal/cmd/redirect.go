package cmd

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// CallbackTarget is where the local callback server listens and the redirect URI that
// points at it.
type CallbackTarget struct {
	RedirectURI string
	Port        int
	Path        string
}

func isLoopbackHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1"
}

// ResolveCallbackTarget derives the callback port and path from redirectURI.
// A loopback URI with an explicit port is used as is. A loopback URI without a port gets
// defaultPort. Any other URI is replaced with http://localhost:<defaultPort>/callback.
func ResolveCallbackTarget(redirectURI string, defaultPort int) (CallbackTarget, error) {
	if defaultPort <= 0 || defaultPort > 65535 {
		return CallbackTarget{}, fmt.Errorf("invalid callback port %d", defaultPort)
	}

	u, err := url.Parse(redirectURI)
	if err == nil && isLoopbackHost(u.Hostname()) {
		path := u.Path
		if path == "" {
			path = "/"
		}
		if p := u.Port(); p != "" {
			port, errPort := strconv.Atoi(p)
			if errPort != nil || port <= 0 || port > 65535 {
				return CallbackTarget{}, fmt.Errorf("invalid port in redirect URI %q", redirectURI)
			}
			return CallbackTarget{RedirectURI: redirectURI, Port: port, Path: path}, nil
		}
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(defaultPort))
		return CallbackTarget{RedirectURI: u.String(), Port: defaultPort, Path: path}, nil
	}

	return CallbackTarget{
		RedirectURI: fmt.Sprintf("http://localhost:%d/callback", defaultPort),
		Port:        defaultPort,
		Path:        "/callback",
	}, nil
}
