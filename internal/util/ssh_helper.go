package util

import (
	"fmt"
	"io"
	"net"
	"strings"

	log "github.com/sirupsen/logrus"
)

// RemoteSessionHost returns the server address of the current SSH session, if any.
// SSH_CONNECTION has the form "client_ip client_port server_ip server_port".
func RemoteSessionHost(lookupEnv func(string) (string, bool)) (string, bool) {
	if lookupEnv == nil {
		return "", false
	}
	value, ok := lookupEnv("SSH_CONNECTION")
	if !ok {
		return "", false
	}
	fields := strings.Fields(value)
	if len(fields) < 3 {
		return "", false
	}
	host := fields[2]
	if net.ParseIP(host) == nil {
		log.Debugf("SSH_CONNECTION has unexpected server address %q", host)
		return "", false
	}
	return host, true
}

// PrintSSHTunnelInstructions prints the port-forward command a user needs when the
// callback server runs on a remote machine reached over SSH.
//
// Parameters:
//   - w: destination for the instructions
//   - host: the remote server address
//   - port: the local port number for the SSH tunnel
func PrintSSHTunnelInstructions(w io.Writer, host string, port int) {
	border := strings.Repeat("=", 80)
	_, _ = fmt.Fprintln(w, "This looks like an SSH session. The browser redirect must reach this machine.")
	_, _ = fmt.Fprintln(w, border)
	_, _ = fmt.Fprintln(w, "  Run the following on the machine that runs your browser:")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "  ssh -L %d:127.0.0.1:%d <user>@%s\n", port, port, host)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "  Or use --manual and paste the code instead.")
	_, _ = fmt.Fprintln(w, border)
}
