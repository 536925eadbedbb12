package misc

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Separator used to visually group related log lines.
var credentialSeparator = strings.Repeat("-", 67)

// LogSavingCredentials emits a consistent message when persisting the access token.
func LogSavingCredentials(w io.Writer, path string) {
	if path == "" {
		return
	}
	_, _ = fmt.Fprintf(w, "Saving access token to %s\n", filepath.Clean(path))
}

// LogCredentialSeparator adds a visual separator to group token handling logs.
func LogCredentialSeparator() {
	log.Debug(credentialSeparator)
}
