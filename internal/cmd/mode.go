package cmd

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Mode selects how the authorization code is obtained.
type Mode int

const (
	// ModeUnset asks the user to choose.
	ModeUnset Mode = iota
	// ModeInteractive captures the browser redirect with a local callback server.
	ModeInteractive
	// ModeManual asks the user to paste the code.
	ModeManual
)

// String returns the lower-case mode name used in logs.
func (m Mode) String() string {
	switch m {
	case ModeInteractive:
		return "interactive"
	case ModeManual:
		return "manual"
	default:
		return "unset"
	}
}

// ModeFromFlags maps the mutually exclusive --interactive/--manual flags to a Mode.
func ModeFromFlags(interactive, manual bool) Mode {
	switch {
	case interactive:
		return ModeInteractive
	case manual:
		return ModeManual
	default:
		return ModeUnset
	}
}

// ResolveMode returns requested when it is set, otherwise prompts.
// Choice "1" selects interactive mode; any other answer, including an empty one,
// selects manual mode.
func ResolveMode(requested Mode, out io.Writer, prompt func(string) (string, error)) (Mode, error) {
	if requested != ModeUnset {
		return requested, nil
	}
	if prompt == nil {
		return ModeManual, nil
	}

	_, _ = fmt.Fprintln(out, "Select authorization mode:")
	_, _ = fmt.Fprintln(out, "  1) Interactive - start a local callback server and authorize in the browser")
	_, _ = fmt.Fprintln(out, "  2) Manual      - open the URL yourself and paste the authorization code")
	choice, err := prompt("Enter choice [1/2]: ")
	if err != nil {
		return ModeUnset, fmt.Errorf("read mode choice: %w", err)
	}

	switch strings.TrimSpace(choice) {
	case "1":
		return ModeInteractive, nil
	case "2", "":
		return ModeManual, nil
	default:
		log.Warnf("Unrecognised choice %q, falling back to manual mode", choice)
		return ModeManual, nil
	}
}
