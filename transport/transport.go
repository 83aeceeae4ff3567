package transport

import (
	"context"
	"errors"
)

// ErrTimeout is returned when a prompt was not seen within the transport's
// configured timeout.
var ErrTimeout = errors.New("xrcli: timed out waiting for prompt")

// Mode is the CLI mode a session is currently in.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeExec
	ModeConfig
)

func (m Mode) String() string {
	switch m {
	case ModeExec:
		return "exec"
	case ModeConfig:
		return "config"
	}
	return "unknown"
}

// SendOptions controls how the output of a single command is framed.  The
// zero value keeps both the echoed command and the trailing prompt.
type SendOptions struct {
	StripPrompt  bool
	StripCommand bool
}

// Transport is an interactive CLI session to a single device.
//
// EnterConfigMode and ExitConfigMode must be idempotent: calling them when
// the session is already in the requested mode sends nothing and returns an
// empty string.
type Transport interface {
	SendCommand(ctx context.Context, cmd string, opts SendOptions) (string, error)
	EnterConfigMode(ctx context.Context) (string, error)
	ExitConfigMode(ctx context.Context) (string, error)
	Mode() Mode
	Close() error
}
