// Package xrcli drives configuration sessions on IOS-XR devices over an
// interactive command line transport: entering and leaving configuration
// mode, submitting batches of configuration lines and committing them with
// failure detection.
package xrcli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nemith/xrcli/transport"
)

// Protocol tokens used by Commit.  They can be overridden per session.
const (
	DefaultCommitCommand     = "commit"
	DefaultFailureMarker     = "Failed to commit"
	DefaultDiagnosticCommand = "show configuration failed"

	abortCommand = "abort"
)

// keepFraming leaves the echoed command and the prompt in the output so that
// errors printed next to them are not lost.
var keepFraming = transport.SendOptions{StripPrompt: false, StripCommand: false}

type sessionConfig struct {
	commitCmd     string
	failureMarker string
	diagCmd       string
	logger        Logger
	metrics       *Metrics
}

// SessionOption configures a Session.
type SessionOption interface {
	apply(*sessionConfig)
}

type commitCmdOpt string

func (o commitCmdOpt) apply(cfg *sessionConfig) { cfg.commitCmd = string(o) }

// WithCommitCommand overrides DefaultCommitCommand.
func WithCommitCommand(cmd string) SessionOption { return commitCmdOpt(cmd) }

type failureMarkerOpt string

func (o failureMarkerOpt) apply(cfg *sessionConfig) { cfg.failureMarker = string(o) }

// WithFailureMarker overrides DefaultFailureMarker.
func WithFailureMarker(marker string) SessionOption { return failureMarkerOpt(marker) }

type diagCmdOpt string

func (o diagCmdOpt) apply(cfg *sessionConfig) { cfg.diagCmd = string(o) }

// WithDiagnosticCommand overrides DefaultDiagnosticCommand.
func WithDiagnosticCommand(cmd string) SessionOption { return diagCmdOpt(cmd) }

type loggerOpt struct{ l Logger }

func (o loggerOpt) apply(cfg *sessionConfig) { cfg.logger = o.l }

// WithLogger sets the logger for this session instead of the package logger
// set by SetLog.
func WithLogger(l Logger) SessionOption { return loggerOpt{l} }

type metricsOpt struct{ m *Metrics }

func (o metricsOpt) apply(cfg *sessionConfig) { cfg.metrics = o.m }

// WithMetrics records commands and commit results in m.
func WithMetrics(m *Metrics) SessionOption { return metricsOpt{m} }

// Session drives configuration changes over a transport.  The transport is
// borrowed: the session never closes it.
//
// A Session issues one command at a time and is not safe for concurrent
// use.
type Session struct {
	tr  transport.Transport
	cfg sessionConfig
}

// NewSession returns a Session using tr.
func NewSession(tr transport.Transport, opts ...SessionOption) *Session {
	cfg := sessionConfig{
		commitCmd:     DefaultCommitCommand,
		failureMarker: DefaultFailureMarker,
		diagCmd:       DefaultDiagnosticCommand,
	}

	for _, opt := range opts {
		opt.apply(&cfg)
	}

	return &Session{
		tr:  tr,
		cfg: cfg,
	}
}

func (s *Session) log() Logger {
	if s.cfg.logger != nil {
		return s.cfg.logger
	}
	return log
}

// Mode returns the transport's current mode.
func (s *Session) Mode() transport.Mode {
	return s.tr.Mode()
}

// EnterConfigMode makes sure the session is in configuration mode and returns
// whatever the transport printed getting there (nothing if it already was).
func (s *Session) EnterConfigMode(ctx context.Context) (string, error) {
	out, err := s.tr.EnterConfigMode(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to enter configuration mode: %w", err)
	}
	return out, nil
}

// ExitConfigMode returns the session to exec mode.
func (s *Session) ExitConfigMode(ctx context.Context) (string, error) {
	out, err := s.tr.ExitConfigMode(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to exit configuration mode: %w", err)
	}
	return out, nil
}

func (s *Session) send(ctx context.Context, cmd string) (string, error) {
	out, err := s.tr.SendCommand(ctx, cmd, keepFraming)
	s.cfg.metrics.commandSent()
	if err != nil {
		return out, fmt.Errorf("failed to send %q: %w", cmd, err)
	}
	return out, nil
}

// SendConfig is SendConfigSet for loosely typed input such as a list decoded
// from YAML or JSON.  commands may be nil, a []string or a []any holding only
// strings; anything else fails with ErrInvalidArgument before anything is
// sent.
func (s *Session) SendConfig(ctx context.Context, commands any, commit bool, opts ...CommitOption) (string, error) {
	cmds, err := ParseCommands(commands)
	if err != nil {
		return "", err
	}
	return s.SendConfigSet(ctx, cmds, commit, opts...)
}

// ParseCommands converts loosely typed input to a list of commands.  v may be
// nil, a []string or a []any holding only strings.
func ParseCommands(v any) ([]string, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		if v == nil {
			return nil, nil
		}
		cmds := make([]string, 0, len(v))
		for i, c := range v {
			cmd, ok := c.(string)
			if !ok {
				return nil, fmt.Errorf("%w: command %d is %T, not a string", ErrInvalidArgument, i, c)
			}
			cmds = append(cmds, cmd)
		}
		return cmds, nil
	}
	return nil, fmt.Errorf("%w: commands must be a list of strings, got %T", ErrInvalidArgument, v)
}

// SendConfigSet enters configuration mode, sends every command in order,
// optionally commits and returns to exec mode.  The returned transcript is
// the output of every step concatenated, with echoed commands and prompts
// left in place.
//
// A nil commands is a no-op and nothing is sent.  Nor is anything sent when a
// command contains a line break or a commit option cannot be rendered as a
// single line.  If the commit fails the
// session is left in configuration mode and the error is a *CommitError.
func (s *Session) SendConfigSet(ctx context.Context, commands []string, commit bool, opts ...CommitOption) (string, error) {
	if commands == nil {
		return "", nil
	}

	ccfg, err := newCommitConfig(opts)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	s.log().Debugf("xrcli: [%s] sending %d configuration lines (commit=%t)", id, len(commands), commit)

	var transcript strings.Builder

	out, err := s.Stage(ctx, commands)
	transcript.WriteString(out)
	if err != nil {
		return transcript.String(), err
	}

	if commit {
		out, err := s.commit(ctx, ccfg)
		transcript.WriteString(out)
		if err != nil {
			var commitErr *CommitError
			if errors.As(err, &commitErr) {
				commitErr.Transcript = transcript.String()
				s.log().Warnf("xrcli: [%s] commit failed, staying in configuration mode", id)
			}
			return transcript.String(), err
		}
	}

	out, err = s.ExitConfigMode(ctx)
	transcript.WriteString(out)
	if err != nil {
		return transcript.String(), err
	}

	s.log().Debugf("xrcli: [%s] done", id)
	return transcript.String(), nil
}

// Stage enters configuration mode and sends commands without committing,
// leaving the session in configuration mode with the changes in the
// candidate configuration.  Nothing is sent if any command contains a line
// break.
func (s *Session) Stage(ctx context.Context, commands []string) (string, error) {
	for i, cmd := range commands {
		if strings.ContainsAny(cmd, "\r\n") {
			return "", fmt.Errorf("%w: command %d contains a line break", ErrInvalidArgument, i)
		}
	}

	var transcript strings.Builder

	out, err := s.EnterConfigMode(ctx)
	transcript.WriteString(out)
	if err != nil {
		return transcript.String(), err
	}

	for _, cmd := range commands {
		out, err := s.send(ctx, cmd)
		transcript.WriteString(out)
		if err != nil {
			return transcript.String(), err
		}
	}
	return transcript.String(), nil
}

// SendCommand sends a single command in the current mode, such as `show
// configuration` while changes are staged, and returns its output with the
// echo and prompt left in place.
func (s *Session) SendCommand(ctx context.Context, cmd string) (string, error) {
	if strings.ContainsAny(cmd, "\r\n") {
		return "", fmt.Errorf("%w: command contains a line break", ErrInvalidArgument)
	}
	return s.send(ctx, cmd)
}

// Commit commits the candidate configuration and returns to exec mode.
//
// If the device reports the commit failed, the output of `show configuration
// failed` is returned in a *CommitError and the session is deliberately left
// in configuration mode so the caller can inspect the failure, correct the
// candidate or Abort.
func (s *Session) Commit(ctx context.Context, opts ...CommitOption) (string, error) {
	ccfg, err := newCommitConfig(opts)
	if err != nil {
		return "", err
	}

	var transcript strings.Builder

	out, err := s.EnterConfigMode(ctx)
	transcript.WriteString(out)
	if err != nil {
		return transcript.String(), err
	}

	out, err = s.commit(ctx, ccfg)
	transcript.WriteString(out)
	if err != nil {
		var commitErr *CommitError
		if errors.As(err, &commitErr) {
			commitErr.Transcript = transcript.String()
		}
		return transcript.String(), err
	}

	out, err = s.ExitConfigMode(ctx)
	transcript.WriteString(out)
	if err != nil {
		return transcript.String(), err
	}
	return transcript.String(), nil
}

// commit sends the commit command from configuration mode and checks its
// output for the failure marker.  Only the commit's own output is checked;
// earlier output may mention the marker for unrelated reasons.
func (s *Session) commit(ctx context.Context, cfg commitConfig) (string, error) {
	out, err := s.send(ctx, cfg.command(s.cfg.commitCmd))
	if err != nil {
		return out, err
	}

	if !strings.Contains(out, s.cfg.failureMarker) {
		s.cfg.metrics.commitDone(true)
		return out, nil
	}
	s.cfg.metrics.commitDone(false)

	diag, err := s.send(ctx, s.cfg.diagCmd)
	commitErr := &CommitError{
		Diagnostic: diag,
		Transcript: out,
	}
	if err != nil {
		return out, errors.Join(commitErr, err)
	}
	return out, commitErr
}

// Abort discards the candidate configuration and leaves configuration mode.
// It does nothing outside of configuration mode.
func (s *Session) Abort(ctx context.Context) (string, error) {
	if s.tr.Mode() != transport.ModeConfig {
		return "", nil
	}

	var transcript strings.Builder

	out, err := s.send(ctx, abortCommand)
	transcript.WriteString(out)
	if err != nil {
		return transcript.String(), err
	}

	// resync in case the transport doesn't track the mode from prompts
	out, err = s.ExitConfigMode(ctx)
	transcript.WriteString(out)
	if err != nil {
		return transcript.String(), err
	}
	return transcript.String(), nil
}
