package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultConfigCommand is sent to move from exec into configuration mode.
	DefaultConfigCommand = "configure terminal"
	// DefaultExitCommand is sent to leave configuration mode from any
	// configuration sub-mode.
	DefaultExitCommand = "end"

	defaultTimeout    = 30 * time.Second
	defaultLineEnding = "\n"
)

// DefaultPrompt matches IOS-XR exec and configuration prompts such as
// `RP/0/RP0/CPU0:edge1#` and `RP/0/RP0/CPU0:edge1(config-if)#`.
var DefaultPrompt = regexp.MustCompile(`^[^\s#>()]+(\(config[^)]*\))?#\s*$`)

// SessionPrep is sent by Prepare so that output is neither paged nor
// wrapped.
var SessionPrep = []string{
	"terminal length 0",
	"terminal width 511",
}

var (
	morePattern        = regexp.MustCompile(`\s*--More--\s*$`)
	uncommittedPattern = regexp.MustCompile(`Uncommitted changes found, commit them before exiting\(yes/no/cancel\)\?\s*(\[cancel\])?:\s*$`)
)

type prefixWriter struct {
	prefix string
	writer io.Writer
	nl     bool
	buf    bytes.Buffer // reuse buffer to save allocations
}

// newPrefixWriter forwards all writes to writer with every line prefixed by
// prefix.
func newPrefixWriter(writer io.Writer, prefix string) *prefixWriter {
	return &prefixWriter{prefix: prefix, writer: writer, nl: true}
}

func (pf *prefixWriter) Write(payload []byte) (int, error) {
	pf.buf.Reset()

	for _, b := range payload {
		if pf.nl {
			pf.buf.WriteString(pf.prefix)
			pf.nl = false
		}

		pf.buf.WriteByte(b)

		if b == '\n' {
			// don't write the prefix until there is something after the
			// newline to avoid a trailing prefix at the end of the stream.
			pf.nl = true
		}
	}

	n, err := pf.writer.Write(pf.buf.Bytes())
	if err != nil {
		// never return more than original length to satisfy io.Writer interface
		if n > len(payload) {
			n = len(payload)
		}
		return n, err
	}

	return len(payload), nil
}

// ChannelOption configures a Channel.
type ChannelOption interface {
	apply(*Channel)
}

type promptOpt struct{ re *regexp.Regexp }

func (o promptOpt) apply(c *Channel) { c.prompt = o.re }

// WithPrompt replaces DefaultPrompt.  The expression is matched against the
// last line of output.  A prompt containing `(config` is treated as
// configuration mode.
func WithPrompt(re *regexp.Regexp) ChannelOption { return promptOpt{re} }

type timeoutOpt time.Duration

func (o timeoutOpt) apply(c *Channel) { c.timeout = time.Duration(o) }

// WithTimeout sets how long to wait for a prompt after each command.
func WithTimeout(d time.Duration) ChannelOption { return timeoutOpt(d) }

type traceOpt struct{ w io.Writer }

func (o traceOpt) apply(c *Channel) { c.trace = o.w }

// WithTrace copies all traffic to w, prefixing sent lines with `--> ` and
// received lines with `<-- `.
func WithTrace(w io.Writer) ChannelOption { return traceOpt{w} }

type lineEndingOpt string

func (o lineEndingOpt) apply(c *Channel) { c.eol = string(o) }

// WithLineEnding sets the sequence appended to every line written.  Defaults
// to "\n".
func WithLineEnding(eol string) ChannelOption { return lineEndingOpt(eol) }

type configCmdOpt string

func (o configCmdOpt) apply(c *Channel) { c.configCmd = string(o) }

// WithConfigCommand overrides DefaultConfigCommand (e.g. `configure
// exclusive`).
func WithConfigCommand(cmd string) ChannelOption { return configCmdOpt(cmd) }

type exitCmdOpt string

func (o exitCmdOpt) apply(c *Channel) { c.exitCmd = string(o) }

// WithExitCommand overrides DefaultExitCommand.
func WithExitCommand(cmd string) ChannelOption { return exitCmdOpt(cmd) }

// Channel is a prompt delimited, line oriented session over a reader and
// writer pair (a ssh shell, a telnet connection, a pipe).  Output is
// collected until the prompt is seen again.  The current mode is derived from
// the last prompt read.
//
// A Channel is not safe for concurrent use.
type Channel struct {
	w io.Writer

	chunks  chan []byte
	readErr error
	done    chan struct{}
	closed  bool
	buf     bytes.Buffer

	prompt    *regexp.Regexp
	timeout   time.Duration
	trace     io.Writer
	eol       string
	configCmd string
	exitCmd   string

	mode Mode
}

// NewChannel starts reading from r in the background and returns a Channel
// writing to w.  The caller is responsible for closing r and w; Close only
// stops the background reader.
func NewChannel(r io.Reader, w io.Writer, opts ...ChannelOption) *Channel {
	c := &Channel{
		prompt:    DefaultPrompt,
		timeout:   defaultTimeout,
		eol:       defaultLineEnding,
		configCmd: DefaultConfigCommand,
		exitCmd:   DefaultExitCommand,
		chunks:    make(chan []byte, 16),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt.apply(c)
	}

	if c.trace != nil {
		w = io.MultiWriter(w, newPrefixWriter(c.trace, "--> "))
		r = io.TeeReader(r, newPrefixWriter(c.trace, "<-- "))
	}
	c.w = w

	go c.pump(r)
	return c
}

func (c *Channel) pump(r io.Reader) {
	defer close(c.chunks)
	for {
		b := make([]byte, 4096)
		n, err := r.Read(b)
		if n > 0 {
			select {
			case c.chunks <- b[:n]:
			case <-c.done:
				return
			}
		}
		if err != nil {
			// visible to readers once chunks is closed
			c.readErr = err
			return
		}
	}
}

// Mode returns the mode of the last prompt seen.
func (c *Channel) Mode() Mode {
	return c.mode
}

// Prompt returns the expression used to detect the prompt.
func (c *Channel) Prompt() *regexp.Regexp {
	return c.prompt
}

// WriteLine writes s followed by the line ending.
func (c *Channel) WriteLine(s string) error {
	if c.closed {
		return net.ErrClosed
	}
	if _, err := io.WriteString(c.w, s+c.eol); err != nil {
		return fmt.Errorf("failed to write %q: %w", s, err)
	}
	return nil
}

// WaitPrompt reads until the prompt is seen and returns everything read,
// including any login banner.
func (c *Channel) WaitPrompt(ctx context.Context) (string, error) {
	out, _, err := c.Expect(ctx, c.prompt)
	return out, err
}

// Expect reads until the last line of output matches one of patterns and
// returns everything read along with the index of the pattern that matched.
// `--More--` pagination is answered along the way.
func (c *Channel) Expect(ctx context.Context, patterns ...*regexp.Regexp) (string, int, error) {
	if c.closed {
		return "", -1, net.ErrClosed
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		idx, err := c.scan(patterns)
		if err != nil {
			return "", -1, err
		}
		if idx >= 0 {
			out := c.buf.String()
			c.buf.Reset()
			return out, idx, nil
		}

		select {
		case b, ok := <-c.chunks:
			if !ok {
				err := c.readErr
				if err == nil {
					err = io.EOF
				}
				return c.drain(), -1, fmt.Errorf("connection closed while waiting for prompt: %w", err)
			}
			c.buf.Write(b)
		case <-ctx.Done():
			return c.drain(), -1, ctx.Err()
		case <-timer.C:
			return c.drain(), -1, ErrTimeout
		}
	}
}

// drain returns and discards the unconsumed output.  Output still in flight
// when an Expect gives up can arrive later and is not discarded; the next
// Expect may match a prompt that belonged to the abandoned command.
func (c *Channel) drain() string {
	out := c.buf.String()
	c.buf.Reset()
	return out
}

// scan checks the unconsumed output for a pager or one of patterns.
func (c *Channel) scan(patterns []*regexp.Regexp) (int, error) {
	tail := lastLine(c.buf.String())

	if loc := morePattern.FindStringIndex(tail); loc != nil {
		c.buf.Truncate(c.buf.Len() - (len(tail) - loc[0]))
		if _, err := io.WriteString(c.w, " "); err != nil {
			return -1, fmt.Errorf("failed to page output: %w", err)
		}
		return -1, nil
	}

	for i, re := range patterns {
		if !re.MatchString(tail) {
			continue
		}
		if re == c.prompt {
			c.mode = promptMode(tail)
		}
		return i, nil
	}
	return -1, nil
}

// SendCommand writes cmd and returns the output up to the next prompt.
func (c *Channel) SendCommand(ctx context.Context, cmd string, opts SendOptions) (string, error) {
	if err := c.WriteLine(cmd); err != nil {
		return "", err
	}

	out, _, err := c.Expect(ctx, c.prompt)
	if err != nil {
		return out, err
	}
	return frame(out, cmd, opts), nil
}

// Prepare sends SessionPrep.  The prompt must already have been seen.
func (c *Channel) Prepare(ctx context.Context) error {
	for _, cmd := range SessionPrep {
		if _, err := c.SendCommand(ctx, cmd, SendOptions{}); err != nil {
			return fmt.Errorf("failed to prepare session (%s): %w", cmd, err)
		}
	}
	return nil
}

// EnterConfigMode sends the configuration command unless the last prompt
// already was a configuration prompt.
func (c *Channel) EnterConfigMode(ctx context.Context) (string, error) {
	if c.mode == ModeConfig {
		return "", nil
	}

	out, err := c.SendCommand(ctx, c.configCmd, SendOptions{})
	if err != nil {
		return out, err
	}
	if c.mode != ModeConfig {
		return out, fmt.Errorf("prompt not in configuration mode: %q", out)
	}
	return out, nil
}

// ExitConfigMode returns to exec mode.  If the device asks whether to commit
// uncommitted changes the answer is `no` and the changes are discarded.
func (c *Channel) ExitConfigMode(ctx context.Context) (string, error) {
	if c.mode != ModeConfig {
		return "", nil
	}

	if err := c.WriteLine(c.exitCmd); err != nil {
		return "", err
	}

	out, idx, err := c.Expect(ctx, c.prompt, uncommittedPattern)
	if err != nil {
		return out, err
	}

	if idx == 1 {
		if err := c.WriteLine("no"); err != nil {
			return out, err
		}
		more, _, err := c.Expect(ctx, c.prompt)
		out += more
		if err != nil {
			return out, err
		}
	}

	if c.mode == ModeConfig {
		return out, fmt.Errorf("prompt still in configuration mode: %q", out)
	}
	return out, nil
}

// Close stops the background reader.  It does not close the underlying
// reader or writer.
func (c *Channel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return nil
}

func promptMode(prompt string) Mode {
	if strings.Contains(prompt, "(config") {
		return ModeConfig
	}
	return ModeExec
}

func lastLine(s string) string {
	return s[strings.LastIndexAny(s, "\r\n")+1:]
}

// frame removes the echoed command and/or the trailing prompt from out.
func frame(out, cmd string, opts SendOptions) string {
	if opts.StripCommand {
		if i := strings.IndexByte(out, '\n'); i >= 0 && strings.Contains(out[:i], cmd) {
			out = out[i+1:]
		}
	}

	if opts.StripPrompt {
		out = strings.TrimRight(out[:strings.LastIndexAny(out, "\r\n")+1], "\r\n")
	}
	return out
}

var _ Transport = (*Channel)(nil)

// IsClosed reports whether err indicates the remote side went away.
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
}
