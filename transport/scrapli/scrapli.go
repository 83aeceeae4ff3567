// Package scrapli adapts a scrapligo network driver to transport.Transport so
// that the scrapligo ssh/telnet stack and its privilege level handling can be
// used instead of the built in interactive transports.
package scrapli

import (
	"context"
	"fmt"
	"strings"

	"github.com/scrapli/scrapligo/driver/network"
	"github.com/scrapli/scrapligo/driver/opoptions"
	"github.com/scrapli/scrapligo/platform"
	"github.com/scrapli/scrapligo/util"

	"github.com/nemith/xrcli/transport"
)

const (
	// Platform is the scrapligo platform definition used by Dial.
	Platform = "cisco_iosxr"

	// ConfigPriv is the scrapligo privilege level for configuration mode.
	ConfigPriv = "configuration"
)

// Transport wraps a scrapligo network driver.
type Transport struct {
	d          *network.Driver
	configPriv string
}

// Dial creates a cisco_iosxr scrapligo driver for host, opens it and returns
// the wrapped driver.  opts are passed to scrapligo unchanged (see
// github.com/scrapli/scrapligo/driver/options).
func Dial(ctx context.Context, host string, opts ...util.Option) (*Transport, error) {
	p, err := platform.NewPlatform(Platform, host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scrapli platform: %w", err)
	}

	d, err := p.GetNetworkDriver()
	if err != nil {
		return nil, fmt.Errorf("failed to create scrapli driver: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := d.Open(); err != nil {
		return nil, fmt.Errorf("failed to open scrapli driver: %w", err)
	}
	return NewTransport(d), nil
}

// NewTransport wraps an already opened driver.  Closing the transport closes
// the driver.
func NewTransport(d *network.Driver) *Transport {
	return &Transport{d: d, configPriv: ConfigPriv}
}

// SendCommand sends cmd at the current privilege level.  The embedded generic
// driver is used directly as the network driver would first drop back to the
// default privilege level.
func (t *Transport) SendCommand(ctx context.Context, cmd string, opts transport.SendOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var sopts []util.Option
	if !opts.StripPrompt {
		sopts = append(sopts, opoptions.WithNoStripPrompt())
	}

	r, err := t.d.Driver.SendCommand(cmd, sopts...)
	if err != nil {
		return "", err
	}

	// scrapligo always consumes the echoed input
	out := r.Result
	if !opts.StripCommand {
		out = cmd + "\n" + out
	}
	return out, nil
}

// EnterConfigMode acquires the configuration privilege level.  scrapligo does
// not expose the text produced by privilege changes so the result is always
// empty.
func (t *Transport) EnterConfigMode(ctx context.Context) (string, error) {
	if t.Mode() == transport.ModeConfig {
		return "", nil
	}
	return "", t.acquire(ctx, t.configPriv)
}

// ExitConfigMode acquires the driver's default privilege level.
func (t *Transport) ExitConfigMode(ctx context.Context) (string, error) {
	if t.Mode() != transport.ModeConfig {
		return "", nil
	}
	return "", t.acquire(ctx, t.d.DefaultDesiredPriv)
}

func (t *Transport) acquire(ctx context.Context, priv string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.d.AcquirePriv(priv); err != nil {
		return fmt.Errorf("failed to acquire privilege level %q: %w", priv, err)
	}
	return nil
}

// Mode maps the driver's current privilege level.
func (t *Transport) Mode() transport.Mode {
	return privMode(t.d.CurrentPriv)
}

// Close closes the driver.
func (t *Transport) Close() error {
	return t.d.Close()
}

func privMode(priv string) transport.Mode {
	switch {
	case priv == "":
		return transport.ModeUnknown
	case strings.HasPrefix(priv, ConfigPriv):
		return transport.ModeConfig
	}
	return transport.ModeExec
}

var _ transport.Transport = (*Transport)(nil)
