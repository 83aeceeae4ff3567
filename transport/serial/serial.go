// Package serial implements an interactive IOS-XR CLI transport over a local
// serial console port.
package serial

import (
	"context"
	"fmt"
	"io"

	"github.com/tarm/serial"

	"github.com/nemith/xrcli/transport"
)

// alias it to a private type so we can make it private when embedding
type channel = transport.Channel //nolint:golint,unused

// DefaultBaud is the console speed of IOS-XR route processors.
const DefaultBaud = 9600

// Transport is an interactive CLI session over a serial console.
type Transport struct {
	port io.ReadWriteCloser
	*channel
}

// Dial opens the serial port (e.g. `/dev/ttyUSB0`) at baud, wakes up the
// console and logs in if the line asks for credentials.  A baud of 0 uses
// DefaultBaud.
func Dial(ctx context.Context, port string, baud int, username, password string, opts ...transport.ChannelOption) (*Transport, error) {
	if baud == 0 {
		baud = DefaultBaud
	}

	p, err := serial.OpenPort(&serial.Config{Name: port, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", port, err)
	}

	return newTransport(ctx, p, username, password, opts...)
}

// NewTransport runs a console session over an already open port.  The port
// is closed when the transport is closed.
func NewTransport(ctx context.Context, port io.ReadWriteCloser, username, password string, opts ...transport.ChannelOption) (*Transport, error) {
	return newTransport(ctx, port, username, password, opts...)
}

func newTransport(ctx context.Context, port io.ReadWriteCloser, username, password string, opts ...transport.ChannelOption) (*Transport, error) {
	t := &Transport{
		port:    port,
		channel: transport.NewChannel(port, port, opts...),
	}

	// an idle console prints nothing until it gets a line
	if err := t.WriteLine(""); err != nil {
		t.Close()
		return nil, err
	}

	if err := t.Login(ctx, username, password); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// Close closes the serial port.  The console stays logged in unless the
// device times the line out.
func (t *Transport) Close() error {
	t.channel.Close()
	if err := t.port.Close(); err != nil && !transport.IsClosed(err) {
		return err
	}
	return nil
}

var _ transport.Transport = (*Transport)(nil)
