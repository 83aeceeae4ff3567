// Package telnet implements an interactive IOS-XR CLI transport over telnet,
// typically used for console servers and out-of-band access.
package telnet

import (
	"context"
	"net"
	"strconv"

	"github.com/nemith/xrcli/transport"
	"github.com/ziutek/telnet"
)

// alias it to a private type so we can make it private when embedding
type channel = transport.Channel //nolint:golint,unused

const defaultPort = 23

// ErrAuthFailed is returned when the device rejects the credentials.
var ErrAuthFailed = transport.ErrAuthFailed

// Transport is an interactive CLI session over a telnet connection.
type Transport struct {
	conn *telnet.Conn
	*channel
}

// Dial connects to addr (port 23 if none is given), logs in with username and
// password and waits for the exec prompt.
func Dial(ctx context.Context, addr, username, password string, opts ...transport.ChannelOption) (*Transport, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(defaultPort))
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	tn, err := telnet.NewConn(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	tn.SetUnixWriteMode(true)

	t := &Transport{
		conn:    tn,
		channel: transport.NewChannel(tn, tn, opts...),
	}

	if err := t.Login(ctx, username, password); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// Close closes the telnet connection.
func (t *Transport) Close() error {
	t.channel.Close()
	if err := t.conn.Close(); err != nil && !transport.IsClosed(err) {
		return err
	}
	return nil
}

var _ transport.Transport = (*Transport)(nil)
