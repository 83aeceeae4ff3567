package ssh

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/nemith/xrcli/transport"
	"golang.org/x/crypto/ssh"
)

// alias it to a private type so we can make it private when embedding
type channel = transport.Channel //nolint:golint,unused

// Terminal dimensions requested for the pty.  A wide terminal keeps the
// device from wrapping long configuration lines.
const (
	termType   = "vt100"
	termWidth  = 511
	termHeight = 24
)

// Transport is an interactive IOS-XR CLI session over a ssh shell channel.
type Transport struct {
	c     *ssh.Client
	sess  *ssh.Session
	stdin io.WriteCloser

	// set to true if the transport is managing the underlying ssh connection
	// and should close it when the transport is closed.  This is is set to true
	// when used with `Dial`.
	managed bool

	*channel
}

// Dial will connect to a ssh server and open an interactive shell, it's used as
// a convenience function as essentially is the same as
//
//		c, err := ssh.Dial(network, addr, config)
//	 	if err != nil { /* ... handle error ... */ }
//	 	t, err := NewTransport(ctx, c)
//
// When the transport is closed the underlying connection is also closed.
func Dial(ctx context.Context, network, addr string, config *ssh.ClientConfig, opts ...transport.ChannelOption) (*Transport, error) {
	d := net.Dialer{Timeout: config.Timeout}
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	// Setup a go routine to monitor the context and close the connection.  This
	// is needed as the underlying ssh library doesn't support contexts so this
	// approximates a context based cancelation/timeout for the ssh handshake.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			// context is canceled so close the underlying connection.  Will
			// will catch ctx.Err() later.
			conn.Close()
		case <-done:
		}
	}()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		// if there is a context timeout return that error instead of the actual
		// error from ssh.NewClientConn.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	close(done) // make sure we cleanup the context monitor routine

	client := ssh.NewClient(sshConn, chans, reqs)
	t, err := newTransport(ctx, client, true, opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	return t, nil
}

// NewTransport opens an interactive shell on an existing client.  Unlike
// Dial, the underlying client will not be automatically closed when the
// transport is closed (however the shell session is still closed).
func NewTransport(ctx context.Context, client *ssh.Client, opts ...transport.ChannelOption) (*Transport, error) {
	return newTransport(ctx, client, false, opts...)
}

func newTransport(ctx context.Context, client *ssh.Client, managed bool, opts ...transport.ChannelOption) (*Transport, error) {
	sess, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create ssh session: %w", err)
	}

	w, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	r, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty(termType, termHeight, termWidth, modes); err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to request pty: %w", err)
	}

	if err := sess.Shell(); err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}

	t := &Transport{
		c:       client,
		managed: managed,
		sess:    sess,
		stdin:   w,

		channel: transport.NewChannel(r, w, opts...),
	}

	if err := t.prepare(ctx); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (t *Transport) prepare(ctx context.Context) error {
	if _, err := t.WaitPrompt(ctx); err != nil {
		return fmt.Errorf("failed to find initial prompt: %w", err)
	}

	return t.Prepare(ctx)
}

// Close will close the underlying transport.  If the connection was created
// with Dial then then underlying ssh.Client is closed as well.  If not only
// the sessions is closed.
func (t *Transport) Close() error {
	var retErr error

	t.channel.Close()

	if err := t.stdin.Close(); err != nil && !transport.IsClosed(err) {
		retErr = fmt.Errorf("failed to close ssh stdin: %w", err)
	}

	if err := t.sess.Close(); err != nil && !transport.IsClosed(err) {
		retErr = fmt.Errorf("failed to close ssh channel: %w", err)
	}

	if t.managed {
		if err := t.c.Close(); err != nil && !transport.IsClosed(err) {
			return fmt.Errorf("failed to close ssh connnection: %w", err)
		}
	}

	return retErr
}

var _ transport.Transport = (*Transport)(nil)
