package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/scrapli/scrapligo/driver/options"
	"github.com/scrapli/scrapligo/util"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"

	"github.com/nemith/xrcli"
	"github.com/nemith/xrcli/internal/config"
	"github.com/nemith/xrcli/transport"
	"github.com/nemith/xrcli/transport/scrapli"
	"github.com/nemith/xrcli/transport/serial"
	xrssh "github.com/nemith/xrcli/transport/ssh"
	"github.com/nemith/xrcli/transport/telnet"
)

// resolveDevice builds the target device from the inventory and/or the
// command line flags.  Flags that were set explicitly win over the
// inventory.
func resolveDevice(cmd *cobra.Command) (*config.Device, error) {
	var dev *config.Device
	switch {
	case opts.device != "" && opts.address != "":
		return nil, errors.New("--device and --address are mutually exclusive")
	case opts.device != "":
		inv, err := config.New(opts.inventory)
		if err != nil {
			return nil, fmt.Errorf("failed to load inventory: %w", err)
		}
		d, err := inv.Device(opts.device)
		if err != nil {
			return nil, err
		}
		dev = d
	case opts.address != "":
		dev = &config.Device{Address: opts.address}
	default:
		return nil, errors.New("one of --device or --address is required")
	}

	flags := cmd.Flags()
	if flags.Changed("transport") {
		dev.Transport = opts.transport
		// let the port default follow the transport
		if !flags.Changed("port") {
			dev.Port = 0
		}
	}
	if flags.Changed("port") {
		dev.Port = opts.port
	}
	if flags.Changed("baud") {
		dev.Baud = opts.baud
	}
	if flags.Changed("username") {
		dev.Username = opts.username
	}
	if opts.password != "" {
		dev.Password = opts.password
	}
	if flags.Changed("key-file") {
		dev.KeyFile = opts.keyFile
	}
	if flags.Changed("known-hosts") {
		dev.KnownHosts = opts.knownHosts
	}
	if flags.Changed("insecure") {
		dev.InsecureSkipHostKey = opts.insecure
	}
	if flags.Changed("timeout") {
		d, err := time.ParseDuration(opts.timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid --timeout: %w", err)
		}
		dev.Timeout = d
	}

	if err := dev.ValidateSetDefaults(); err != nil {
		return nil, err
	}

	if dev.Username == "" {
		dev.Username = os.Getenv("USER")
	}

	if opts.askPassword {
		pass, err := readPassword(dev)
		if err != nil {
			return nil, err
		}
		dev.Password = pass
	}
	return dev, nil
}

func readPassword(dev *config.Device) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--ask-password requires a terminal")
	}

	fmt.Fprintf(os.Stderr, "%s@%s's password: ", dev.Username, dev.Address)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pass), nil
}

// connect opens a transport to dev.  The caller closes it.
func connect(ctx context.Context, dev *config.Device) (transport.Transport, error) {
	log.Debugf("connecting to %s over %s", dev.HostPort(), dev.Transport)

	switch dev.Transport {
	case config.TransportSSH:
		cfg, err := sshConfig(dev)
		if err != nil {
			return nil, err
		}
		return xrssh.Dial(ctx, "tcp", dev.HostPort(), cfg, channelOptions(dev)...)
	case config.TransportTelnet:
		return telnet.Dial(ctx, dev.HostPort(), dev.Username, dev.Password, channelOptions(dev)...)
	case config.TransportSerial:
		return serial.Dial(ctx, dev.Address, dev.Baud, dev.Username, dev.Password, channelOptions(dev)...)
	case config.TransportScrapli:
		sopts := []util.Option{
			options.WithAuthUsername(dev.Username),
			options.WithAuthPassword(dev.Password),
			options.WithPort(dev.Port),
			options.WithTimeoutOps(dev.Timeout),
			options.WithTransportType("standard"),
		}
		if dev.InsecureSkipHostKey {
			sopts = append(sopts, options.WithAuthNoStrictKey())
		}
		return scrapli.Dial(ctx, dev.Address, sopts...)
	}
	return nil, fmt.Errorf("unknown transport %q", dev.Transport)
}

func channelOptions(dev *config.Device) []transport.ChannelOption {
	copts := []transport.ChannelOption{transport.WithTimeout(dev.Timeout)}
	if dev.ConfigCommand != "" {
		copts = append(copts, transport.WithConfigCommand(dev.ConfigCommand))
	}
	if opts.trace {
		copts = append(copts, transport.WithTrace(os.Stderr))
	}
	return copts
}

func sshConfig(dev *config.Device) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if dev.KeyFile != "" {
		key, err := os.ReadFile(dev.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("couldn't open ssh private key %q: %w", dev.KeyFile, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("couldn't parse private key %q: %w", dev.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if dev.Password != "" {
		pass := dev.Password
		auth = append(auth,
			ssh.Password(pass),
			// XR asks for the password through keyboard-interactive on some
			// releases
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = pass
				}
				return answers, nil
			}),
		)
	}
	if len(auth) == 0 {
		return nil, errors.New("ssh requires a password or a key file")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if !dev.InsecureSkipHostKey {
		file := dev.KnownHosts
		if file == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			file = filepath.Join(home, ".ssh", "known_hosts")
		}
		cb, err := knownhosts.New(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts (use --insecure to skip): %w", err)
		}
		hostKeyCallback = cb
	}

	return &ssh.ClientConfig{
		User:            dev.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         dev.Timeout,
	}, nil
}

// openSession resolves the device, connects and wraps the transport in a
// session.
func openSession(cmd *cobra.Command) (*xrcli.Session, transport.Transport, error) {
	dev, err := resolveDevice(cmd)
	if err != nil {
		return nil, nil, err
	}

	tr, err := connect(cmd.Context(), dev)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", dev.HostPort(), err)
	}

	entry := log.WithField("device", dev.HostPort())
	sess := xrcli.NewSession(tr,
		xrcli.WithLogger(entry),
		xrcli.WithMetrics(opts.metrics),
	)
	return sess, tr, nil
}
