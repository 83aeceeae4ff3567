// Package config loads the device inventory used by xrconf.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

const (
	TransportSSH     = "ssh"
	TransportTelnet  = "telnet"
	TransportScrapli = "scrapli"
	TransportSerial  = "serial"

	defaultTransport = TransportSSH
	defaultTimeout   = 30 * time.Second
	defaultSSHPort   = 22
	defaultTelnet    = 23
	defaultBaud      = 9600
)

type Config struct {
	Defaults *Device            `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	Devices  map[string]*Device `yaml:"devices,omitempty" json:"devices,omitempty"`
}

// Device describes how to reach a single router.  Empty fields are filled in
// from the inventory defaults.
type Device struct {
	Address   string        `yaml:"address,omitempty" json:"address,omitempty"`
	Port      int           `yaml:"port,omitempty" json:"port,omitempty"`
	Transport string        `yaml:"transport,omitempty" json:"transport,omitempty"`
	Username  string        `yaml:"username,omitempty" json:"username,omitempty"`
	Password  string        `yaml:"password,omitempty" json:"password,omitempty"`
	KeyFile   string        `yaml:"key-file,omitempty" json:"key-file,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	// Baud is the console speed when Transport is serial and Address names
	// the serial port.
	Baud int `yaml:"baud,omitempty" json:"baud,omitempty"`
	// ConfigCommand replaces `configure terminal`, e.g. `configure exclusive`.
	ConfigCommand string `yaml:"config-command,omitempty" json:"config-command,omitempty"`
	// InsecureSkipHostKey disables ssh host key checking.
	InsecureSkipHostKey bool `yaml:"insecure-skip-host-key,omitempty" json:"insecure-skip-host-key,omitempty"`
	KnownHosts          string `yaml:"known-hosts,omitempty" json:"known-hosts,omitempty"`
}

// New reads the inventory in file.  An empty file name returns an empty
// inventory.
func New(file string) (*Config, error) {
	c := new(Config)
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}

		err = yaml.Unmarshal(b, c)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
	}
	err := c.validateSetDefaults()
	return c, err
}

func (c *Config) validateSetDefaults() error {
	if c.Defaults == nil {
		c.Defaults = &Device{}
	}
	if c.Devices == nil {
		c.Devices = make(map[string]*Device)
	}

	for name, d := range c.Devices {
		if d == nil {
			return fmt.Errorf("device %q: empty definition", name)
		}
		d.inherit(c.Defaults)
		if err := d.validateSetDefaults(); err != nil {
			return fmt.Errorf("device %q: %w", name, err)
		}
	}
	return nil
}

func (d *Device) inherit(def *Device) {
	if d.Port == 0 {
		d.Port = def.Port
	}
	if d.Transport == "" {
		d.Transport = def.Transport
	}
	if d.Username == "" {
		d.Username = def.Username
	}
	if d.Password == "" {
		d.Password = def.Password
	}
	if d.KeyFile == "" {
		d.KeyFile = def.KeyFile
	}
	if d.Timeout == 0 {
		d.Timeout = def.Timeout
	}
	if d.Baud == 0 {
		d.Baud = def.Baud
	}
	if d.ConfigCommand == "" {
		d.ConfigCommand = def.ConfigCommand
	}
	if d.KnownHosts == "" {
		d.KnownHosts = def.KnownHosts
	}
	d.InsecureSkipHostKey = d.InsecureSkipHostKey || def.InsecureSkipHostKey
}

// ValidateSetDefaults checks d and fills in the transport, port and timeout.
// It is exported for devices built from command line flags.
func (d *Device) ValidateSetDefaults() error {
	return d.validateSetDefaults()
}

func (d *Device) validateSetDefaults() error {
	if d.Address == "" {
		return errors.New("missing address")
	}
	if d.Transport == "" {
		d.Transport = defaultTransport
	}
	switch d.Transport {
	case TransportSSH:
		if d.Port == 0 {
			d.Port = defaultSSHPort
		}
	case TransportScrapli:
		if d.Port == 0 {
			d.Port = defaultSSHPort
		}
		if d.KeyFile != "" {
			return errors.New("key-file is only supported by the ssh transport")
		}
	case TransportTelnet:
		if d.Port == 0 {
			d.Port = defaultTelnet
		}
		if d.KeyFile != "" {
			return errors.New("key-file is only supported by the ssh transport")
		}
	case TransportSerial:
		if d.Baud == 0 {
			d.Baud = defaultBaud
		}
		if d.KeyFile != "" {
			return errors.New("key-file is only supported by the ssh transport")
		}
	default:
		return fmt.Errorf("unknown transport %q", d.Transport)
	}
	if d.Port < 0 || d.Port > 65535 {
		return fmt.Errorf("invalid port %d", d.Port)
	}
	if d.Timeout == 0 {
		d.Timeout = defaultTimeout
	}
	if d.Timeout < 0 {
		return fmt.Errorf("invalid timeout %s", d.Timeout)
	}
	return nil
}

// HostPort returns the address joined with the port, or the serial port
// name for serial devices.
func (d *Device) HostPort() string {
	if d.Transport == TransportSerial {
		return d.Address
	}
	return net.JoinHostPort(d.Address, strconv.Itoa(d.Port))
}

// Names returns the device names in sorted order.
func (c *Config) Names() []string {
	names := maps.Keys(c.Devices)
	slices.Sort(names)
	return names
}

// Device looks up a device by name.
func (c *Config) Device(name string) (*Device, error) {
	d, ok := c.Devices[name]
	if !ok {
		return nil, fmt.Errorf("unknown device %q", name)
	}
	return d, nil
}

// LoadBatch reads a YAML list of configuration lines from file.  The list is
// returned undecoded so that xrcli.Session.SendConfig validates its shape.
func LoadBatch(file string) (any, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var batch any
	if err := yaml.Unmarshal(b, &batch); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file, err)
	}
	return batch, nil
}
