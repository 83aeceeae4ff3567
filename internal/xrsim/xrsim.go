// Package xrsim is a small simulated IOS-XR command line used to exercise
// transports and sessions in tests.
package xrsim

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

const (
	// FailedCommitOutput is printed by `commit` when the device rejects the
	// candidate configuration.
	FailedCommitOutput = "% Failed to commit one or more configuration items during a pseudo-atomic operation. " +
		"All changes made have been reverted. Please issue 'show configuration failed [inheritance]' " +
		"from this session to view the errors"

	// FailedConfigOutput is printed by `show configuration failed`.
	FailedConfigOutput = "!! SEMANTIC ERRORS: This configuration was rejected by\r\n" +
		"!! the system due to semantic errors. The individual\r\n" +
		"!! errors are detailed below.\r\n" +
		"interface GigabitEthernet0/0/0/0\r\n" +
		" ipv4 address 10.0.0.1 255.255.255.0\r\n" +
		"!!% Invalid argument: overlapping address"

	uncommittedQuestion = "Uncommitted changes found, commit them before exiting(yes/no/cancel)? [cancel]:"
	banner              = "\r\nIMPORTANT: READ CAREFULLY\r\nWelcome to the simulated router\r\n\r\n"
	invalidInput        = "% Invalid input detected at '^' marker."
)

// Device is a simulated router.  Its exported fields may be set before
// Serve is called; the recorded state is read through the accessor methods.
type Device struct {
	Hostname string
	// FailCommit makes every commit fail.
	FailCommit bool
	// Idle makes Serve print nothing until the first line is read, like a
	// console port that has been sitting idle.
	Idle bool

	mu        sync.Mutex
	submode   string
	config    bool
	candidate []string
	running   []string
	received  []string
	commits   []string
}

// New returns a Device with the given hostname.
func New(hostname string) *Device {
	return &Device{Hostname: hostname}
}

// Received returns every line the device read, in order.
func (d *Device) Received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.received...)
}

// Running returns the committed configuration lines.
func (d *Device) Running() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.running...)
}

// Commits returns the full commit commands that succeeded.
func (d *Device) Commits() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.commits...)
}

// InConfig reports whether the device is in a configuration mode.
func (d *Device) InConfig() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}

func (d *Device) prompt() string {
	p := "RP/0/RP0/CPU0:" + d.Hostname
	if d.config {
		p += "(" + d.submode + ")"
	}
	return p + "#"
}

// Serve runs the command loop on rw until the client goes away or sends
// `exit` from exec mode.  Every line is echoed back the way a terminal would.
func (d *Device) Serve(rw io.ReadWriter) error {
	d.mu.Lock()
	p := d.prompt()
	idle := d.Idle
	d.mu.Unlock()

	if !idle {
		if _, err := io.WriteString(rw, banner+p); err != nil {
			return err
		}
	}

	scanner := bufio.NewScanner(rw)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		if _, err := io.WriteString(rw, line+"\r\n"); err != nil {
			return err
		}

		d.mu.Lock()
		d.received = append(d.received, line)
		out, quit := d.exec(scanner, rw, line)
		p := d.prompt()
		d.mu.Unlock()

		if out != "" {
			out += "\r\n"
		}
		if _, err := io.WriteString(rw, out+p); err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

// exec runs a single line.  d.mu is held.
func (d *Device) exec(scanner *bufio.Scanner, w io.Writer, line string) (string, bool) {
	cmd := strings.TrimSpace(line)
	fields := strings.Fields(cmd)

	switch {
	case cmd == "":
		return "", false
	case cmd == "terminal length 0":
		return "", false
	case strings.HasPrefix(cmd, "terminal width"):
		return "", false
	case cmd == "show running-config":
		return d.showRunning(), false
	case cmd == "show configuration":
		if !d.config {
			return invalidInput, false
		}
		return d.showCandidate(), false
	case cmd == "show configuration failed":
		if !d.config {
			return invalidInput, false
		}
		return FailedConfigOutput, false
	}

	if !d.config {
		switch cmd {
		case "configure", "configure terminal", "configure exclusive":
			d.config = true
			d.submode = "config"
			return "", false
		case "exit":
			return "", true
		}
		return invalidInput, false
	}

	switch {
	case fields[0] == "commit":
		return d.commit(cmd), false
	case cmd == "abort":
		d.candidate = nil
		d.config = false
		return "", false
	case cmd == "end":
		return d.end(scanner, w), false
	case cmd == "exit":
		if d.submode != "config" {
			d.submode = "config"
			return "", false
		}
		return d.end(scanner, w), false
	case cmd == "root":
		d.submode = "config"
		return "", false
	case fields[0] == "interface" && len(fields) > 1:
		d.submode = "config-if"
	case fields[0] == "router" && len(fields) > 1:
		d.submode = "config-" + fields[1]
	}
	d.candidate = append(d.candidate, cmd)
	return "", false
}

func (d *Device) commit(cmd string) string {
	if d.FailCommit {
		return FailedCommitOutput
	}
	d.running = append(d.running, d.candidate...)
	d.candidate = nil
	d.commits = append(d.commits, cmd)
	return ""
}

// end leaves configuration mode, asking about uncommitted changes first.
func (d *Device) end(scanner *bufio.Scanner, w io.Writer) string {
	if len(d.candidate) == 0 {
		d.config = false
		return ""
	}

	if _, err := io.WriteString(w, uncommittedQuestion); err != nil {
		return ""
	}
	if !scanner.Scan() {
		return ""
	}
	answer := strings.TrimSpace(scanner.Text())
	d.received = append(d.received, answer)
	if _, err := io.WriteString(w, answer+"\r\n"); err != nil {
		return ""
	}

	switch answer {
	case "yes":
		if out := d.commit("commit"); out != "" {
			return out
		}
		d.config = false
	case "no":
		d.candidate = nil
		d.config = false
	}
	return ""
}

func (d *Device) showRunning() string {
	lines := append([]string{"Building configuration...", "!! IOS XR Configuration"}, d.running...)
	lines = append(lines, "end")
	return strings.Join(lines, "\r\n")
}

func (d *Device) showCandidate() string {
	lines := append([]string{"Building configuration...", "!! IOS XR Configuration"}, d.candidate...)
	lines = append(lines, "end")
	return strings.Join(lines, "\r\n")
}
