package transport

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrAuthFailed is returned by Login when the device asks for the username
// again after the password was sent.
var ErrAuthFailed = errors.New("xrcli: authentication failed")

var (
	usernamePrompt = regexp.MustCompile(`(?i)(username|login):\s*$`)
	passwordPrompt = regexp.MustCompile(`(?i)password:\s*$`)
)

// Login answers the username and password prompts of a console or telnet
// line, then waits for the exec prompt and prepares the session.  A line that
// is already logged in goes straight to the prompt.
func (c *Channel) Login(ctx context.Context, username, password string) error {
	_, idx, err := c.Expect(ctx, usernamePrompt, c.prompt)
	if err != nil {
		return fmt.Errorf("failed to find login prompt: %w", err)
	}

	if idx == 0 {
		if err := c.WriteLine(username); err != nil {
			return err
		}

		if _, _, err := c.Expect(ctx, passwordPrompt); err != nil {
			return fmt.Errorf("failed to find password prompt: %w", err)
		}
		if err := c.WriteLine(password); err != nil {
			return err
		}

		// a second username prompt means the credentials were rejected
		_, idx, err := c.Expect(ctx, usernamePrompt, c.prompt)
		if err != nil {
			return fmt.Errorf("failed to find prompt after login: %w", err)
		}
		if idx == 0 {
			return ErrAuthFailed
		}
	}

	return c.Prepare(ctx)
}
