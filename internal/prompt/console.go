// Package prompt shows the device code to the user and waits until they confirm.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cli/browser"
	"go.uber.org/zap"

	"github.com/waabox/devicelogin/internal/auth"
)

// Opener opens a URL for the user. Failures are cosmetic and never abort the flow.
type Opener func(url string) error

// OpenBrowser opens url in the system's default browser.
func OpenBrowser(url string) error {
	return browser.OpenURL(url)
}

// NoBrowser is an Opener that does nothing, for headless sessions.
func NoBrowser(string) error {
	return nil
}

// Console prompts on a line-oriented terminal: it prints the code, tries to open
// the browser and blocks until one line is read.
type Console struct {
	in   *bufio.Reader
	out  io.Writer
	open Opener
	now  func() time.Time
	log  *zap.SugaredLogger
}

// NewConsole creates a Console reading confirmation from in and writing instructions to out.
func NewConsole(in io.Reader, out io.Writer, open Opener, log *zap.SugaredLogger) *Console {
	if open == nil {
		open = NoBrowser
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Console{
		in:   bufio.NewReader(in),
		out:  out,
		open: open,
		now:  time.Now,
		log:  log,
	}
}

// Prompt displays the verification URI and user code and waits for Enter.
// End of input counts as confirmation so the flow also runs with a closed stdin.
// Cancelling ctx returns immediately; the pending read is abandoned.
func (c *Console) Prompt(ctx context.Context, code auth.DeviceCodeResponse) error {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "=== GitHub Device Code Authentication ===")
	fmt.Fprintf(c.out, "Please visit %s and enter the following code when prompted:\n", code.DisplayURI())
	fmt.Fprintf(c.out, "\n    %s\n\n", code.UserCode)
	if d := code.ExpiresIn(c.now()); d > 0 {
		fmt.Fprintf(c.out, "This code will expire in %d seconds. Press Enter once you've submitted it.\n", int(d.Seconds()))
	} else {
		fmt.Fprintln(c.out, "Press Enter once you've submitted it.")
	}

	if err := c.open(code.BrowserURL()); err != nil {
		c.log.Debugw("could not open browser", "url", code.BrowserURL(), "error", err)
	}

	read := make(chan error, 1)
	go func() {
		_, err := c.in.ReadString('\n')
		read <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-read:
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading confirmation: %w", err)
		}
		return ctx.Err()
	}
}
