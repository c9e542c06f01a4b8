// Package mailer implements the optional email notifier: on a
// restart, if MainConfig.MailTo is configured, a plain-text
// notification is sent through the local sendmail binary found on
// PATH.
package mailer

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/log"
)

// SendTimeout bounds how long sendmail is given to accept the
// message before it's killed.
const SendTimeout = 5 * time.Second

// Notifier sends restart/failure notifications via sendmail. A zero
// Notifier with an empty To is a no-op: Notify silently returns nil.
type Notifier struct {
	To   string
	From string
}

// New returns a Notifier for the given MainConfig mail settings.
func New(to, from string) *Notifier {
	return &Notifier{To: to, From: from}
}

// Enabled reports whether a mail destination is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.To != ""
}

// Notify sends subject/body to n.To via the sendmail binary on PATH.
// Fire-and-forget: callers run this in its own goroutine (matching
// the same bounded-worker discipline as monitor checks) so a stuck
// MTA can't block a supervision round.
func (n *Notifier) Notify(subject, body string) error {
	if !n.Enabled() {
		return nil
	}

	sendmailPath, err := exec.LookPath("sendmail")
	if err != nil {
		return fmt.Errorf("mailer: sendmail not found on PATH: %w", err)
	}

	from := n.From
	if from == "" {
		from = fmt.Sprintf("%s@%s", username(), hostname())
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", n.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	msg.WriteString("\r\n")
	msg.WriteString(body)

	cmd := exec.Command(sendmailPath, n.To)
	cmd.Stdin = &msg

	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("mailer: starting sendmail: %w", err)
	}
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mailer: sendmail failed to=%s subject=%q: %w", n.To, subject, err)
		}
		return nil
	case <-time.After(SendTimeout):
		cmd.Process.Kill()
		return fmt.Errorf("mailer: sendmail did not complete within %s, to=%s subject=%q", SendTimeout, n.To, subject)
	}
}

// NotifyAsync runs Notify in its own goroutine, logging any failure
// instead of returning it — used by the supervision loop, which must
// never block a round on mail delivery.
func (n *Notifier) NotifyAsync(subject, body string) {
	if !n.Enabled() {
		return
	}
	go func() {
		if err := n.Notify(subject, body); err != nil {
			log.Error("%s", err)
		}
	}()
}

// hostname falls back to the USER environment variable if the OS
// hostname lookup fails.
func hostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "localhost"
}

func username() string {
	if u := os.Getenv("USER"); u != "" {
		return strings.TrimSpace(u)
	}
	return "usrsvc"
}
