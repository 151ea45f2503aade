// Package notify sends HTTP notifications when a loop ends.
// The primary use case is ntfy.sh, but any HTTP webhook works.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/LISSConsulting/LISSTech.RalphGate/internal/loop"
)

// Timeout bounds one notification. The hook process exits right after
// posting, so delivery is synchronous.
const Timeout = 5 * time.Second

// Notifier posts plain-text HTTP notifications for terminal loop actions.
type Notifier struct {
	url        string
	title      string
	onComplete bool
	onStop     bool
	client     *http.Client
}

// New creates a Notifier. projectName is used as the X-Title header; if empty,
// "RalphGate" is used instead.
func New(notifURL, projectName string, onComplete, onStop bool) *Notifier {
	title := "RalphGate"
	if projectName != "" {
		title = projectName
	}
	return &Notifier{
		url:        notifURL,
		title:      title,
		onComplete: onComplete,
		onStop:     onStop,
		client:     &http.Client{Timeout: Timeout},
	}
}

// Wants reports whether action a triggers a notification.
func (n *Notifier) Wants(a loop.Action) bool {
	if n == nil || n.url == "" {
		return false
	}
	switch a {
	case loop.ActionComplete:
		return n.onComplete
	case loop.ActionStopped:
		return n.onStop
	}
	return false
}

// Notify posts message when a is a terminal action selected by the
// configured flags. It reports whether a request was sent.
func (n *Notifier) Notify(ctx context.Context, a loop.Action, message string) (bool, error) {
	if !n.Wants(a) {
		return false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, strings.NewReader(message))
	if err != nil {
		return false, fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Title", n.title)
	req.Header.Set("X-Tags", tag(a))

	resp, err := n.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("notify: post: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return true, fmt.Errorf("notify: post: unexpected status %s", resp.Status)
	}
	return true, nil
}

// tag maps an action onto an ntfy emoji tag.
func tag(a loop.Action) string {
	if a == loop.ActionComplete {
		return "white_check_mark"
	}
	return "warning"
}
