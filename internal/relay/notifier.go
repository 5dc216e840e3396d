package relay

import (
	"context"
	"log"
	"os/exec"
	"strings"
	"time"

	"github.com/rawblock/txlock-engine/internal/txlock"
)

// Notifier runs the operator-configured instantsendnotify command once per
// completed lock. spec.md §5 requires this to be launched asynchronously,
// after state mutation, with failures never affecting engine state —
// grounded on original_source's detached-thread external-notify convention
// (SPEC_FULL.md §9).
type Notifier struct {
	// Template is the command line; "%s" is substituted with the locked
	// tx's hex hash. Empty disables notification.
	Template string
	Timeout  time.Duration
}

func NewNotifier(template string) *Notifier {
	return &Notifier{Template: template, Timeout: 15 * time.Second}
}

// Notify substitutes txHash into the template and runs it in a detached
// goroutine. Safe to call even when Template is empty (no-op).
func (n *Notifier) Notify(txHash txlock.TxHash) {
	if n == nil || n.Template == "" {
		return
	}
	cmdLine := strings.ReplaceAll(n.Template, "%s", txHash.String())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.Timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "/bin/sh", "-c", cmdLine)
		if out, err := cmd.CombinedOutput(); err != nil {
			log.Printf("[relay] instantsendnotify failed for %s: %v (output: %s)", txHash, err, strings.TrimSpace(string(out)))
		}
	}()
}
