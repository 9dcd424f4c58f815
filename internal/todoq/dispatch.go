package todoq

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/todoq/internal/core/logging"
)

// Dispatcher delivers a payload to the remote agent session.
type Dispatcher interface {
	// Deliver sends the payload and returns what the remote side showed.
	Deliver(ctx context.Context, payload string) (Delivery, error)

	// LastOutput returns the tail of the agent's terminal.
	LastOutput(ctx context.Context) (string, error)
}

// Delivery is the outcome of a dispatch attempt.
type Delivery struct {
	Success bool
	Output  string
}

// DispatchError wraps a failed delivery. Transition listeners surface it as a
// warning on an otherwise successful result, never as a persistence failure.
type DispatchError struct {
	Op  string
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.Op, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// runner is the subset of executil.Executor the dispatcher needs.
type runner interface {
	Run(ctx context.Context, cmd string, args ...string) ([]byte, error)
}

// TmuxDispatcher sends keys to a tmux session, optionally over ssh.
type TmuxDispatcher struct {
	exec           runner
	session        string
	sshHost        string
	connectTimeout time.Duration
	captureLines   int
	log            zerolog.Logger
}

// TmuxOptions configures the dispatcher transport.
type TmuxOptions struct {
	// Session is the tmux session name; the agent runs in window 0.
	Session string
	// SSHHost routes tmux commands through ssh when non-empty.
	SSHHost string
	// ConnectTimeout bounds ssh connection setup.
	ConnectTimeout time.Duration
	// CaptureLines is how many pane lines LastOutput returns.
	CaptureLines int
}

// NewTmuxDispatcher creates a dispatcher targeting the given tmux session.
func NewTmuxDispatcher(exec runner, opts TmuxOptions) *TmuxDispatcher {
	if opts.Session == "" {
		opts.Session = "claude"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.CaptureLines == 0 {
		opts.CaptureLines = 5
	}
	return &TmuxDispatcher{
		exec:           exec,
		session:        opts.Session,
		sshHost:        opts.SSHHost,
		connectTimeout: opts.ConnectTimeout,
		captureLines:   opts.CaptureLines,
		log:            logging.Component("dispatch"),
	}
}

var _ Dispatcher = (*TmuxDispatcher)(nil)

func (d *TmuxDispatcher) target() string {
	return d.session + ":0"
}

// run executes a tmux command, routed through ssh when a host is configured.
func (d *TmuxDispatcher) run(ctx context.Context, op string, tmuxArgs ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, d.connectTimeout)
	defer cancel()

	var (
		cmd  string
		args []string
	)
	if d.sshHost != "" {
		cmd = "ssh"
		args = append(args,
			"-o", "ConnectTimeout="+strconv.Itoa(int(d.connectTimeout.Seconds())),
			"-o", "BatchMode=yes",
			d.sshHost, "tmux")
		args = append(args, tmuxArgs...)
	} else {
		cmd = "tmux"
		args = tmuxArgs
	}

	out, err := d.exec.Run(ctx, cmd, args...)
	if err != nil {
		return out, &DispatchError{Op: op, Err: err}
	}
	return out, nil
}

// Deliver sends the payload to the agent session followed by Enter, then
// captures the pane tail so the caller sees what the agent received.
func (d *TmuxDispatcher) Deliver(ctx context.Context, payload string) (Delivery, error) {
	if _, err := d.run(ctx, "send-keys", "send-keys", "-t", d.target(), payload, "Enter"); err != nil {
		d.log.Warn().Err(err).Str("session", d.session).Msg("delivery failed")
		return Delivery{}, err
	}

	out, err := d.LastOutput(ctx)
	if err != nil {
		// The keys went through; a failed capture degrades to empty output.
		d.log.Debug().Err(err).Msg("pane capture failed after delivery")
		return Delivery{Success: true}, nil
	}

	return Delivery{Success: true, Output: out}, nil
}

// LastOutput captures the visible pane and returns its last lines.
func (d *TmuxDispatcher) LastOutput(ctx context.Context) (string, error) {
	out, err := d.run(ctx, "capture-pane", "capture-pane", "-t", d.target(), "-p")
	if err != nil {
		return "", err
	}
	return tailLines(string(out), d.captureLines), nil
}

// SessionRunning reports whether the agent's tmux session exists.
func (d *TmuxDispatcher) SessionRunning(ctx context.Context) bool {
	_, err := d.run(ctx, "has-session", "has-session", "-t", d.session)
	return err == nil
}

func tailLines(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" || n <= 0 {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
