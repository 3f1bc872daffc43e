package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotConfigured is returned when no worker executable is set.
	ErrNotConfigured = errors.New("worker executable not configured")
	// ErrStartupTimeout is returned when the worker does not signal ready in time.
	ErrStartupTimeout = errors.New("worker startup timed out")
	// ErrRequestTimeout is returned when a call's deadline fires before its response.
	ErrRequestTimeout = errors.New("worker request timed out")
	// ErrProcessExited is returned to calls left outstanding when the worker dies.
	ErrProcessExited = errors.New("worker process exited")
	// ErrShuttingDown is returned for calls issued during shutdown.
	ErrShuttingDown = errors.New("worker client is shutting down")
)

// State is the lifecycle state of the worker process.
type State int

const (
	// StateNotStarted means no process is running; the next call spawns one.
	StateNotStarted State = iota
	// StateStarting means the process is up but has not signaled ready.
	StateStarting
	// StateReady means the worker accepts calls.
	StateReady
	// StateShuttingDown means Shutdown is in progress.
	StateShuttingDown
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Default deadlines. Startup covers model loading and is deliberately longer
// than the per-call deadline used once the worker is ready.
const (
	DefaultStartupTimeout = 45 * time.Second
	DefaultCallTimeout    = 30 * time.Second
)

// Options configures the worker process and its deadlines.
type Options struct {
	// Path is the worker executable.
	Path string
	// Args are passed to the executable.
	Args []string
	// LibraryPath is appended to LD_LIBRARY_PATH so the worker can locate
	// hardware acceleration libraries.
	LibraryPath string
	// StartupTimeout bounds the wait for the ready notification.
	StartupTimeout time.Duration
	// CallTimeout bounds each call once the worker is ready.
	CallTimeout time.Duration
}

type callResult struct {
	result json.RawMessage
	err    error
}

// pendingCall tracks one in-flight request. The deadline timer and the map
// entry are removed together; whichever of response and timeout fires first
// wins and the other is a no-op.
type pendingCall struct {
	id    int64
	done  chan callResult
	timer *time.Timer
}

// Client owns exactly one persistent worker process. It is safe for
// concurrent use; multiple calls may be in flight against the same worker.
type Client struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	readyCh chan struct{}
	pending map[int64]*pendingCall
	nextID  int64

	// writeMu serializes line writes so envelopes never interleave.
	writeMu sync.Mutex
}

// NewClient creates a client for the given worker executable. The process is
// not spawned until the first call.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = DefaultStartupTimeout
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}

	return &Client{
		opts:    opts,
		logger:  logger,
		state:   StateNotStarted,
		readyCh: make(chan struct{}),
		pending: make(map[int64]*pendingCall),
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Call sends one request and waits for its response, the per-call deadline,
// or process death, whichever comes first. The worker is spawned on demand.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.opts.Path == "" {
		return nil, ErrNotConfigured
	}

	if err := c.ensureReady(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return nil, ErrProcessExited
	}
	c.nextID++
	id := c.nextID
	call := &pendingCall{id: id, done: make(chan callResult, 1)}
	call.timer = time.AfterFunc(c.opts.CallTimeout, func() {
		c.reject(id, ErrRequestTimeout)
	})
	c.pending[id] = call
	stdin := c.stdin
	c.mu.Unlock()

	line, err := json.Marshal(Request{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	line = append(line, '\n')

	c.writeMu.Lock()
	_, err = stdin.Write(line)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("%w: writing request: %v", ErrProcessExited, err)
	}

	select {
	case res := <-call.done:
		return res.result, res.err
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

// ensureReady spawns the worker if needed and blocks until it signals ready,
// bounded by the startup timeout.
func (c *Client) ensureReady(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateReady:
		c.mu.Unlock()
		return nil
	case StateShuttingDown:
		c.mu.Unlock()
		return ErrShuttingDown
	case StateNotStarted:
		if err := c.startLocked(); err != nil {
			c.mu.Unlock()
			return err
		}
	case StateStarting:
		// Another caller is already waiting on the same gate.
	}
	ready := c.readyCh
	cmd := c.cmd
	c.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-time.After(c.opts.StartupTimeout):
		// Kill the half-started process; its exit handler resets state so a
		// later call can respawn cleanly.
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return ErrStartupTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startLocked spawns the worker process. Caller holds c.mu.
func (c *Client) startLocked() error {
	cmd := exec.Command(c.opts.Path, c.opts.Args...)
	cmd.Env = c.buildEnv()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("worker stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawning worker: %w", err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.state = StateStarting
	c.readyCh = make(chan struct{})

	c.logger.Info("worker process spawned", "path", c.opts.Path, "pid", cmd.Process.Pid)

	go c.readLoop(stdout)
	go c.logStderr(stderr)
	go func() {
		err := cmd.Wait()
		c.handleExit(err)
	}()

	return nil
}

// buildEnv returns the child environment with the acceleration library path
// appended to LD_LIBRARY_PATH.
func (c *Client) buildEnv() []string {
	env := os.Environ()
	if c.opts.LibraryPath == "" {
		return env
	}

	const key = "LD_LIBRARY_PATH="
	for i, entry := range env {
		if strings.HasPrefix(entry, key) {
			env[i] = entry + string(os.PathListSeparator) + c.opts.LibraryPath
			return env
		}
	}
	return append(env, key+c.opts.LibraryPath)
}

// readLoop parses the worker's stdout into envelopes and dispatches them.
// A partial line at the end of a read is buffered, never parsed alone.
func (c *Client) readLoop(stdout io.Reader) {
	parser := &LineParser{}
	buf := make([]byte, 4096)

	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			for _, line := range parser.Feed(buf[:n]) {
				c.dispatch(line)
			}
		}
		if err != nil {
			return
		}
	}
}

// logStderr forwards worker diagnostics to the log. stderr is never parsed
// as protocol.
func (c *Client) logStderr(stderr io.Reader) {
	parser := &LineParser{}
	buf := make([]byte, 4096)

	for {
		n, err := stderr.Read(buf)
		if n > 0 {
			for _, line := range parser.Feed(buf[:n]) {
				if len(line) > 0 {
					c.logger.Debug("worker stderr", "line", string(line))
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// dispatch routes one inbound envelope.
func (c *Client) dispatch(line []byte) {
	if len(line) == 0 {
		return
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		c.logger.Warn("dropping malformed worker message", "error", err)
		return
	}

	if resp.ID == nil {
		if resp.Method == methodReady {
			c.markReady()
			return
		}
		c.logger.Debug("ignoring worker notification", "method", resp.Method)
		return
	}

	if resp.Error != nil {
		c.resolve(*resp.ID, nil, resp.Error)
		return
	}
	c.resolve(*resp.ID, resp.Result, nil)
}

// markReady transitions Starting to Ready and releases waiting callers.
func (c *Client) markReady() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateStarting {
		return
	}
	c.state = StateReady
	close(c.readyCh)
	c.logger.Info("worker ready")
}

// resolve completes the pending call matching id. A response for an id that
// is no longer pending (already timed out or resolved) is a silent no-op.
func (c *Client) resolve(id int64, result json.RawMessage, err error) {
	c.mu.Lock()
	call, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
		call.timer.Stop()
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("discarding stale worker response", "id", id)
		return
	}
	call.done <- callResult{result: result, err: err}
}

// reject fails the pending call matching id, if still pending.
func (c *Client) reject(id int64, err error) {
	c.resolve(id, nil, err)
}

// forget drops a pending call without completing it (the caller already has
// an error in hand).
func (c *Client) forget(id int64) {
	c.mu.Lock()
	if call, ok := c.pending[id]; ok {
		delete(c.pending, id)
		call.timer.Stop()
	}
	c.mu.Unlock()
}

// handleExit rejects every outstanding call and resets state so the next
// call respawns the worker.
func (c *Client) handleExit(waitErr error) {
	c.mu.Lock()
	calls := make([]*pendingCall, 0, len(c.pending))
	for id, call := range c.pending {
		call.timer.Stop()
		calls = append(calls, call)
		delete(c.pending, id)
	}
	wasReady := c.state == StateReady
	c.state = StateNotStarted
	c.cmd = nil
	c.stdin = nil
	c.readyCh = make(chan struct{})
	c.mu.Unlock()

	if wasReady || len(calls) > 0 {
		c.logger.Warn("worker process exited",
			"error", waitErr,
			"outstanding_calls", len(calls),
		)
	} else {
		c.logger.Debug("worker process exited", "error", waitErr)
	}

	for _, call := range calls {
		call.done <- callResult{err: ErrProcessExited}
	}
}

// Shutdown issues a best-effort shutdown call, then terminates the process.
// It is safe to call from any state, including before the first call.
func (c *Client) Shutdown(ctx context.Context) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	if state == StateReady {
		callCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, _ = c.Call(callCtx, "shutdown", nil)
		cancel()
	}

	c.mu.Lock()
	cmd := c.cmd
	if cmd != nil {
		c.state = StateShuttingDown
	}
	c.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
