// Package hook runs an external command whenever the recognised activity
// changes.
package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrEmptyCommand is returned by NewExecutor for a blank command line.
var ErrEmptyCommand = errors.New("hook command is empty")

// Request is written to the hook's stdin as JSON.
type Request struct {
	Label    string    `json:"label"`
	Previous string    `json:"previous,omitempty"`
	At       time.Time `json:"at"`
}

// Response is the optional JSON a hook prints on stdout. A hook that prints
// nothing and exits zero succeeded.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Executor runs one command line with a timeout.
type Executor struct {
	path    string
	args    []string
	timeout time.Duration
}

// NewExecutor splits command on whitespace into a program and arguments.
func NewExecutor(command string, timeout time.Duration) (*Executor, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, ErrEmptyCommand
	}
	return &Executor{
		path:    fields[0],
		args:    fields[1:],
		timeout: timeout,
	}, nil
}

// Execute runs the command with req on stdin and parses its stdout.
func (e *Executor) Execute(ctx context.Context, req *Request) (*Response, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.path, e.args...)
	cmd.Stdin = bytes.NewReader(reqJSON)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("hook execution timeout after %s", e.timeout)
	}

	if err != nil {
		if s := strings.TrimSpace(stderr.String()); s != "" {
			return nil, fmt.Errorf("hook execution failed: %w, stderr: %s", err, s)
		}
		return nil, fmt.Errorf("hook execution failed: %w", err)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return &Response{Success: true}, nil
	}

	var response Response
	if err := json.Unmarshal(out, &response); err != nil {
		return nil, fmt.Errorf("failed to parse hook response: %w, stdout: %s", err, out)
	}
	if !response.Success {
		return &response, fmt.Errorf("hook reported failure: %s", response.Error)
	}
	return &response, nil
}
