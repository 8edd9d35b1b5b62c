package mcp

import (
	"bufio"
	"bytes"
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
	"sync/atomic"
	"syscall"
	"time"

	"github.com/thadeucbr/assistentev4-sub000/internal/shared/logutils"
)

const (
	defaultCallTimeout      = 60 * time.Second
	defaultMaxResponseBytes = 16 << 20
	stderrTailBytes         = 4096
	waitDelay               = 2 * time.Second
)

// Runner performs one JSON-RPC call against the tool host.
type Runner interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// StdioConfig configures a StdioRunner.
type StdioConfig struct {
	// Command is the tool host executable; Args are passed verbatim.
	Command string
	Args    []string

	// Env entries ("KEY=VALUE") are appended to the current environment.
	Env []string

	// Timeout bounds a whole call, process start to response. Zero means
	// 60 seconds.
	Timeout time.Duration

	// Handshake sends the MCP initialize request and the initialized
	// notification ahead of every call.
	Handshake bool

	// MaxResponseBytes caps a single stdout line. Zero means 16 MiB.
	MaxResponseBytes int

	Logger *slog.Logger
}

// StdioRunner spawns the tool host once per call, writes newline-delimited
// JSON-RPC to its stdin, closes stdin and reads stdout until it sees the
// response carrying the request id. Lines that are not JSON or that carry
// another id are skipped.
type StdioRunner struct {
	config StdioConfig
	logger *slog.Logger
	nextID atomic.Int64
}

// NewStdioRunner creates a runner for cfg.
func NewStdioRunner(cfg StdioConfig) *StdioRunner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCallTimeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaultMaxResponseBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioRunner{config: cfg, logger: logger}
}

// Call implements Runner.
func (r *StdioRunner) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := r.nextID.Add(1)

	var in bytes.Buffer
	if r.config.Handshake {
		initReq := NewRequest(r.nextID.Add(1), "initialize", map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "assistente", "version": "1.0"},
		})
		if err := writeLine(&in, initReq); err != nil {
			return nil, err
		}
		if err := writeLine(&in, NewNotification("notifications/initialized", nil)); err != nil {
			return nil, err
		}
	}
	if err := writeLine(&in, NewRequest(id, method, params)); err != nil {
		return nil, err
	}

	r.logger.Log(ctx, logutils.LevelTrace, "tool host request",
		"method", method, "id", id, "json", in.String())

	callCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(callCtx, r.config.Command, r.config.Args...)
	cmd.Env = append(os.Environ(), r.config.Env...)
	cmd.Stdin = &in
	cmd.WaitDelay = waitDelay

	stderr := &stderrTail{logger: r.logger, max: stderrTailBytes}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, syscall.E2BIG) {
			return nil, fmt.Errorf("start tool host: %w: %w", ErrPayloadTooLarge, err)
		}
		return nil, fmt.Errorf("start tool host %s: %w", r.config.Command, err)
	}

	resp, readErr := r.readResponse(ctx, stdout, id)
	if resp != nil || (readErr != nil && !errors.Is(readErr, io.EOF)) {
		// Either the answer is in or stdout is unusable; a host that is
		// still running is killed so Wait does not block on a full pipe.
		cancel()
	}
	waitErr := cmd.Wait()

	if resp != nil {
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}

	if errors.Is(readErr, ErrPayloadTooLarge) {
		return nil, fmt.Errorf("read tool host stdout: %w", readErr)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%s after %s: %w", method, r.config.Timeout, ErrTimeout)
	}
	if readErr != nil && !errors.Is(readErr, io.EOF) {
		return nil, fmt.Errorf("read tool host stdout: %w", readErr)
	}
	if waitErr != nil {
		return nil, &ExitError{Err: waitErr, Stderr: stderr.String()}
	}
	return nil, fmt.Errorf("%s (id %d): %w", method, id, ErrNoResponse)
}

// readResponse scans stdout until a response carrying id arrives. It
// returns (nil, err) at EOF or on a read failure.
func (r *StdioRunner) readResponse(ctx context.Context, stdout io.Reader, id int64) (*Response, error) {
	br := bufio.NewReaderSize(stdout, 64*1024)
	for {
		line, err := readLine(br, r.config.MaxResponseBytes)
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var resp Response
			if jsonErr := json.Unmarshal(trimmed, &resp); jsonErr != nil {
				r.logger.Debug("skipping non-JSON line from tool host", "line", truncate(string(trimmed), 200))
			} else if resp.matches(id) {
				r.logger.Log(ctx, logutils.LevelTrace, "tool host response", "id", id, "json", string(trimmed))
				return &resp, nil
			} else {
				r.logger.Debug("skipping unmatched tool host message", "id", string(resp.ID))
			}
		}
		if err != nil {
			return nil, err
		}
	}
}

// readLine reads one '\n'-terminated line, failing with ErrPayloadTooLarge
// once it grows past max bytes.
func readLine(br *bufio.Reader, max int) ([]byte, error) {
	var line []byte
	for {
		chunk, err := br.ReadSlice('\n')
		line = append(line, chunk...)
		if max > 0 && len(line) > max {
			return nil, fmt.Errorf("response line exceeds %d bytes (maxBuffer): %w", max, ErrPayloadTooLarge)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, err
	}
}

func writeLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// stderrTail logs every stderr line at debug level and keeps the last max
// bytes for error reporting.
type stderrTail struct {
	logger *slog.Logger
	max    int

	mu      sync.Mutex
	buf     []byte
	partial []byte
}

func (s *stderrTail) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = append(s.buf, p...)
	if len(s.buf) > s.max {
		s.buf = s.buf[len(s.buf)-s.max:]
	}

	s.partial = append(s.partial, p...)
	for {
		i := bytes.IndexByte(s.partial, '\n')
		if i < 0 {
			break
		}
		if line := strings.TrimSpace(string(s.partial[:i])); line != "" {
			s.logger.Debug("tool host stderr", "line", line)
		}
		s.partial = s.partial[i+1:]
	}
	return len(p), nil
}

func (s *stderrTail) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(string(s.buf))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
