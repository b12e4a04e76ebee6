// Package less compiles Less sources by running the less npm package in an
// external JavaScript runtime (node or bun).
package less

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

//go:embed scripts/less-worker.js
var workerScript []byte

// Request is one compilation.
type Request struct {
	Source            string
	Filename          string
	ModifyVars        map[string]string
	JavascriptEnabled bool
	// Paths are extra @import search directories.
	Paths []string
}

// Compiler turns Less source into CSS.
type Compiler interface {
	Compile(ctx context.Context, req Request) (string, error)
}

// CompilerFunc adapts a plain function to Compiler.
type CompilerFunc func(ctx context.Context, req Request) (string, error)

// Compile calls f(ctx, req).
func (f CompilerFunc) Compile(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ErrNoRuntime is returned when neither bun nor node is on PATH.
var ErrNoRuntime = errors.New("no JavaScript runtime (bun or node) found on PATH")

// CompileError is a Less compilation failure.
type CompileError struct {
	Filename string
	Line     int
	Message  string
	Err      error
}

func (e *CompileError) Error() string {
	loc := e.Filename
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Filename, e.Line)
	}
	if loc == "" {
		return "less: " + e.Message
	}
	return fmt.Sprintf("less: %s: %s", loc, e.Message)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

type workerRequest struct {
	Source            string            `json:"source"`
	Filename          string            `json:"filename"`
	ModifyVars        map[string]string `json:"modifyVars,omitempty"`
	JavascriptEnabled bool              `json:"javascriptEnabled"`
	Paths             []string          `json:"paths,omitempty"`
}

type workerResponse struct {
	CSS   string `json:"css"`
	Error *struct {
		Message  string `json:"message"`
		Filename string `json:"filename"`
		Line     int    `json:"line"`
	} `json:"error"`
}

// FindRuntime returns the path of bun or node, preferring bun.
func FindRuntime() (string, bool) {
	for _, rt := range []string{"bun", "node"} {
		if p, err := exec.LookPath(rt); err == nil {
			return p, true
		}
	}
	return "", false
}

// NodeCompiler runs each compilation as a short-lived runtime process.
// The worker script is written to a temp file on first use; call Close to
// remove it.
type NodeCompiler struct {
	runtime string
	root    string
	logger  *slog.Logger

	once       sync.Once
	scriptPath string
	scriptErr  error
}

// NewNodeCompiler returns a compiler using runtime (empty = FindRuntime).
// The less package is resolved from root/node_modules.
func NewNodeCompiler(runtime, root string, logger *slog.Logger) (*NodeCompiler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if runtime == "" {
		rt, ok := FindRuntime()
		if !ok {
			return nil, ErrNoRuntime
		}
		runtime = rt
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}
	return &NodeCompiler{runtime: runtime, root: abs, logger: logger}, nil
}

// Compile renders req.Source. Worker failures are returned as *CompileError.
func (c *NodeCompiler) Compile(ctx context.Context, req Request) (string, error) {
	script, err := c.script()
	if err != nil {
		return "", err
	}

	input, err := json.Marshal(workerRequest{
		Source:            req.Source,
		Filename:          req.Filename,
		ModifyVars:        req.ModifyVars,
		JavascriptEnabled: req.JavascriptEnabled,
		Paths:             req.Paths,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal less request: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.runtime, script)
	cmd.Dir = c.root
	cmd.Env = append(os.Environ(), "NODE_PATH="+filepath.Join(c.root, "node_modules"))
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()

	var resp workerResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		if runErr != nil {
			return "", &CompileError{Filename: req.Filename, Message: stderr.String(), Err: runErr}
		}
		return "", fmt.Errorf("failed to parse less worker output: %w", err)
	}
	if resp.Error != nil {
		return "", &CompileError{
			Filename: resp.Error.Filename,
			Line:     resp.Error.Line,
			Message:  resp.Error.Message,
			Err:      runErr,
		}
	}
	if runErr != nil {
		return "", &CompileError{Filename: req.Filename, Message: stderr.String(), Err: runErr}
	}

	c.logger.Debug("compiled less",
		"file", req.Filename,
		"runtime", filepath.Base(c.runtime),
		"ms", time.Since(start).Milliseconds())

	return resp.CSS, nil
}

// Close removes the temp worker script.
func (c *NodeCompiler) Close() error {
	if c.scriptPath == "" {
		return nil
	}
	return os.Remove(c.scriptPath)
}

func (c *NodeCompiler) script() (string, error) {
	c.once.Do(func() {
		f, err := os.CreateTemp("", "dyntheme-less-*.js")
		if err != nil {
			c.scriptErr = fmt.Errorf("failed to create temp file: %w", err)
			return
		}
		if _, err := f.Write(workerScript); err != nil {
			f.Close()
			os.Remove(f.Name())
			c.scriptErr = fmt.Errorf("failed to write less worker: %w", err)
			return
		}
		if err := f.Close(); err != nil {
			c.scriptErr = fmt.Errorf("failed to write less worker: %w", err)
			return
		}
		c.scriptPath = f.Name()
	})
	return c.scriptPath, c.scriptErr
}
