// Package session runs an external command while answering the interactive
// questions it asks on its terminal output.
//
// The child's stdout and stderr are merged into one stream. Everything read
// is appended to an accumulated buffer that is matched against a prompt
// registry after every read; prompts often arrive without a trailing newline
// or split over several writes, so matching only the newest line is not
// enough. On a match the canned response is written to the child's stdin and
// the buffer is cleared.
//
// Known liveness risk: a child that waits for input no rule recognises
// blocks forever unless an idle timeout is configured.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"astra-setup/internal/logger"
	"astra-setup/internal/prompt"
)

// DefaultMaxBuffer bounds the accumulated output kept for prompt matching.
const DefaultMaxBuffer = 64 * 1024

// ErrIdleTimeout is returned when the child produced no output for longer
// than the configured idle timeout and was killed.
var ErrIdleTimeout = errors.New("child process produced no output within the idle timeout")

// Command is an external command line.
type Command struct {
	Name string
	Args []string
	// Env entries ("KEY=value") are appended to the current environment.
	Env []string
	Dir string
}

func (c Command) String() string {
	parts := append([]string{c.Name}, c.Args...)
	s := strings.Join(parts, " ")
	if len(c.Env) > 0 {
		s = strings.Join(c.Env, " ") + " " + s
	}
	return s
}

// Result is the outcome of one command. Err is set when the command could
// not be run to completion (spawn failure, I/O error, cancellation, idle
// timeout); a command that ran and exited non-zero only sets ExitCode.
type Result struct {
	ExitCode int
	Err      error
}

// OK reports whether the command ran and exited zero.
func (r Result) OK() bool { return r.Err == nil && r.ExitCode == 0 }

// Sink receives the audit trail of a session.
type Sink interface {
	// Line is called once per line of child output.
	Line(line string)
	// Reply is called for every response written to the child.
	Reply(kind prompt.Kind, response string)
}

// LogSink writes the audit trail through the logger.
type LogSink struct{}

func (LogSink) Line(line string) { logger.Line("  | %s\n", line) }

func (LogSink) Reply(kind prompt.Kind, response string) {
	logger.Reply("[REPLY] %s -> %q\n", kind, response)
}

// Options configures a Runner.
type Options struct {
	// DryRun suppresses process execution; Run logs a [DRY] marker and
	// reports success.
	DryRun bool
	// IdleTimeout kills a child that stays silent this long. Zero waits forever.
	IdleTimeout time.Duration
	// MaxBuffer bounds the accumulated output; zero means DefaultMaxBuffer.
	MaxBuffer int
	// Sink receives child output and replies; nil means LogSink.
	Sink Sink
}

// Runner executes one command at a time.
type Runner struct {
	registry *prompt.Registry
	opts     Options
	mu       sync.Mutex
}

// NewRunner returns a runner answering prompts from registry.
func NewRunner(registry *prompt.Registry, opts Options) *Runner {
	if opts.MaxBuffer <= 0 {
		opts.MaxBuffer = DefaultMaxBuffer
	}
	if opts.Sink == nil {
		opts.Sink = LogSink{}
	}
	return &Runner{registry: registry, opts: opts}
}

// DryRun reports whether the runner is in rehearsal mode.
func (r *Runner) DryRun() bool { return r.opts.DryRun }

// Run executes c and answers its prompts until it exits. Failures are logged
// and returned in the Result; Run never panics on a misbehaving child.
// Cancelling ctx kills the child and returns promptly.
func (r *Runner) Run(ctx context.Context, c Command) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.opts.DryRun {
		logger.Dry("[DRY] Would run: %s\n", c)
		return Result{}
	}
	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1, Err: err}
	}

	logger.Debug("[DEBUG] Running command: %s\n", c)
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Dir = c.Dir
	configureProcess(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return r.failed(c, fmt.Errorf("create stdin pipe: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return r.failed(c, fmt.Errorf("create stdout pipe: %w", err))
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return r.failed(c, fmt.Errorf("start %s: %w", c.Name, err))
	}

	s := &session{
		registry:  r.registry,
		sink:      r.opts.Sink,
		stdin:     stdin,
		maxBuffer: r.opts.MaxBuffer,
	}
	res := r.drive(ctx, cmd, stdout, s)
	_ = stdin.Close()
	if res.Err != nil {
		logger.Error("[ERROR] %s: %v\n", c.Name, res.Err)
	} else if res.ExitCode != 0 {
		logger.Warn("[WARN] %s exited with code %d\n", c.Name, res.ExitCode)
	}
	return res
}

func (r *Runner) failed(c Command, err error) Result {
	logger.Error("[ERROR] Failed to run %s: %v\n", c.Name, err)
	return Result{ExitCode: -1, Err: err}
}

// drive is the session loop. The reader goroutine only forwards chunks; the
// single blocking point is the select below, which also observes
// cancellation and the idle timeout.
func (r *Runner) drive(ctx context.Context, cmd *exec.Cmd, stdout io.Reader, s *session) Result {
	chunks := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go pump(stdout, chunks, done)

	var idle <-chan time.Time
	var timer *time.Timer
	if r.opts.IdleTimeout > 0 {
		timer = time.NewTimer(r.opts.IdleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			s.flush()
			stop(cmd)
			return Result{ExitCode: -1, Err: ctx.Err()}

		case <-idle:
			s.flush()
			stop(cmd)
			return Result{ExitCode: -1, Err: fmt.Errorf("%w (%s)", ErrIdleTimeout, r.opts.IdleTimeout)}

		case chunk, ok := <-chunks:
			if !ok {
				s.flush()
				return wait(cmd)
			}
			if err := s.feed(chunk); err != nil {
				stop(cmd)
				return Result{ExitCode: -1, Err: err}
			}
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(r.opts.IdleTimeout)
			}
		}
	}
}

// pump forwards raw reads until EOF or until done is closed.
func pump(r io.Reader, out chan<- string, done <-chan struct{}) {
	defer close(out)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case out <- string(buf[:n]):
			case <-done:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				logger.Debug("[DEBUG] read child output: %v\n", err)
			}
			return
		}
	}
}

func wait(cmd *exec.Cmd) Result {
	err := cmd.Wait()
	if err == nil {
		return Result{}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{ExitCode: exitErr.ExitCode()}
	}
	return Result{ExitCode: -1, Err: fmt.Errorf("wait: %w", err)}
}

func stop(cmd *exec.Cmd) {
	if err := killProcess(cmd); err != nil {
		logger.Warn("[WARN] Failed to kill %s: %v\n", cmd.Path, err)
	}
	_ = cmd.Wait()
}

// session is the accumulate, match, clear-on-match state machine.
type session struct {
	registry  *prompt.Registry
	sink      Sink
	stdin     io.Writer
	maxBuffer int

	buffer  string // text since the last match
	partial string // current line, not yet terminated
}

func (s *session) feed(chunk string) error {
	s.buffer += chunk
	s.partial += chunk
	for {
		i := strings.IndexByte(s.partial, '\n')
		if i < 0 {
			break
		}
		s.sink.Line(strings.TrimRight(s.partial[:i], "\r"))
		s.partial = s.partial[i+1:]
	}
	s.trim()

	kind, ok := s.registry.Match(s.buffer)
	if !ok {
		return nil
	}
	// The prompt itself usually has no newline yet.
	s.flush()
	response := s.registry.ResponseFor(kind)
	s.buffer = ""
	if _, err := io.WriteString(s.stdin, response+"\n"); err != nil {
		// A child that closed its stdin was only printing prompt-like text.
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed) {
			logger.Debug("[DEBUG] %s prompt not consumed: %v\n", kind, err)
			return nil
		}
		return fmt.Errorf("answer %s prompt: %w", kind, err)
	}
	s.sink.Reply(kind, response)
	return nil
}

// flush emits the unterminated line, if any.
func (s *session) flush() {
	if s.partial != "" {
		s.sink.Line(strings.TrimRight(s.partial, "\r"))
		s.partial = ""
	}
}

// trim keeps the newest maxBuffer bytes, starting on a rune boundary.
func (s *session) trim() {
	if len(s.buffer) <= s.maxBuffer {
		return
	}
	cut := len(s.buffer) - s.maxBuffer
	for cut < len(s.buffer) && !utf8.RuneStart(s.buffer[cut]) {
		cut++
	}
	s.buffer = s.buffer[cut:]
	// partial is always a suffix of buffer.
	if len(s.partial) > len(s.buffer) {
		s.partial = s.partial[len(s.partial)-len(s.buffer):]
	}
}
