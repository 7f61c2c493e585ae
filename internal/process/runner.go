package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"

	"github.com/mossy-p/castiq/internal/apperr"
	"github.com/rs/zerolog/log"
)

const defaultTailLines = 50

// Observer receives each diagnostic line as the process emits it.
type Observer func(line string)

// Runner launches an external executable and waits for it to exit.
type Runner interface {
	Run(ctx context.Context, executable string, args []string, observe Observer) error
}

// ExecRunner runs commands via os/exec and streams their stderr line by line.
type ExecRunner struct {
	// TailLines bounds how many trailing stderr lines are kept for errors.
	TailLines int
}

func NewExecRunner(tailLines int) *ExecRunner {
	if tailLines <= 0 {
		tailLines = defaultTailLines
	}
	return &ExecRunner{TailLines: tailLines}
}

// Run returns *apperr.ExternalProcessError on spawn failure or a non-zero exit.
func (r *ExecRunner) Run(ctx context.Context, executable string, args []string, observe Observer) error {
	l := log.With().Str("cmd", executable).Logger()

	cmd := exec.CommandContext(ctx, executable, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &apperr.ExternalProcessError{Executable: executable, SpawnErr: err}
	}

	l.Debug().Strs("args", args).Msg("Starting external process")
	if err := cmd.Start(); err != nil {
		return &apperr.ExternalProcessError{Executable: executable, SpawnErr: err}
	}

	tail := newRing(r.tailLines())
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLines)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		tail.add(line)
		l.Debug().Msg(line)
		if observe != nil {
			observe(line)
		}
	}
	if err := scanner.Err(); err != nil {
		// keep draining so the process cannot block on a full pipe
		_, _ = io.Copy(io.Discard, stderr)
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			l.Warn().Int("exit_code", exitErr.ExitCode()).Msg("External process failed")
			return &apperr.ExternalProcessError{
				Executable:  executable,
				ExitCode:    exitErr.ExitCode(),
				Diagnostics: tail.lines(),
			}
		}
		return &apperr.ExternalProcessError{Executable: executable, ExitCode: -1, Diagnostics: tail.lines(), SpawnErr: err}
	}

	l.Debug().Msg("External process finished")
	return nil
}

func (r *ExecRunner) tailLines() int {
	if r.TailLines <= 0 {
		return defaultTailLines
	}
	return r.TailLines
}

// scanLines splits on \n or \r so ffmpeg progress updates arrive as lines.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// ring keeps the last n lines.
type ring struct {
	buf  []string
	next int
	full bool
}

func newRing(n int) *ring {
	return &ring{buf: make([]string, n)}
}

func (r *ring) add(s string) {
	r.buf[r.next] = s
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) lines() []string {
	if !r.full {
		return append([]string(nil), r.buf[:r.next]...)
	}
	out := make([]string, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}
