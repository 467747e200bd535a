package loudness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

var (
	ErrTranscodeFailed  = errors.New("transcoder failed")
	ErrTranscodeTimeout = errors.New("transcoder timed out")
)

// stderrTail bounds how much FFmpeg output is attached to an error.
const stderrTail = 512

// Runner runs an external command and returns everything it wrote to stderr.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

var _ Runner = ExecRunner{}

// Analyzer runs the measurement pass.
type Analyzer struct {
	ffmpegPath string
	target     Target
	timeout    time.Duration
	runner     Runner
}

// NewAnalyzer returns an Analyzer that invokes ffmpegPath through runner.
// A nil runner uses ExecRunner. A zero timeout waits indefinitely.
func NewAnalyzer(ffmpegPath string, target Target, timeout time.Duration, runner Runner) *Analyzer {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Analyzer{
		ffmpegPath: ffmpegPath,
		target:     target,
		timeout:    timeout,
		runner:     runner,
	}
}

// Measure analyzes the file at path.
func (a *Analyzer) Measure(ctx context.Context, path string) (Measurement, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	output, err := a.runner.Run(ctx, a.ffmpegPath,
		"-hide_banner",
		"-nostats",
		"-i", path,
		"-af", "loudnorm=print_format=json",
		"-f", "null",
		"-",
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Measurement{}, fmt.Errorf("%w after %s: %s", ErrTranscodeTimeout, a.timeout, path)
		}
		return Measurement{}, fmt.Errorf("%w: %w: %s", ErrTranscodeFailed, err, tail(output))
	}

	return ExtractMeasurement(output)
}

// Filter measures the file at path and returns the loudnorm filter for playback.
func (a *Analyzer) Filter(ctx context.Context, path string) (string, error) {
	m, err := a.Measure(ctx, path)
	if err != nil {
		return "", err
	}
	return FilterFor(m, a.target), nil
}

func tail(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > stderrTail {
		b = b[len(b)-stderrTail:]
	}
	return string(b)
}
