package opus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/jonas747/ogg"
)

var ErrEncodeFailed = errors.New("ffmpeg opus encode failed")

const stderrTail = 512

// Encode runs FFmpeg over the file at inputPath, applies filter (if not
// empty), transcodes it to Opus, and returns an io.ReadCloser that produces
// length-prefixed Opus frames. The caller should read until EOF. If FFmpeg
// exits with an error, the final read returns an error wrapping
// ErrEncodeFailed. The returned io.ReadCloser must be closed to clean up the
// FFmpeg process.
func Encode(ctx context.Context, ffmpegPath, inputPath, filter string) (io.ReadCloser, error) {
	ffmpeg := exec.CommandContext(ctx, ffmpegPath, encodeArgs(inputPath, filter)...)

	var stderr bytes.Buffer
	ffmpeg.Stderr = &stderr

	stdout, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := ffmpeg.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	pr, pw := io.Pipe()
	done := make(chan struct{})

	go func() {
		defer close(done)

		demuxErr := demux(stdout, pw)
		if demuxErr != nil {
			// Drain so FFmpeg is never blocked writing to a full pipe.
			io.Copy(io.Discard, stdout)
		}

		if waitErr := ffmpeg.Wait(); waitErr != nil && ctx.Err() == nil && demuxErr == nil {
			pw.CloseWithError(fmt.Errorf("%w: %v: %s", ErrEncodeFailed, waitErr, tail(stderr.String())))
			return
		}
		pw.CloseWithError(demuxErr)
	}()

	return &encodeCloser{ReadCloser: pr, cmd: ffmpeg, done: done}, nil
}

func encodeArgs(inputPath, filter string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", inputPath,
		"-vn",
		"-map", "0:a",
	}
	if filter != "" {
		args = append(args, "-af", filter)
	}
	return append(args,
		"-acodec", "libopus",
		"-f", "ogg",
		"-vbr", "on",
		"-compression_level", "10",
		"-ar", "48000",
		"-ac", "2",
		"-b:a", "64000",
		"-application", "audio",
		"-frame_duration", "20",
		"-packet_loss", "1",
		"-threads", "0",
		"pipe:1",
	)
}

// demux copies the Opus packets of an Ogg stream to w as length-prefixed
// frames. A clean end of stream returns nil.
func demux(r io.Reader, w io.Writer) error {
	decoder := ogg.NewPacketDecoder(ogg.NewDecoder(r))

	// Skip the OpusHead and OpusTags packets.
	skip := 2
	for {
		packet, _, err := decoder.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
		if skip > 0 {
			skip--
			continue
		}

		if err := WriteFrame(w, packet); err != nil {
			return err
		}
	}
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		return s[len(s)-stderrTail:]
	}
	return s
}

// encodeCloser wraps the pipe reader and ensures the FFmpeg process is cleaned up.
type encodeCloser struct {
	io.ReadCloser
	cmd  *exec.Cmd
	done chan struct{}
}

func (e *encodeCloser) Close() error {
	err := e.ReadCloser.Close()
	// Kill FFmpeg if still running (e.g. pipe closed early).
	if e.cmd.Process != nil {
		e.cmd.Process.Kill()
	}
	<-e.done
	return err
}

// FFmpegEncoder binds Encode to an FFmpeg binary.
type FFmpegEncoder struct {
	Path string
}

func (e FFmpegEncoder) Encode(ctx context.Context, inputPath, filter string) (io.ReadCloser, error) {
	return Encode(ctx, e.Path, inputPath, filter)
}
