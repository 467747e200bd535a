package opus

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func encodeFrames(t *testing.T, frames ...[]byte) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	for _, f := range frames {
		if err := WriteFrame(&buf, f); err != nil {
			t.Fatalf("WriteFrame() error = %v", err)
		}
	}
	return &buf
}

func TestFrameRoundTrip(t *testing.T) {
	frames := [][]byte{{0x01, 0x02}, {}, bytes.Repeat([]byte{0xff}, 300)}
	r := NewFrameReader(encodeFrames(t, frames...))

	var got [][]byte
	for {
		frame, err := r.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadFrame() error = %v", err)
		}
		got = append(got, frame)
	}

	if diff := cmp.Diff(frames, got); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	buf := encodeFrames(t, []byte{1, 2, 3, 4})
	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-1])

	_, err := NewFrameReader(truncated).ReadFrame()
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadFrame() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestWriteFrameTooLarge(t *testing.T) {
	err := WriteFrame(io.Discard, make([]byte, 1<<16))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("WriteFrame() error = %v, want ErrFrameTooLarge", err)
	}
}

func TestStreamToVoice(t *testing.T) {
	frames := [][]byte{{1}, {2}, {3}}
	sink := make(chan []byte, len(frames))

	err := StreamToVoice(context.Background(), NewFrameReader(encodeFrames(t, frames...)), sink, time.Second)
	if err != nil {
		t.Fatalf("StreamToVoice() error = %v", err)
	}
	close(sink)

	var got [][]byte
	for f := range sink {
		got = append(got, f)
	}
	if diff := cmp.Diff(frames, got); diff != "" {
		t.Errorf("sent frames mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamToVoiceSendTimeout(t *testing.T) {
	sink := make(chan []byte)

	err := StreamToVoice(context.Background(), NewFrameReader(encodeFrames(t, []byte{1})), sink, 10*time.Millisecond)
	if !errors.Is(err, ErrVoiceConnClosed) {
		t.Errorf("StreamToVoice() error = %v, want ErrVoiceConnClosed", err)
	}
}

func TestStreamToVoiceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := make(chan []byte)

	errCh := make(chan error, 1)
	go func() {
		errCh <- StreamToVoice(ctx, NewFrameReader(encodeFrames(t, []byte{1}, []byte{2})), sink, time.Minute)
	}()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("StreamToVoice() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("StreamToVoice did not return after cancellation")
	}
}

func TestEncodeArgs(t *testing.T) {
	tests := []struct {
		name      string
		filter    string
		wantAF    bool
		wantInput string
	}{
		{name: "with filter", filter: "loudnorm=i=-15", wantAF: true, wantInput: "clip.ogg"},
		{name: "without filter", filter: "", wantAF: false, wantInput: "clip.ogg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := encodeArgs("clip.ogg", tt.filter)

			var gotAF bool
			for i, a := range args {
				if a == "-af" {
					gotAF = true
					if args[i+1] != tt.filter {
						t.Errorf("-af value = %q, want %q", args[i+1], tt.filter)
					}
				}
				if a == "-i" && args[i+1] != tt.wantInput {
					t.Errorf("-i value = %q, want %q", args[i+1], tt.wantInput)
				}
			}
			if gotAF != tt.wantAF {
				t.Errorf("-af present = %v, want %v", gotAF, tt.wantAF)
			}
			if args[len(args)-1] != "pipe:1" {
				t.Errorf("last arg = %q, want pipe:1", args[len(args)-1])
			}
		})
	}
}

func TestTail(t *testing.T) {
	long := string(bytes.Repeat([]byte("x"), stderrTail+10))
	if got := tail(long); len(got) != stderrTail {
		t.Errorf("len(tail()) = %d, want %d", len(got), stderrTail)
	}
	if got := tail("  short\n"); got != "short" {
		t.Errorf("tail() = %q, want %q", got, "short")
	}
}
