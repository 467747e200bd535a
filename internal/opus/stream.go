package opus

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrVoiceConnClosed = errors.New("voice connection send timeout")

// DefaultSendTimeout bounds how long a single frame may wait for the voice
// connection to accept it.
const DefaultSendTimeout = time.Minute

// StreamToVoice reads Opus frames from source and sends them to sink,
// normally a voice connection's OpusSend channel. It blocks until all frames
// are sent, ctx is done, or a frame cannot be delivered within sendTimeout.
// Returns nil on clean EOF and ctx.Err() when cancelled.
func StreamToVoice(ctx context.Context, source *FrameReader, sink chan<- []byte, sendTimeout time.Duration) error {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}

	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := source.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}

		timer.Reset(sendTimeout)
		select {
		case sink <- frame:
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return ErrVoiceConnClosed
		}
	}
}
