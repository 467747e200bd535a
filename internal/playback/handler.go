package playback

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/glizzus/cobot/internal/catalog"
	"github.com/glizzus/cobot/internal/datalayer"
	"github.com/glizzus/cobot/internal/loudness"
	"github.com/glizzus/cobot/internal/opus"
	"github.com/glizzus/cobot/internal/resolve"
	"github.com/glizzus/cobot/internal/voice"
)

type CatalogSource interface {
	Load() *catalog.Catalog
}

type Resolver interface {
	Resolve(query string, c *catalog.Catalog) resolve.Result
}

type Store interface {
	Fetch(ctx context.Context, name, scratchDir string) (string, error)
}

// Normalizer measures a file and returns the filter that brings it to the
// target loudness.
type Normalizer interface {
	Filter(ctx context.Context, path string) (string, error)
}

// Encoder turns a file into length-prefixed Opus frames with filter applied.
type Encoder interface {
	Encode(ctx context.Context, inputPath, filter string) (io.ReadCloser, error)
}

type Player interface {
	Play(guildID, channelID, title string, frames io.ReadCloser) error
}

// Recorder observes every finished request.
type Recorder interface {
	Record(ctx context.Context, req Request, out Outcome)
}

// DefaultStartTimeout bounds how long the encoder may take to produce its
// first frame.
const DefaultStartTimeout = 30 * time.Second

type Deps struct {
	Catalog      CatalogSource
	Resolver     Resolver
	Store        Store
	Normalizer   Normalizer
	Encoder      Encoder
	Player       Player
	Presence     voice.StateReader
	ScratchDir   string
	StartTimeout time.Duration
	Recorder     Recorder
}

// Handler runs playback requests through the state machine
// validate, resolve, fetch, normalize, play.
type Handler struct {
	catalog      CatalogSource
	resolver     Resolver
	store        Store
	normalizer   Normalizer
	encoder      Encoder
	player       Player
	presence     voice.StateReader
	scratchDir   string
	startTimeout time.Duration
	recorder     Recorder
	now          func() time.Time
}

func NewHandler(deps Deps) *Handler {
	startTimeout := deps.StartTimeout
	if startTimeout <= 0 {
		startTimeout = DefaultStartTimeout
	}
	return &Handler{
		catalog:      deps.Catalog,
		resolver:     deps.Resolver,
		store:        deps.Store,
		normalizer:   deps.Normalizer,
		encoder:      deps.Encoder,
		player:       deps.Player,
		presence:     deps.Presence,
		scratchDir:   deps.ScratchDir,
		startTimeout: startTimeout,
		recorder:     deps.Recorder,
		now:          time.Now,
	}
}

// run tracks the progress of one request.
type run struct {
	h          *Handler
	req        Request
	out        Outcome
	stateStart time.Time
}

func (r *run) enter(state State) {
	now := r.h.now()
	if r.out.State != Idle {
		r.out.Stages = append(r.out.Stages, StageTiming{State: r.out.State, Duration: now.Sub(r.stateStart)})
	}
	r.out.State = state
	r.stateStart = now
}

func (r *run) fail(kind Kind, err error) Outcome {
	r.enter(Failed)
	r.out.Err = &Error{Kind: kind, Err: err}
	return r.out
}

// Handle runs req to a terminal state exactly once. It never panics; an
// unexpected failure becomes an Internal outcome.
func (h *Handler) Handle(ctx context.Context, req Request) (out Outcome) {
	r := &run{h: h, req: req, out: Outcome{State: Idle, Query: req.Query}}

	defer func() {
		if p := recover(); p != nil {
			slog.Error("Recovered from panic in playback handler",
				"guildID", req.GuildID, "panic", p, "stack", string(debug.Stack()))
			out = r.fail(Internal, fmt.Errorf("panic: %v", p))
		}
		h.finish(ctx, req, out)
	}()

	return h.handle(ctx, r)
}

func (h *Handler) handle(ctx context.Context, r *run) Outcome {
	req := r.req

	r.enter(ValidatingContext)
	channelID := req.ChannelID
	followRequester := channelID == ""
	if followRequester {
		var ok bool
		channelID, ok = voice.UserVoiceChannel(h.presence, req.GuildID, req.RequesterID)
		if !ok {
			return r.fail(NotInVoiceChannel, nil)
		}
	}
	r.out.ChannelID = channelID

	r.enter(Resolving)
	snapshot := h.catalog.Load()
	if snapshot.Len() == 0 {
		return r.fail(CatalogNotReady, nil)
	}
	result := h.resolver.Resolve(req.Query, snapshot)
	switch result.Kind {
	case resolve.None:
		return r.fail(NoMatch, nil)
	case resolve.MultiClose:
		r.out.Suggestions = result.Ranked
		return r.fail(AmbiguousMatch, nil)
	}
	r.out.Entry = result.Entry
	r.out.Inferred = result.Kind == resolve.SingleClose

	r.enter(Fetching)
	path, err := h.store.Fetch(ctx, result.Entry.DisplayName, h.scratchDir)
	if err != nil {
		if errors.Is(err, datalayer.ErrSoundNotFound) {
			return r.fail(NotFound, err)
		}
		return r.fail(Internal, fmt.Errorf("failed to fetch sound: %w", err))
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to remove scratch file", "path", path, "error", err)
		}
	}()

	r.enter(Normalizing)
	filter, err := h.normalizer.Filter(ctx, path)
	if err != nil {
		return r.fail(classifyTranscode(err), err)
	}

	r.enter(Playing)
	if followRequester {
		// The requester may have left or moved while the sound was prepared.
		current, ok := voice.UserVoiceChannel(h.presence, req.GuildID, req.RequesterID)
		if !ok {
			return r.fail(ConnectionUnavailable, errors.New("requester left voice before playback"))
		}
		channelID = current
		r.out.ChannelID = channelID
	}

	frames, err := h.startEncode(ctx, path, filter)
	if err != nil {
		return r.fail(classifyTranscode(err), err)
	}

	if err := h.player.Play(req.GuildID, channelID, result.Entry.DisplayName, frames); err != nil {
		if errors.Is(err, voice.ErrConnectionUnavailable) {
			return r.fail(ConnectionUnavailable, err)
		}
		return r.fail(Internal, fmt.Errorf("failed to start playback: %w", err))
	}

	r.enter(Done)
	return r.out
}

type readCloser struct {
	io.Reader
	io.Closer
}

// startEncode starts the encoder and waits for its first frame so that a
// failing transcode is reported to the requester instead of playing silence.
// The encoder outlives ctx; it is stopped by closing the returned frames.
func (h *Handler) startEncode(ctx context.Context, path, filter string) (io.ReadCloser, error) {
	rc, err := h.encoder.Encode(context.WithoutCancel(ctx), path, filter)
	if err != nil {
		return nil, err
	}

	startCtx, cancel := context.WithTimeout(ctx, h.startTimeout)
	defer cancel()
	stop := context.AfterFunc(startCtx, func() { rc.Close() })

	br := bufio.NewReader(rc)
	_, peekErr := br.Peek(2)
	if !stop() {
		rc.Close()
		if errors.Is(startCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: no audio after %s", loudness.ErrTranscodeTimeout, h.startTimeout)
		}
		return nil, startCtx.Err()
	}
	if peekErr != nil {
		rc.Close()
		if errors.Is(peekErr, io.EOF) {
			return nil, fmt.Errorf("%w: encoder produced no audio", opus.ErrEncodeFailed)
		}
		return nil, peekErr
	}

	return readCloser{Reader: br, Closer: rc}, nil
}

func classifyTranscode(err error) Kind {
	switch {
	case errors.Is(err, loudness.ErrMalformedMeasurement):
		return MalformedMeasurement
	case errors.Is(err, loudness.ErrTranscodeTimeout), errors.Is(err, context.DeadlineExceeded):
		return TranscodeTimeout
	case errors.Is(err, loudness.ErrTranscodeFailed), errors.Is(err, opus.ErrEncodeFailed):
		return TranscodeFailure
	default:
		return Internal
	}
}

func (h *Handler) finish(ctx context.Context, req Request, out Outcome) {
	attrs := []any{
		"guildID", req.GuildID,
		"requesterID", req.RequesterID,
		"query", req.Query,
		"state", out.State.String(),
	}
	if out.Entry.DisplayName != "" {
		attrs = append(attrs, "sound", out.Entry.DisplayName)
	}

	switch kind := out.Kind(); {
	case out.State == Done:
		slog.Info("Playing sound", attrs...)
	case kind.UserCaused():
		slog.Info("Playback request rejected", append(attrs, "kind", kind.String())...)
	default:
		slog.Error("Playback request failed", append(attrs, "kind", kind.String(), "error", out.Err)...)
	}

	if h.recorder != nil {
		h.recorder.Record(context.WithoutCancel(ctx), req, out)
	}
}

// Recorders fans an outcome out to several recorders.
type Recorders []Recorder

func (rs Recorders) Record(ctx context.Context, req Request, out Outcome) {
	for _, r := range rs {
		r.Record(ctx, req, out)
	}
}
