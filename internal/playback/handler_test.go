package playback

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/cobot/internal/catalog"
	"github.com/glizzus/cobot/internal/datalayer"
	"github.com/glizzus/cobot/internal/loudness"
	"github.com/glizzus/cobot/internal/opus"
	"github.com/glizzus/cobot/internal/resolve"
	"github.com/glizzus/cobot/internal/voice"
	"github.com/google/go-cmp/cmp"
)

type fakeStore struct {
	dir     string
	fetched []string
	err     error
}

func (s *fakeStore) Fetch(ctx context.Context, name, scratchDir string) (string, error) {
	s.fetched = append(s.fetched, name)
	if s.err != nil {
		return "", s.err
	}
	path := filepath.Join(scratchDir, name+".ogg")
	if err := os.WriteFile(path, []byte("ogg"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeNormalizer struct {
	err    error
	before func()
}

func (n *fakeNormalizer) Filter(ctx context.Context, path string) (string, error) {
	if n.before != nil {
		n.before()
	}
	if n.err != nil {
		return "", n.err
	}
	return "loudnorm=i=-15:tp=0", nil
}

type fakeEncoder struct {
	frames [][]byte
	err    error
	stream io.ReadCloser
}

func (e *fakeEncoder) Encode(ctx context.Context, inputPath, filter string) (io.ReadCloser, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.stream != nil {
		return e.stream, nil
	}
	var buf bytes.Buffer
	for _, f := range e.frames {
		if err := opus.WriteFrame(&buf, f); err != nil {
			return nil, err
		}
	}
	return io.NopCloser(&buf), nil
}

type playCall struct {
	GuildID   string
	ChannelID string
	Title     string
}

type fakePlayer struct {
	calls []playCall
	err   error
}

func (p *fakePlayer) Play(guildID, channelID, title string, frames io.ReadCloser) error {
	defer frames.Close()
	if p.err != nil {
		return p.err
	}
	p.calls = append(p.calls, playCall{GuildID: guildID, ChannelID: channelID, Title: title})
	return nil
}

type fakePresence struct {
	mu       sync.Mutex
	channels map[string]string
}

func (p *fakePresence) VoiceState(guildID, userID string) (*discordgo.VoiceState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	channelID, ok := p.channels[userID]
	if !ok {
		return nil, discordgo.ErrStateNotFound
	}
	return &discordgo.VoiceState{GuildID: guildID, UserID: userID, ChannelID: channelID}, nil
}

func (p *fakePresence) set(userID, channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if channelID == "" {
		delete(p.channels, userID)
		return
	}
	p.channels[userID] = channelID
}

type countingResolver struct {
	inner Resolver
	calls int
	panic bool
}

func (r *countingResolver) Resolve(query string, c *catalog.Catalog) resolve.Result {
	r.calls++
	if r.panic {
		panic("resolver exploded")
	}
	return r.inner.Resolve(query, c)
}

type fixedResolver resolve.Result

func (r fixedResolver) Resolve(string, *catalog.Catalog) resolve.Result {
	return resolve.Result(r)
}

type fakeRecorder struct {
	outcomes []Outcome
}

func (r *fakeRecorder) Record(ctx context.Context, req Request, out Outcome) {
	r.outcomes = append(r.outcomes, out)
}

type fixture struct {
	holder     *catalog.Holder
	resolver   *countingResolver
	store      *fakeStore
	normalizer *fakeNormalizer
	encoder    *fakeEncoder
	player     *fakePlayer
	presence   *fakePresence
	recorder   *fakeRecorder
	scratch    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	holder := &catalog.Holder{}
	c, _ := catalog.New([]string{"Bandit Call", "Check Fire"})
	holder.Swap(c)

	return &fixture{
		holder:     holder,
		resolver:   &countingResolver{inner: resolve.New(resolve.PolicyFuzzy, resolve.DefaultMinThreshold, resolve.DefaultHighThreshold)},
		store:      &fakeStore{},
		normalizer: &fakeNormalizer{},
		encoder:    &fakeEncoder{frames: [][]byte{{1, 2, 3}}},
		player:     &fakePlayer{},
		presence:   &fakePresence{channels: map[string]string{"u1": "c1"}},
		recorder:   &fakeRecorder{},
		scratch:    t.TempDir(),
	}
}

func (f *fixture) handler(resolver Resolver) *Handler {
	if resolver == nil {
		resolver = f.resolver
	}
	return NewHandler(Deps{
		Catalog:      f.holder,
		Resolver:     resolver,
		Store:        f.store,
		Normalizer:   f.normalizer,
		Encoder:      f.encoder,
		Player:       f.player,
		Presence:     f.presence,
		ScratchDir:   f.scratch,
		StartTimeout: time.Second,
		Recorder:     f.recorder,
	})
}

func states(out Outcome) []State {
	var got []State
	for _, stage := range out.Stages {
		got = append(got, stage.State)
	}
	return append(got, out.State)
}

func TestHandlePlaysClosestMatch(t *testing.T) {
	f := newFixture(t)
	out := f.handler(nil).Handle(context.Background(), Request{RequesterID: "u1", GuildID: "g1", Query: "bandt"})

	if out.State != Done {
		t.Fatalf("State = %v, want done (err: %v)", out.State, out.Err)
	}
	if out.Kind() != KindNone {
		t.Errorf("Kind() = %v, want none", out.Kind())
	}
	if !out.Inferred {
		t.Error("expected the match to be marked as inferred")
	}

	wantStates := []State{ValidatingContext, Resolving, Fetching, Normalizing, Playing, Done}
	if diff := cmp.Diff(wantStates, states(out)); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}

	wantCalls := []playCall{{GuildID: "g1", ChannelID: "c1", Title: "Bandit Call"}}
	if diff := cmp.Diff(wantCalls, f.player.calls); diff != "" {
		t.Errorf("play calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Bandit Call"}, f.store.fetched); diff != "" {
		t.Errorf("fetched mismatch (-want +got):\n%s", diff)
	}

	if got, want := out.Message(), "Playing `Bandit Call` (closest match for `bandt`)."; got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}

	leftovers, _ := os.ReadDir(f.scratch)
	if len(leftovers) != 0 {
		t.Errorf("scratch dir not cleaned up: %v", leftovers)
	}
	if len(f.recorder.outcomes) != 1 {
		t.Errorf("recorded %d outcomes, want 1", len(f.recorder.outcomes))
	}
}

func TestHandleExactName(t *testing.T) {
	f := newFixture(t)
	out := f.handler(nil).Handle(context.Background(), Request{RequesterID: "u1", GuildID: "g1", Query: "Check Fire"})

	if out.State != Done || out.Inferred {
		t.Fatalf("got state %v inferred %v, want done and exact", out.State, out.Inferred)
	}
	if got, want := out.Message(), "Playing `Check Fire`."; got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
}

func TestHandleNoMatchSkipsFetch(t *testing.T) {
	f := newFixture(t)
	out := f.handler(nil).Handle(context.Background(), Request{RequesterID: "u1", GuildID: "g1", Query: "xyz123"})

	if out.State != Failed || out.Kind() != NoMatch {
		t.Fatalf("got (%v, %v), want (failed, no_match)", out.State, out.Kind())
	}
	if len(f.store.fetched) != 0 {
		t.Errorf("fetch attempted: %v", f.store.fetched)
	}
	if !strings.Contains(out.Message(), "couldn't find") {
		t.Errorf("Message() = %q, want it to mention \"couldn't find\"", out.Message())
	}
}

func TestHandleNotInVoiceBeforeResolve(t *testing.T) {
	f := newFixture(t)
	out := f.handler(nil).Handle(context.Background(), Request{RequesterID: "u2", GuildID: "g1", Query: "Bandit Call"})

	if out.Kind() != NotInVoiceChannel {
		t.Fatalf("Kind() = %v, want not_in_voice_channel", out.Kind())
	}
	if f.resolver.calls != 0 {
		t.Errorf("resolver invoked %d times, want 0", f.resolver.calls)
	}
	if got, want := out.Message(), "You must be in a voice channel to play sounds."; got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
}

func TestHandleExplicitChannel(t *testing.T) {
	f := newFixture(t)
	out := f.handler(nil).Handle(context.Background(), Request{RequesterID: "u2", GuildID: "g1", ChannelID: "c7", Query: "Bandit Call"})

	if out.State != Done {
		t.Fatalf("State = %v, want done (err: %v)", out.State, out.Err)
	}
	if f.player.calls[0].ChannelID != "c7" {
		t.Errorf("played in %q, want c7", f.player.calls[0].ChannelID)
	}
}

func TestHandleAmbiguous(t *testing.T) {
	f := newFixture(t)
	c := f.holder.Load()
	a, _ := c.Lookup("banditcall")
	b, _ := c.Lookup("checkfire")
	ranked := []resolve.Candidate{{Entry: a, Score: 60}, {Entry: b, Score: 55}}

	out := f.handler(fixedResolver{Kind: resolve.MultiClose, Ranked: ranked}).
		Handle(context.Background(), Request{RequesterID: "u1", GuildID: "g1", Query: "c"})

	if out.Kind() != AmbiguousMatch {
		t.Fatalf("Kind() = %v, want ambiguous_match", out.Kind())
	}
	if diff := cmp.Diff(ranked, out.Suggestions); diff != "" {
		t.Errorf("suggestions mismatch (-want +got):\n%s", diff)
	}
	if len(f.store.fetched) != 0 || len(f.player.calls) != 0 {
		t.Error("ambiguous request must not fetch or play")
	}
}

func TestHandleCatalogNotReady(t *testing.T) {
	f := newFixture(t)
	f.holder.Swap(nil)

	out := f.handler(nil).Handle(context.Background(), Request{RequesterID: "u1", GuildID: "g1", Query: "bandit"})
	if out.Kind() != CatalogNotReady {
		t.Fatalf("Kind() = %v, want catalog_not_ready", out.Kind())
	}
	if got, want := out.Message(), "Starting up, give me a minute!"; got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
}

func TestHandleFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture)
		want    Kind
		wantErr error
	}{
		{
			name:    "missing from store",
			setup:   func(f *fixture) { f.store.err = datalayer.ErrSoundNotFound },
			want:    NotFound,
			wantErr: datalayer.ErrSoundNotFound,
		},
		{
			name:  "store outage",
			setup: func(f *fixture) { f.store.err = errors.New("connection refused") },
			want:  Internal,
		},
		{
			name:    "malformed measurement",
			setup:   func(f *fixture) { f.normalizer.err = loudness.ErrMalformedMeasurement },
			want:    MalformedMeasurement,
			wantErr: loudness.ErrMalformedMeasurement,
		},
		{
			name:    "analysis timeout",
			setup:   func(f *fixture) { f.normalizer.err = loudness.ErrTranscodeTimeout },
			want:    TranscodeTimeout,
			wantErr: loudness.ErrTranscodeTimeout,
		},
		{
			name:    "analysis failure",
			setup:   func(f *fixture) { f.normalizer.err = loudness.ErrTranscodeFailed },
			want:    TranscodeFailure,
			wantErr: loudness.ErrTranscodeFailed,
		},
		{
			name:    "encoder failure",
			setup:   func(f *fixture) { f.encoder.err = opus.ErrEncodeFailed },
			want:    TranscodeFailure,
			wantErr: opus.ErrEncodeFailed,
		},
		{
			name:    "encoder produced nothing",
			setup:   func(f *fixture) { f.encoder.frames = nil },
			want:    TranscodeFailure,
			wantErr: opus.ErrEncodeFailed,
		},
		{
			name: "encoder stalls",
			setup: func(f *fixture) {
				pr, _ := io.Pipe()
				f.encoder.stream = pr
			},
			want:    TranscodeTimeout,
			wantErr: loudness.ErrTranscodeTimeout,
		},
		{
			name:    "voice connection unavailable",
			setup:   func(f *fixture) { f.player.err = voice.ErrConnectionUnavailable },
			want:    ConnectionUnavailable,
			wantErr: voice.ErrConnectionUnavailable,
		},
		{
			name: "requester left voice mid request",
			setup: func(f *fixture) {
				f.normalizer.before = func() { f.presence.set("u1", "") }
			},
			want: ConnectionUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)
			h := f.handler(nil)
			h.startTimeout = 50 * time.Millisecond

			out := h.Handle(context.Background(), Request{RequesterID: "u1", GuildID: "g1", Query: "Bandit Call"})

			if out.State != Failed {
				t.Fatalf("State = %v, want failed", out.State)
			}
			if out.Kind() != tt.want {
				t.Errorf("Kind() = %v, want %v (err: %v)", out.Kind(), tt.want, out.Err)
			}
			if tt.wantErr != nil && !errors.Is(out.Err, tt.wantErr) {
				t.Errorf("Err = %v, want it to wrap %v", out.Err, tt.wantErr)
			}
			if out.Message() == "" {
				t.Error("every failure needs a user-visible message")
			}
			if len(f.player.calls) != 0 {
				t.Errorf("unexpected play calls: %v", f.player.calls)
			}
			if len(f.recorder.outcomes) != 1 {
				t.Errorf("recorded %d outcomes, want 1", len(f.recorder.outcomes))
			}
		})
	}
}

func TestHandleFollowsRequesterWhoMoved(t *testing.T) {
	f := newFixture(t)
	f.normalizer.before = func() { f.presence.set("u1", "c2") }

	out := f.handler(nil).Handle(context.Background(), Request{RequesterID: "u1", GuildID: "g1", Query: "Bandit Call"})
	if out.State != Done {
		t.Fatalf("State = %v, want done (err: %v)", out.State, out.Err)
	}
	if out.ChannelID != "c2" || f.player.calls[0].ChannelID != "c2" {
		t.Errorf("played in %q, want c2", f.player.calls[0].ChannelID)
	}
}

type lockedPlayer struct {
	mu    sync.Mutex
	calls []playCall
}

func (p *lockedPlayer) Play(guildID, channelID, title string, frames io.ReadCloser) error {
	defer frames.Close()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, playCall{GuildID: guildID, ChannelID: channelID, Title: title})
	return nil
}

// statEncoder fails the way ffmpeg does when its input has disappeared.
type statEncoder struct {
	inner *fakeEncoder
}

func (e *statEncoder) Encode(ctx context.Context, inputPath, filter string) (io.ReadCloser, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return nil, err
	}
	return e.inner.Encode(ctx, inputPath, filter)
}

// turnNormalizer holds every request until all of them have fetched, then
// lets the first one finish before the rest continue.
type turnNormalizer struct {
	mu        sync.Mutex
	arrivals  int
	want      int
	allIn     chan struct{}
	firstDone chan struct{}
}

func (n *turnNormalizer) Filter(ctx context.Context, path string) (string, error) {
	n.mu.Lock()
	n.arrivals++
	turn := n.arrivals
	if n.arrivals == n.want {
		close(n.allIn)
	}
	n.mu.Unlock()

	<-n.allIn
	if turn > 1 {
		<-n.firstDone
	}
	return "loudnorm=i=-15:tp=0", nil
}

func TestHandleSameSoundConcurrently(t *testing.T) {
	sounds := t.TempDir()
	if err := os.WriteFile(filepath.Join(sounds, "Bandit Call.ogg"), []byte("ogg"), 0o644); err != nil {
		t.Fatal(err)
	}
	scratch := t.TempDir()

	holder := &catalog.Holder{}
	c, _ := catalog.New([]string{"Bandit Call"})
	holder.Swap(c)

	normalizer := &turnNormalizer{want: 2, allIn: make(chan struct{}), firstDone: make(chan struct{})}
	player := &lockedPlayer{}
	h := NewHandler(Deps{
		Catalog:      holder,
		Resolver:     resolve.New(resolve.PolicyFuzzy, resolve.DefaultMinThreshold, resolve.DefaultHighThreshold),
		Store:        datalayer.NewLocalStore(sounds, ".ogg"),
		Normalizer:   normalizer,
		Encoder:      &statEncoder{inner: &fakeEncoder{frames: [][]byte{{1}}}},
		Player:       player,
		Presence:     &fakePresence{channels: map[string]string{"u1": "c1", "u2": "c2"}},
		ScratchDir:   scratch,
		StartTimeout: time.Second,
	})

	requests := []Request{
		{RequesterID: "u1", GuildID: "g1", Query: "Bandit Call"},
		{RequesterID: "u2", GuildID: "g2", Query: "Bandit Call"},
	}
	outcomes := make([]Outcome, len(requests))
	var once sync.Once
	var wg sync.WaitGroup
	for idx, req := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[idx] = h.Handle(context.Background(), req)
			once.Do(func() { close(normalizer.firstDone) })
		}()
	}
	wg.Wait()

	for idx, out := range outcomes {
		if out.State != Done {
			t.Errorf("request in %s: state %v, want done (err: %v)", requests[idx].GuildID, out.State, out.Err)
		}
	}
	if len(player.calls) != 2 {
		t.Errorf("played %d times, want 2", len(player.calls))
	}

	leftovers, _ := os.ReadDir(scratch)
	if len(leftovers) != 0 {
		t.Errorf("scratch dir not cleaned up: %v", leftovers)
	}
}

func TestHandleRecoversPanic(t *testing.T) {
	f := newFixture(t)
	f.resolver.panic = true

	out := f.handler(nil).Handle(context.Background(), Request{RequesterID: "u1", GuildID: "g1", Query: "bandit"})

	if out.State != Failed || out.Kind() != Internal {
		t.Fatalf("got (%v, %v), want (failed, internal)", out.State, out.Kind())
	}
	if strings.Contains(out.Message(), "exploded") {
		t.Errorf("Message() leaks panic detail: %q", out.Message())
	}
	if len(f.recorder.outcomes) != 1 {
		t.Errorf("recorded %d outcomes, want 1", len(f.recorder.outcomes))
	}
}

func TestKindMessagesAreDistinct(t *testing.T) {
	seen := make(map[string]Kind)
	for k := NotFound; k <= Internal; k++ {
		msg := k.Message()
		if msg == "" {
			t.Errorf("%v has no message", k)
		}
		if other, ok := seen[msg]; ok {
			t.Errorf("%v and %v share message %q", k, other, msg)
		}
		seen[msg] = k
	}
}

func TestRecorders(t *testing.T) {
	a, b := &fakeRecorder{}, &fakeRecorder{}
	Recorders{a, b}.Record(context.Background(), Request{}, Outcome{State: Done})
	if len(a.outcomes) != 1 || len(b.outcomes) != 1 {
		t.Errorf("fan out recorded (%d, %d), want (1, 1)", len(a.outcomes), len(b.outcomes))
	}
}
