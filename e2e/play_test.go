package e2e_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/cobot/e2e"
	"github.com/glizzus/cobot/internal/catalog"
	"github.com/glizzus/cobot/internal/datalayer"
	"github.com/glizzus/cobot/internal/generator"
	"github.com/glizzus/cobot/internal/handler"
	"github.com/glizzus/cobot/internal/opus"
	"github.com/glizzus/cobot/internal/playback"
	"github.com/glizzus/cobot/internal/repository"
	"github.com/glizzus/cobot/internal/resolve"
	"github.com/glizzus/cobot/internal/voice"
)

const (
	guildID     = "74241007174813750"
	requesterID = "74241007174813751"
	channelID   = "74241007174813752"
)

type presence map[string]string

func (p presence) VoiceState(guildID, userID string) (*discordgo.VoiceState, error) {
	channelID, ok := p[userID]
	if !ok {
		return nil, discordgo.ErrStateNotFound
	}
	return &discordgo.VoiceState{GuildID: guildID, UserID: userID, ChannelID: channelID}, nil
}

type conn struct {
	channelID string
	opus      chan []byte
}

func (c *conn) ChannelID() string   { return c.channelID }
func (c *conn) Opus() chan<- []byte { return c.opus }
func (c *conn) Speaking(bool) error { return nil }
func (c *conn) Disconnect() error   { return nil }

type dialer struct{}

func (dialer) Join(guildID, channelID string) (voice.Conn, error) {
	return &conn{channelID: channelID, opus: make(chan []byte, 64)}, nil
}

// frameEncoder stands in for ffmpeg and emits a few fixed Opus frames.
type frameEncoder struct{}

func (frameEncoder) Encode(ctx context.Context, inputPath, filter string) (io.ReadCloser, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for range 3 {
		if err := opus.WriteFrame(&buf, []byte{0xf8, 0xff, 0xfe}); err != nil {
			return nil, err
		}
	}
	return io.NopCloser(&buf), nil
}

type fixedNormalizer struct{}

func (fixedNormalizer) Filter(ctx context.Context, path string) (string, error) {
	return "loudnorm=I=-15:TP=0:LRA=11", nil
}

func newSoundDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name+".ogg"), []byte("OggS"), 0o644); err != nil {
			t.Fatalf("failed to write sound: %v", err)
		}
	}
	return dir
}

func commandInteraction(name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: guildID,
			Member:  &discordgo.Member{User: &discordgo.User{ID: requesterID}},
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    name,
				Options: options,
			},
		},
	}
}

func TestPlayIsRecordedInHistory(t *testing.T) {
	connStr := e2e.UsePostgres(t)
	repo := e2e.GetRepository(t, connStr)
	e2e.SeedGlobalNoise(t, repo)

	store := datalayer.NewLocalStore(newSoundDir(t, "Bandit Call", "Check Fire", "Tango Down"), ".ogg")
	holder := &catalog.Holder{}
	if err := holder.Reload(t.Context(), store); err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}

	manager := voice.NewManager(dialer{}, time.Second)
	t.Cleanup(func() { _ = manager.Close() })

	ids := &generator.UUIDV4Generator{}
	voicePresence := presence{requesterID: channelID}
	playbackHandler := playback.NewHandler(playback.Deps{
		Catalog:    holder,
		Resolver:   resolve.New(resolve.PolicyFuzzy, resolve.DefaultMinThreshold, resolve.DefaultHighThreshold),
		Store:      store,
		Normalizer: fixedNormalizer{},
		Encoder:    frameEncoder{},
		Player:     manager,
		Presence:   voicePresence,
		ScratchDir: t.TempDir(),
		Recorder:   &repository.HistoryRecorder{Repo: repo, IDs: &generator.UUIDV7Generator{}},
	})

	handle := handler.NewInteractionHandler(handler.Deps{
		Catalog:  holder,
		Playback: playbackHandler,
		Voice:    manager,
		Presence: voicePresence,
		History:  repo,
		IDs:      ids,
	})

	session := &mockSession{}
	handle(session, commandInteraction("play", &discordgo.ApplicationCommandInteractionDataOption{
		Name:  "sound_name",
		Type:  discordgo.ApplicationCommandOptionString,
		Value: "bandt",
	}))

	if len(session.Edits) == 0 || session.Edits[0].Content == nil {
		t.Fatal("expected the deferred reply to be edited")
	}
	if got, want := *session.Edits[0].Content, "Playing `Bandit Call` (closest match for `bandt`)."; got != want {
		t.Errorf("play reply = %q, want %q", got, want)
	}

	handle(session, commandInteraction("top"))
	last := session.Responses[len(session.Responses)-1]
	if last.Data == nil {
		t.Fatal("expected a top sounds reply")
	}
	if !strings.Contains(last.Data.Content, "1. Bandit Call (1 play)") {
		t.Errorf("top reply = %q, want Bandit Call with a single play", last.Data.Content)
	}
}

func TestNoMatchIsRecordedButNotCounted(t *testing.T) {
	connStr := e2e.UsePostgres(t)
	repo := e2e.GetRepository(t, connStr)

	const otherGuild = "74241007174813760"
	holder := &catalog.Holder{}
	c, _ := catalog.New([]string{"Bandit Call"})
	holder.Swap(c)

	playbackHandler := playback.NewHandler(playback.Deps{
		Catalog:  holder,
		Resolver: resolve.New(resolve.PolicyFuzzy, resolve.DefaultMinThreshold, resolve.DefaultHighThreshold),
		Presence: presence{requesterID: channelID},
		Recorder: &repository.HistoryRecorder{Repo: repo, IDs: &generator.UUIDV4Generator{}},
	})

	out := playbackHandler.Handle(t.Context(), playback.Request{
		RequesterID: requesterID,
		GuildID:     otherGuild,
		Query:       "xyz123",
	})
	if out.Kind() != playback.NoMatch {
		t.Fatalf("got kind %v, want no_match", out.Kind())
	}

	counts, err := repo.TopSounds(t.Context(), otherGuild, 10)
	if err != nil {
		t.Fatalf("failed to load top sounds: %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("got %v, want no counted plays", counts)
	}
}
