package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/cobot/internal/catalog"
	"github.com/glizzus/cobot/internal/generator"
	"github.com/glizzus/cobot/internal/playback"
	"github.com/glizzus/cobot/internal/presenters"
	"github.com/glizzus/cobot/internal/repository"
	"github.com/glizzus/cobot/internal/resolve"
	"github.com/glizzus/cobot/internal/util"
	"github.com/glizzus/cobot/internal/voice"
)

// DiscordSession is the part of *discordgo.Session the handlers use.
type DiscordSession interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, opts ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, wh *discordgo.WebhookEdit, opts ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, opts ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, opts ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildChannels(guildID string, opts ...discordgo.RequestOption) ([]*discordgo.Channel, error)
}

var _ DiscordSession = (*discordgo.Session)(nil)

type ReadyHandler = func(*discordgo.Session, *discordgo.Ready)
type InteractionCreateHandler = func(*discordgo.Session, *discordgo.InteractionCreate)

var ReadyLog = func(s *discordgo.Session, r *discordgo.Ready) {
	username := r.User.Username
	userID := r.User.ID
	slog.Info("Bot is ready", "username", username, "userID", userID)
}

type CatalogSource interface {
	Load() *catalog.Catalog
}

type PlaybackHandler interface {
	Handle(ctx context.Context, req playback.Request) playback.Outcome
}

// VoiceController is the part of voice.Manager the commands drive.
type VoiceController interface {
	Join(guildID, channelID string) error
	Leave(guildID string) (string, error)
	Stop(guildID string) bool
}

type Deps struct {
	Catalog           CatalogSource
	Playback          PlaybackHandler
	Voice             VoiceController
	Presence          voice.StateReader
	History           repository.PlayRepository
	AutocompleteLimit int
	IDs               generator.Generator[string]
	// Timeout bounds the work done for a single interaction.
	Timeout time.Duration
}

const (
	DefaultAutocompleteLimit  = 20
	DefaultInteractionTimeout = 2 * time.Minute
	topSoundsLimit            = 10
)

// InteractionHandler handles one interaction through a DiscordSession.
type InteractionHandler func(DiscordSession, *discordgo.InteractionCreate)

// NewInteractionHandler wires every command flow into a FlowManager and
// returns the handler for InteractionCreate events.
func NewInteractionHandler(deps Deps) InteractionHandler {
	if deps.AutocompleteLimit <= 0 {
		deps.AutocompleteLimit = DefaultAutocompleteLimit
	}
	if deps.Timeout <= 0 {
		deps.Timeout = DefaultInteractionTimeout
	}
	if deps.History == nil {
		deps.History = repository.NopPlayRepository{}
	}

	flowManager := NewFlowManager(deps.IDs)
	flowManager.RegisterFlow(PingFlow)
	flowManager.RegisterFlow(newListFlow(deps))
	flowManager.RegisterFlow(newPlayFlow(deps))
	flowManager.RegisterFlow(newJoinFlow(deps))
	flowManager.RegisterFlow(newSummonFlow(deps))
	flowManager.RegisterFlow(newLeaveFlow(deps))
	flowManager.RegisterFlow(newStopFlow(deps))
	flowManager.RegisterFlow(newTopFlow(deps))

	return func(s DiscordSession, i *discordgo.InteractionCreate) {
		ctx, cancel := context.WithTimeout(context.Background(), deps.Timeout)
		defer cancel()

		defer func() {
			if p := recover(); p != nil {
				slog.Error("Recovered from panic while handling interaction",
					"guildID", i.GuildID, "panic", p, "stack", string(debug.Stack()))
				replyError(s, i, presenters.GenericFailureMessage)
			}
		}()

		var err error
		switch i.Type {
		case discordgo.InteractionApplicationCommandAutocomplete:
			err = handleAutocomplete(ctx, s, i, deps)
		default:
			err = flowManager.Router(ctx, s, i)
		}
		if err == nil {
			return
		}

		var userErr *UserError
		if errors.As(err, &userErr) {
			slog.Info("Interaction rejected", "guildID", i.GuildID, "reason", userErr.Message)
			replyError(s, i, userErr.Message)
			return
		}
		slog.Error("Failed to handle interaction", "guildID", i.GuildID, "error", err)
		replyError(s, i, presenters.GenericFailureMessage)
	}
}

// ForSession adapts an InteractionHandler to a discordgo event handler.
func (h InteractionHandler) ForSession() InteractionCreateHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		h(s, i)
	}
}

// replyError tells the user about a failure whether or not the interaction
// has already been acknowledged.
func replyError(s DiscordSession, i *discordgo.InteractionCreate, message string) {
	if i.Type == discordgo.InteractionApplicationCommandAutocomplete {
		return
	}
	if err := s.InteractionRespond(i.Interaction, presenters.EphemeralMessage(message)); err == nil {
		return
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, presenters.ContentEdit(message)); err != nil {
		slog.Error("Failed to report error to user", "guildID", i.GuildID, "error", err)
	}
}

func requesterID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func respondEphemeral(s DiscordSession, i *discordgo.InteractionCreate, content string) error {
	if err := s.InteractionRespond(i.Interaction, presenters.EphemeralMessage(content)); err != nil {
		return fmt.Errorf("failed to respond: %w", err)
	}
	return nil
}

func editReply(s DiscordSession, i *discordgo.InteractionCreate, edit *discordgo.WebhookEdit) error {
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		return fmt.Errorf("failed to edit reply: %w", err)
	}
	return nil
}

func handleAutocomplete(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, deps Deps) error {
	data := i.ApplicationCommandData()
	focused, ok := util.FindFirst(data.Options, func(o *discordgo.ApplicationCommandInteractionDataOption) bool {
		return o.Focused
	})
	if !ok {
		return nil
	}
	current := focused.StringValue()

	var choices []*discordgo.ApplicationCommandOptionChoice
	switch focused.Name {
	case optionSoundName:
		ranked := resolve.Rank(current, deps.Catalog.Load(), deps.AutocompleteLimit)
		choices = presenters.BuildSoundChoices(ranked)
	case optionChannel:
		if i.GuildID == "" {
			break
		}
		channels, err := s.GuildChannels(i.GuildID)
		if err != nil {
			return fmt.Errorf("failed to list guild channels: %w", err)
		}
		choices = presenters.BuildChannelChoices(voice.FilterChannels(channels, current, deps.AutocompleteLimit))
	default:
		return nil
	}

	if err := s.InteractionRespond(i.Interaction, presenters.BuildAutocompleteResponse(choices)); err != nil {
		return fmt.Errorf("failed to respond to autocomplete: %w", err)
	}
	return nil
}

// Handlers are registered on the session when set. Handlers that need the
// session itself can be added with AddHandler afterwards.
type Handlers struct {
	Ready             ReadyHandler
	InteractionCreate InteractionCreateHandler
}

func NewSession(token string, handlers Handlers) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	if handlers.Ready != nil {
		s.AddHandler(handlers.Ready)
	}
	if handlers.InteractionCreate != nil {
		s.AddHandler(handlers.InteractionCreate)
	}

	return s, nil
}
