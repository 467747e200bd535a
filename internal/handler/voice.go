package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/cobot/internal/presenters"
	"github.com/glizzus/cobot/internal/voice"
)

const (
	channelNotFoundMessage = "Channel not found."
	notConnectedMessage    = "You are not connected to a voice channel"
	notInAnyChannelMessage = "I'm not in any voice channel on this server!"
	stoppedMessage         = "Stopped playing sound."
	nothingPlayingMessage  = "No sound is currently playing."
)

func channelMention(channelID string) string {
	return "<#" + channelID + ">"
}

func newJoinFlow(deps Deps) *Flow {
	return &Flow{
		ID: "join",
		Root: &Node{
			ID:      "join",
			Matcher: commandMatcher("join"),
			Handler: func(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, fc *FlowContext) error {
				channelID, _ := stringOption(i.ApplicationCommandData().Options, optionChannel)

				channels, err := s.GuildChannels(i.GuildID)
				if err != nil {
					return fmt.Errorf("failed to list guild channels: %w", err)
				}
				channel, ok := voice.FindChannel(channels, channelID)
				if !ok {
					return respondEphemeral(s, i, channelNotFoundMessage)
				}

				return joinAndReport(s, i, deps, channel.ID, channel.Name)
			},
		},
	}
}

func newSummonFlow(deps Deps) *Flow {
	return &Flow{
		ID: "summon",
		Root: &Node{
			ID:      "summon",
			Matcher: commandMatcher("summon"),
			Handler: func(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, fc *FlowContext) error {
				channelID, ok := voice.UserVoiceChannel(deps.Presence, i.GuildID, requesterID(i))
				if !ok {
					return respondEphemeral(s, i, notConnectedMessage)
				}
				return joinAndReport(s, i, deps, channelID, channelMention(channelID))
			},
		},
	}
}

// joinAndReport joins channelID and edits the deferred reply with the result.
// Connecting to voice can outlast Discord's initial response window.
func joinAndReport(s DiscordSession, i *discordgo.InteractionCreate, deps Deps, channelID, channelName string) error {
	if err := s.InteractionRespond(i.Interaction, presenters.DeferredEphemeral()); err != nil {
		return fmt.Errorf("failed to defer join reply: %w", err)
	}

	if err := deps.Voice.Join(i.GuildID, channelID); err != nil {
		slog.Error("Failed to join voice channel", "guildID", i.GuildID, "channelID", channelID, "error", err)
		return editReply(s, i, presenters.ContentEdit(fmt.Sprintf("Failed to join %s.", channelName)))
	}

	slog.Info("Joined voice channel", "guildID", i.GuildID, "channelID", channelID)
	return editReply(s, i, presenters.ContentEdit(fmt.Sprintf("Joined %s", channelName)))
}

func newLeaveFlow(deps Deps) *Flow {
	return &Flow{
		ID: "leave",
		Root: &Node{
			ID:      "leave",
			Matcher: commandMatcher("leave"),
			Handler: func(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, fc *FlowContext) error {
				channelID, err := deps.Voice.Leave(i.GuildID)
				switch {
				case errors.Is(err, voice.ErrNotConnected):
					return respondEphemeral(s, i, notInAnyChannelMessage)
				case err != nil:
					slog.Warn("Error while leaving voice channel", "guildID", i.GuildID, "error", err)
				}
				return respondEphemeral(s, i, fmt.Sprintf("Leaving %s", channelMention(channelID)))
			},
		},
	}
}

func newStopFlow(deps Deps) *Flow {
	return &Flow{
		ID: "stop",
		Root: &Node{
			ID:      "stop",
			Matcher: commandMatcher("stop"),
			Handler: func(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, fc *FlowContext) error {
				if deps.Voice.Stop(i.GuildID) {
					return respondEphemeral(s, i, stoppedMessage)
				}
				return respondEphemeral(s, i, nothingPlayingMessage)
			},
		},
	}
}
