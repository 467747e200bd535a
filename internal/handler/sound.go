package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/cobot/internal/playback"
	"github.com/glizzus/cobot/internal/presenters"
)

const (
	listSentMessage   = "I've sent you a DM with the sound list."
	listFailedMessage = "Failed to send DM. Do you have DMs disabled?"
)

func newListFlow(deps Deps) *Flow {
	return &Flow{
		ID: "list",
		Root: &Node{
			ID:      "list",
			Matcher: commandMatcher("list"),
			Handler: func(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, fc *FlowContext) error {
				entries := deps.Catalog.Load().Entries()
				if len(entries) == 0 {
					return respondEphemeral(s, i, playback.CatalogNotReady.Message())
				}

				if err := s.InteractionRespond(i.Interaction, presenters.DeferredEphemeral()); err != nil {
					return fmt.Errorf("failed to defer list reply: %w", err)
				}

				names := make([]string, 0, len(entries))
				for _, e := range entries {
					names = append(names, e.DisplayName)
				}

				if err := sendDM(s, requesterID(i), presenters.BuildSoundListMessages(names)); err != nil {
					slog.Warn("Failed to DM sound list", "userID", requesterID(i), "error", err)
					return editReply(s, i, presenters.ContentEdit(listFailedMessage))
				}
				return editReply(s, i, presenters.ContentEdit(listSentMessage))
			},
		},
	}
}

func sendDM(s DiscordSession, userID string, messages []string) error {
	dm, err := s.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}
	for _, msg := range messages {
		if _, err := s.ChannelMessageSend(dm.ID, msg); err != nil {
			return fmt.Errorf("failed to send DM: %w", err)
		}
	}
	return nil
}

func newPlayFlow(deps Deps) *Flow {
	suggestionPicked := &Node{
		ID: "play_suggestion",
		Matcher: func(i *discordgo.InteractionCreate) bool {
			if i.Type != discordgo.InteractionMessageComponent {
				return false
			}
			return strings.HasPrefix(i.MessageComponentData().CustomID, presenters.ComponentIDSoundSuggestion+":")
		},
		Handler: func(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, fc *FlowContext) error {
			values := i.MessageComponentData().Values
			if len(values) == 0 {
				return &UserError{Message: "Pick a sound from the menu."}
			}

			if err := s.InteractionRespond(i.Interaction, presenters.DeferredUpdate()); err != nil {
				return fmt.Errorf("failed to defer suggestion update: %w", err)
			}

			out := deps.Playback.Handle(ctx, playback.Request{
				RequesterID: requesterID(i),
				GuildID:     i.GuildID,
				Query:       values[0],
			})
			return editReply(s, i, presenters.BuildPlaybackEdit(out, fc.InstanceID))
		},
	}

	return &Flow{
		ID: "play",
		Root: &Node{
			ID:      "play",
			Matcher: commandMatcher("play"),
			Handler: func(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, fc *FlowContext) error {
				query, _ := stringOption(i.ApplicationCommandData().Options, optionSoundName)

				// Only a suggestion menu waits for a follow-up.
				awaitingPick := false
				defer func() {
					if !awaitingPick {
						fc.End()
					}
				}()

				if err := s.InteractionRespond(i.Interaction, presenters.DeferredEphemeral()); err != nil {
					return fmt.Errorf("failed to defer play reply: %w", err)
				}

				out := deps.Playback.Handle(ctx, playback.Request{
					RequesterID: requesterID(i),
					GuildID:     i.GuildID,
					Query:       query,
				})
				awaitingPick = out.Kind() == playback.AmbiguousMatch
				return editReply(s, i, presenters.BuildPlaybackEdit(out, fc.InstanceID))
			},
			Next: []*Node{suggestionPicked},
		},
	}
}

func newTopFlow(deps Deps) *Flow {
	return &Flow{
		ID: "top",
		Root: &Node{
			ID:      "top",
			Matcher: commandMatcher("top"),
			Handler: func(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, fc *FlowContext) error {
				counts, err := deps.History.TopSounds(ctx, i.GuildID, topSoundsLimit)
				if err != nil {
					return fmt.Errorf("failed to load top sounds: %w", err)
				}
				return respondEphemeral(s, i, presenters.BuildTopSoundsMessage(counts))
			},
		},
	}
}
