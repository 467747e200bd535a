package presenters

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/cobot/internal/playback"
	"github.com/glizzus/cobot/internal/repository"
	"github.com/glizzus/cobot/internal/resolve"
	"github.com/glizzus/cobot/internal/util"
)

const ComponentIDSoundSuggestion = "sound_suggestion"

// Discord caps select menus at 25 options and labels, values and choice
// names at 100 characters.
const (
	maxSelectOptions = 25
	maxChoiceLength  = 100
)

var suggestionSelectMinValues = 1

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func candidateToSelectMenuOption(c resolve.Candidate) discordgo.SelectMenuOption {
	return discordgo.SelectMenuOption{
		Label: truncate(c.Entry.DisplayName, maxChoiceLength),
		Value: truncate(c.Entry.DisplayName, maxChoiceLength),
	}
}

func buildSuggestionSelectMenu(candidates []resolve.Candidate, instanceID string) discordgo.ActionsRow {
	if len(candidates) > maxSelectOptions {
		candidates = candidates[:maxSelectOptions]
	}

	var options []discordgo.SelectMenuOption
	for _, c := range candidates {
		options = append(options, candidateToSelectMenuOption(c))
	}

	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    ComponentIDSoundSuggestion + ":" + instanceID,
				Placeholder: "Pick a sound to play",
				MinValues:   &suggestionSelectMinValues,
				MaxValues:   1,
				Options:     options,
			},
		},
	}
}

// BuildPlaybackEdit turns a playback outcome into the edit of the deferred
// play reply. Ambiguous outcomes carry a select menu of suggestions bound to
// instanceID.
func BuildPlaybackEdit(out playback.Outcome, instanceID string) *discordgo.WebhookEdit {
	edit := ContentEdit(out.Message())
	if out.Kind() == playback.AmbiguousMatch && len(out.Suggestions) > 0 {
		*edit.Components = []discordgo.MessageComponent{
			buildSuggestionSelectMenu(out.Suggestions, instanceID),
		}
	}
	return edit
}

func BuildSoundChoices(candidates []resolve.Candidate) []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(candidates))
	for _, c := range candidates {
		name := truncate(c.Entry.DisplayName, maxChoiceLength)
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  name,
			Value: name,
		})
	}
	return choices
}

func BuildChannelChoices(channels []*discordgo.Channel) []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(channels))
	for _, c := range channels {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  truncate(c.Name, maxChoiceLength),
			Value: c.ID,
		})
	}
	return choices
}

func BuildAutocompleteResponse(choices []*discordgo.ApplicationCommandOptionChoice) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: choices,
		},
	}
}

const (
	SoundListPreamble = "These are the topics I can tell you about:\n"
	maxMessageLength  = 2000
	codeBlockOverhead = len("```\n") + len("\n```")
)

// BuildSoundListMessages splits the sorted sound names into DM-sized messages.
// The first message starts with SoundListPreamble and each lists its names in
// a code block.
func BuildSoundListMessages(names []string) []string {
	maxLen := maxMessageLength - len(SoundListPreamble) - codeBlockOverhead

	var messages []string
	for i, chunk := range util.ChunkLines(names, maxLen) {
		var b strings.Builder
		if i == 0 {
			b.WriteString(SoundListPreamble)
		}
		b.WriteString("```\n")
		b.WriteString(strings.Join(chunk, "\n"))
		b.WriteString("\n```")
		messages = append(messages, b.String())
	}
	return messages
}

func BuildTopSoundsMessage(counts []repository.SoundCount) string {
	if len(counts) == 0 {
		return "No sounds have been played in this server yet."
	}

	var b strings.Builder
	b.WriteString("**Most played sounds**\n")
	for i, c := range counts {
		plays := "plays"
		if c.Plays == 1 {
			plays = "play"
		}
		fmt.Fprintf(&b, "%d. %s (%d %s)\n", i+1, c.Sound, c.Plays, plays)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
