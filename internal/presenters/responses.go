package presenters

import "github.com/bwmarrin/discordgo"

// GenericFailureMessage is shown when a command fails for a reason the user
// cannot act on.
const GenericFailureMessage = "Something went wrong while handling that command."

func EphemeralMessage(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}

// DeferredEphemeral acknowledges a command whose reply will be edited in later.
func DeferredEphemeral() *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	}
}

// DeferredUpdate acknowledges a component interaction on a message that will
// be edited in later.
func DeferredUpdate() *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}
}

// ContentEdit replaces the content of a deferred reply and clears any components.
func ContentEdit(content string) *discordgo.WebhookEdit {
	components := []discordgo.MessageComponent{}
	return &discordgo.WebhookEdit{
		Content:    &content,
		Components: &components,
	}
}
