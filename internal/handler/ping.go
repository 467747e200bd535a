package handler

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

var PingFlow = &Flow{
	ID: "ping",
	Root: &Node{
		ID:      "ping",
		Matcher: commandMatcher("ping"),
		Handler: func(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, fc *FlowContext) error {
			return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Content: "Pong!",
				},
			})
		},
	},
}

func commandMatcher(name string) func(*discordgo.InteractionCreate) bool {
	return func(i *discordgo.InteractionCreate) bool {
		if i.Type != discordgo.InteractionApplicationCommand {
			return false
		}
		return i.ApplicationCommandData().Name == name
	}
}
