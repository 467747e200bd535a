package handler

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/cobot/internal/util"
)

const (
	optionSoundName = "sound_name"
	optionChannel   = "channel"
)

var guildOnly = false

// Commands is a list of all the commands the bot can handle.
// This is used to register the commands with Discord.
var Commands = []*discordgo.ApplicationCommand{
	{
		Name:         "list",
		Description:  "List possible sounds",
		DMPermission: &guildOnly,
	},
	{
		Name:         "play",
		Description:  "Play a sound",
		DMPermission: &guildOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:         optionSoundName,
				Type:         discordgo.ApplicationCommandOptionString,
				Description:  "Name of the sound to play",
				Required:     true,
				Autocomplete: true,
			},
		},
	},
	{
		Name:         "join",
		Description:  "Join a specified voice channel",
		DMPermission: &guildOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:         optionChannel,
				Type:         discordgo.ApplicationCommandOptionString,
				Description:  "Voice channel to join",
				Required:     true,
				Autocomplete: true,
			},
		},
	},
	{
		Name:         "summon",
		Description:  "Join your current voice channel",
		DMPermission: &guildOnly,
	},
	{
		Name:         "leave",
		Description:  "Leave any connected voice channel.",
		DMPermission: &guildOnly,
	},
	{
		Name:         "stop",
		Description:  "Stop any currently playing sound.",
		DMPermission: &guildOnly,
	},
	{
		Name:        "ping",
		Description: "Check that the bot is responding",
	},
	{
		Name:         "top",
		Description:  "Show the most played sounds in this server",
		DMPermission: &guildOnly,
	},
}

// CommandRegistrar is the part of a discordgo session that registers commands.
type CommandRegistrar interface {
	ApplicationCommandBulkOverwrite(appID string, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// EstablishCommands registers Commands for appID. An empty guildID registers
// them globally.
func EstablishCommands(s CommandRegistrar, appID, guildID string) error {
	_, err := s.ApplicationCommandBulkOverwrite(appID, guildID, Commands)
	if err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}
	return nil
}

func stringOption(options []*discordgo.ApplicationCommandInteractionDataOption, name string) (string, bool) {
	option, ok := util.FindFirst(options, func(o *discordgo.ApplicationCommandInteractionDataOption) bool {
		return o.Name == name && o.Type == discordgo.ApplicationCommandOptionString
	})
	if !ok {
		return "", false
	}
	return option.StringValue(), true
}
