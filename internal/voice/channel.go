package voice

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// StateReader is satisfied by *discordgo.State.
type StateReader interface {
	VoiceState(guildID, userID string) (*discordgo.VoiceState, error)
}

// UserVoiceChannel returns the voice channel userID currently occupies in
// guildID. ok is false when the user is not in voice or the state is unknown.
func UserVoiceChannel(state StateReader, guildID, userID string) (channelID string, ok bool) {
	if state == nil {
		return "", false
	}
	vs, err := state.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

// FilterChannels returns the voice channels whose name contains substr,
// ignoring case, in their original order and capped at limit.
func FilterChannels(channels []*discordgo.Channel, substr string, limit int) []*discordgo.Channel {
	substr = strings.ToLower(substr)

	var matched []*discordgo.Channel
	for _, channel := range channels {
		if len(matched) >= limit {
			break
		}
		if channel == nil || channel.Type != discordgo.ChannelTypeGuildVoice {
			continue
		}
		if strings.Contains(strings.ToLower(channel.Name), substr) {
			matched = append(matched, channel)
		}
	}
	return matched
}

// FindChannel returns the voice channel with the given ID.
func FindChannel(channels []*discordgo.Channel, channelID string) (*discordgo.Channel, bool) {
	for _, channel := range channels {
		if channel != nil && channel.ID == channelID && channel.Type == discordgo.ChannelTypeGuildVoice {
			return channel, true
		}
	}
	return nil, false
}
