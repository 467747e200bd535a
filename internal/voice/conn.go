package voice

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Conn is the part of a Discord voice connection the bot uses.
type Conn interface {
	ChannelID() string
	Opus() chan<- []byte
	Speaking(bool) error
	Disconnect() error
}

// Dialer joins a voice channel, or moves an existing connection in the
// same guild to it.
type Dialer interface {
	Join(guildID, channelID string) (Conn, error)
}

// SessionDialer joins voice channels through a discordgo session.
type SessionDialer struct {
	Session *discordgo.Session
}

var _ Dialer = (*SessionDialer)(nil)

func (d *SessionDialer) Join(guildID, channelID string) (Conn, error) {
	// The bot only speaks, so it joins unmuted and deafened.
	vc, err := d.Session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("unable to join the voice channel: %w", err)
	}
	return &discordConn{vc: vc}, nil
}

type discordConn struct {
	vc *discordgo.VoiceConnection
}

var _ Conn = (*discordConn)(nil)

func (c *discordConn) ChannelID() string {
	return c.vc.ChannelID
}

func (c *discordConn) Opus() chan<- []byte {
	return c.vc.OpusSend
}

func (c *discordConn) Speaking(speaking bool) error {
	return c.vc.Speaking(speaking)
}

func (c *discordConn) Disconnect() error {
	return c.vc.Disconnect()
}
