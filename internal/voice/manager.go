package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/glizzus/cobot/internal/opus"
)

var (
	ErrConnectionUnavailable = errors.New("voice connection unavailable")
	ErrNotConnected          = errors.New("not connected to a voice channel in this guild")
)

// Manager owns the bot's voice connections, one per guild, and the single
// playback that may be active on each.
//
// mu guards the slots map and every slot's conn and playing fields. It is
// never held while dialing; dials are serialized per guild by slot.dialMu.
type Manager struct {
	dialer      Dialer
	sendTimeout time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

// slot is created on first use and kept for the life of the Manager, so its
// dialMu is the same lock for every caller in that guild.
type slot struct {
	dialMu sync.Mutex

	conn    Conn
	playing *activePlayback
}

type activePlayback struct {
	title  string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(dialer Dialer, sendTimeout time.Duration) *Manager {
	return &Manager{
		dialer:      dialer,
		sendTimeout: sendTimeout,
		slots:       make(map[string]*slot),
	}
}

func (m *Manager) slotFor(guildID string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.slots[guildID]
	if s == nil {
		s = &slot{}
		m.slots[guildID] = s
	}
	return s
}

// Join connects to channelID in guildID, reusing the current connection
// when it is already bound to that channel.
func (m *Manager) Join(guildID, channelID string) error {
	s := m.slotFor(guildID)
	s.dialMu.Lock()
	defer s.dialMu.Unlock()

	_, err := m.connect(s, guildID, channelID)
	return err
}

// connect returns the slot's connection to channelID, dialing if needed.
// The caller holds s.dialMu.
func (m *Manager) connect(s *slot, guildID, channelID string) (Conn, error) {
	m.mu.Lock()
	current := s.conn
	m.mu.Unlock()
	if current != nil && current.ChannelID() == channelID {
		return current, nil
	}

	conn, err := m.dialer.Join(guildID, channelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionUnavailable, err)
	}
	if conn == nil {
		return nil, ErrConnectionUnavailable
	}

	m.mu.Lock()
	s.conn = conn
	m.mu.Unlock()
	return conn, nil
}

// ChannelID reports the channel the bot is connected to in guildID.
func (m *Manager) ChannelID(guildID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.slots[guildID]
	if s == nil || s.conn == nil {
		return "", false
	}
	return s.conn.ChannelID(), true
}

// Leave stops any playback in guildID and disconnects. It returns the
// channel that was left, or ErrNotConnected.
func (m *Manager) Leave(guildID string) (string, error) {
	m.mu.Lock()
	s := m.slots[guildID]
	m.mu.Unlock()
	if s == nil {
		return "", ErrNotConnected
	}

	s.dialMu.Lock()
	defer s.dialMu.Unlock()

	m.mu.Lock()
	conn := s.conn
	if conn == nil {
		m.mu.Unlock()
		return "", ErrNotConnected
	}
	s.conn = nil
	playing := s.playing
	s.playing = nil
	m.mu.Unlock()

	if playing != nil {
		playing.cancel()
		<-playing.done
	}

	channelID := conn.ChannelID()
	if err := conn.Disconnect(); err != nil {
		return channelID, fmt.Errorf("failed to disconnect: %w", err)
	}
	return channelID, nil
}

// Stop cancels the active playback in guildID and reports whether there was one.
func (m *Manager) Stop(guildID string) bool {
	m.mu.Lock()
	s := m.slots[guildID]
	if s == nil || s.playing == nil {
		m.mu.Unlock()
		return false
	}
	playing := s.playing
	s.playing = nil
	m.mu.Unlock()

	playing.cancel()
	<-playing.done
	return true
}

// Playing returns the title of the active playback in guildID.
func (m *Manager) Playing(guildID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.slots[guildID]
	if s == nil || s.playing == nil {
		return "", false
	}
	return s.playing.title, true
}

// Play binds the guild's connection to channelID and streams frames on it in
// the background. A playback already active in the guild is replaced: it is
// cancelled and the new one starts once it has stopped sending. Play takes
// ownership of frames and closes it when streaming ends.
func (m *Manager) Play(guildID, channelID, title string, frames io.ReadCloser) error {
	s := m.slotFor(guildID)
	s.dialMu.Lock()
	conn, err := m.connect(s, guildID, channelID)
	if err != nil {
		s.dialMu.Unlock()
		frames.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	next := &activePlayback{
		title:  title,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.mu.Lock()
	previous := s.playing
	s.playing = next
	m.mu.Unlock()
	s.dialMu.Unlock()

	if previous != nil {
		previous.cancel()
	}

	go m.stream(ctx, guildID, conn, next, previous, frames)
	return nil
}

func (m *Manager) stream(ctx context.Context, guildID string, conn Conn, p, previous *activePlayback, frames io.ReadCloser) {
	defer close(p.done)
	defer frames.Close()
	defer p.cancel()

	if previous != nil {
		<-previous.done
	}

	// Unblocks a pending frame read when the playback is cancelled.
	stopClose := context.AfterFunc(ctx, func() { frames.Close() })
	defer stopClose()

	if err := conn.Speaking(true); err != nil {
		slog.Error("Failed to set speaking state", "guildID", guildID, "error", err)
	}

	err := opus.StreamToVoice(ctx, opus.NewFrameReader(frames), conn.Opus(), m.sendTimeout)
	switch {
	case ctx.Err() != nil:
		slog.Info("Playback stopped", "guildID", guildID, "sound", p.title)
	case err == nil:
		slog.Info("Finished playing sound", "guildID", guildID, "sound", p.title)
	default:
		slog.Error("Playback failed", "guildID", guildID, "sound", p.title, "error", err)
	}

	if err := conn.Speaking(false); err != nil {
		slog.Error("Failed to stop speaking", "guildID", guildID, "error", err)
	}

	m.mu.Lock()
	if s := m.slots[guildID]; s != nil && s.playing == p {
		s.playing = nil
	}
	m.mu.Unlock()
}

// Close stops every playback and disconnects from every guild.
func (m *Manager) Close() error {
	m.mu.Lock()
	guildIDs := make([]string, 0, len(m.slots))
	for guildID := range m.slots {
		guildIDs = append(guildIDs, guildID)
	}
	m.mu.Unlock()

	var errs []error
	for _, guildID := range guildIDs {
		if _, err := m.Leave(guildID); err != nil && !errors.Is(err, ErrNotConnected) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
