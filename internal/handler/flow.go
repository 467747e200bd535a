package handler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/cobot/internal/generator"
)

func InstanceIDFromInteraction(i *discordgo.InteractionCreate) string {
	var customID string

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		customID = i.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		customID = i.ModalSubmitData().CustomID
	default:
		return ""
	}

	return InstanceIDFromCustomID(customID)
}

func InstanceIDFromCustomID(customID string) string {
	parts := strings.SplitN(customID, ":", 2)
	if len(parts) != 2 {
		return ""
	}

	return parts[1]
}

type FlowContext struct {
	InstanceID string
	State      map[string]any

	ended bool
}

// End finishes the flow after the current handler returns, even if the
// node has successors.
func (c *FlowContext) End() {
	c.ended = true
}

type NodeHandler func(context.Context, DiscordSession, *discordgo.InteractionCreate, *FlowContext) error

type Node struct {
	ID      string
	Matcher func(*discordgo.InteractionCreate) bool
	Handler NodeHandler
	Next    []*Node
}

type Flow struct {
	ID   string
	Root *Node
}

type session struct {
	flow      *Flow
	node      *Node
	ctx       *FlowContext
	expiresAt time.Time
}

// DefaultSessionTTL matches how long Discord accepts follow-ups to an interaction.
const DefaultSessionTTL = 15 * time.Minute

type FlowManager struct {
	flowsMu *sync.RWMutex
	flows   map[string]*Flow

	sessionsMu *sync.RWMutex
	sessions   map[string]*session

	idGenerator generator.Generator[string]
	ttl         time.Duration
	now         func() time.Time
}

func NewFlowManager(idGenerator generator.Generator[string]) *FlowManager {
	if idGenerator == nil {
		idGenerator = &generator.UUIDV4Generator{}
	}
	return &FlowManager{
		flowsMu:     &sync.RWMutex{},
		flows:       make(map[string]*Flow),
		sessionsMu:  &sync.RWMutex{},
		sessions:    make(map[string]*session),
		idGenerator: idGenerator,
		ttl:         DefaultSessionTTL,
		now:         time.Now,
	}
}

func (fm *FlowManager) RegisterFlow(flow *Flow) {
	fm.flowsMu.Lock()
	defer fm.flowsMu.Unlock()

	if _, exists := fm.flows[flow.ID]; exists {
		panic("flow already registered")
	}
	fm.flows[flow.ID] = flow
}

// ActiveSessions returns the number of flows waiting for a follow-up interaction.
func (fm *FlowManager) ActiveSessions() int {
	fm.sessionsMu.RLock()
	defer fm.sessionsMu.RUnlock()
	return len(fm.sessions)
}

func (fm *FlowManager) Router(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate) error {
	instanceID := InstanceIDFromInteraction(i)
	if instanceID != "" {
		fm.sessionsMu.RLock()
		session, inFlow := fm.sessions[instanceID]
		fm.sessionsMu.RUnlock()
		if inFlow && fm.now().Before(session.expiresAt) {
			return fm.advance(ctx, s, i, session)
		}
		if inFlow {
			fm.finish(instanceID)
			return &UserError{Message: "This menu has expired. Run the command again."}
		}
	}

	return fm.initializeFlow(ctx, s, i)
}

func (fm *FlowManager) finish(instanceID string) {
	fm.sessionsMu.Lock()
	delete(fm.sessions, instanceID)
	fm.sessionsMu.Unlock()
}

func (fm *FlowManager) advance(
	ctx context.Context,
	s DiscordSession,
	i *discordgo.InteractionCreate,
	sess *session,
) error {
	if len(sess.node.Next) == 0 {
		fm.finish(sess.ctx.InstanceID)
		return nil
	}

	var nextNode *Node
	for _, n := range sess.node.Next {
		if n.Matcher(i) {
			nextNode = n
			break
		}
	}
	if nextNode == nil {
		return nil
	}

	sess.node = nextNode
	err := runHandler(ctx, s, i, sess)

	if len(nextNode.Next) == 0 || sess.ctx.ended {
		fm.finish(sess.ctx.InstanceID)
	}
	return err
}

func (fm *FlowManager) initializeFlow(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate) error {
	// Find the first matching flow
	var f *Flow
	fm.flowsMu.RLock()
	for _, flow := range fm.flows {
		if flow.Root.Matcher(i) {
			f = flow
			break
		}
	}
	fm.flowsMu.RUnlock()
	if f == nil {
		return nil
	}

	instanceID, err := fm.idGenerator.Next()
	if err != nil {
		return fmt.Errorf("failed to generate instance ID: %w", err)
	}

	flowCtx := &FlowContext{
		InstanceID: instanceID,
		State:      make(map[string]any),
	}
	newSess := &session{flow: f, node: f.Root, ctx: flowCtx, expiresAt: fm.now().Add(fm.ttl)}

	fm.sessionsMu.Lock()
	fm.pruneLocked()
	fm.sessions[instanceID] = newSess
	fm.sessionsMu.Unlock()

	err = runHandler(ctx, s, i, newSess)

	// Single-step flows and flows that ended early never wait for a follow-up.
	if len(f.Root.Next) == 0 || flowCtx.ended {
		fm.finish(instanceID)
	}
	return err
}

func (fm *FlowManager) pruneLocked() {
	now := fm.now()
	for id, sess := range fm.sessions {
		if !now.Before(sess.expiresAt) {
			delete(fm.sessions, id)
		}
	}
}

func runHandler(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, sess *session) error {
	return sess.node.Handler(ctx, s, i, sess.ctx)
}
