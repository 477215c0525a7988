package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/neuro-rehab-portal/internal/assistant"
	"github.com/hackgods/neuro-rehab-portal/internal/events"
	"github.com/hackgods/neuro-rehab-portal/internal/rehab"
)

const (
	FallbackReply = "Keep moving forward, you're doing great!"
	EmptyReply    = "I'm with you on every step of this journey!"
)

var ErrBlankMessage = errors.New("message text is blank")

func welcomeMessage(name string) string {
	return fmt.Sprintf("Welcome back, %s! I'm MindBot. How is your recovery journey going today?", name)
}

func personaInstruction(name string) string {
	return fmt.Sprintf("You are MindBot, a supportive AI assistant for a neuro-rehabilitation patient named %s. Keep responses warm, encouraging, and short.", name)
}

// Conversation is the append-only transcript with the assistant. Sends are
// serialized, so a reply always directly follows the message it answers. A
// send still waiting for its turn gives up when its context ends and leaves
// no trace in the transcript.
type Conversation struct {
	gen     assistant.Generator
	name    string
	owner   string
	timeout time.Duration
	rec     *events.Recorder
	logger  *zap.Logger

	sendSem chan struct{}

	mu        sync.RWMutex
	messages  []rehab.Message
	composing bool
}

func NewConversation(gen assistant.Generator, name, owner string, timeout time.Duration, rec *events.Recorder, logger *zap.Logger) *Conversation {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conversation{
		gen:     gen,
		name:    name,
		owner:   owner,
		timeout: timeout,
		rec:     rec,
		logger:  logger,
		sendSem: make(chan struct{}, 1),
		messages: []rehab.Message{{
			Role: rehab.MessageAssistant,
			Text: welcomeMessage(name),
			At:   time.Now(),
		}},
	}
}

func (c *Conversation) Messages() []rehab.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]rehab.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Composing reports whether a reply is being generated.
func (c *Conversation) Composing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.composing
}

// Send appends the patient's message and the assistant's reply. Blank input
// is rejected with ErrBlankMessage and changes nothing. Assistant failures
// never surface: a fixed encouragement is appended instead.
func (c *Conversation) Send(ctx context.Context, text string) (rehab.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return rehab.Message{}, ErrBlankMessage
	}

	select {
	case c.sendSem <- struct{}{}:
	case <-ctx.Done():
		return rehab.Message{}, ctx.Err()
	}
	defer func() { <-c.sendSem }()

	// Lost the race between the semaphore and cancellation.
	if err := ctx.Err(); err != nil {
		return rehab.Message{}, err
	}

	c.mu.Lock()
	c.messages = append(c.messages, rehab.Message{Role: rehab.MessageUser, Text: text, At: time.Now()})
	c.composing = true
	c.mu.Unlock()

	reply := c.generate(ctx, text)

	msg := rehab.Message{Role: rehab.MessageAssistant, Text: reply, At: time.Now()}
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.composing = false
	c.mu.Unlock()

	return msg, nil
}

func (c *Conversation) generate(ctx context.Context, prompt string) string {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reply, err := c.gen.Generate(callCtx, prompt, personaInstruction(c.name))
	if err != nil {
		c.logger.Warn("assistant unavailable, using fallback reply", zap.String("owner", c.owner), zap.Error(err))
		c.rec.Record(ctx, events.EventChatFallback, c.owner, map[string]any{"reason": err.Error()})
		return FallbackReply
	}
	if strings.TrimSpace(reply) == "" {
		return EmptyReply
	}
	return reply
}
