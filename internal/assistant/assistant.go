// Package assistant answers chat questions about the couple's shared
// schedule and board using the Anthropic Messages API.
//
// Each question is a single pass-through call with the current schedule
// snapshot folded into the system prompt. There is no retry loop; a
// failed call surfaces to the caller and the history is left untouched.
package assistant

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/soulsync-app/soulsync/internal/store"
	"github.com/soulsync-app/soulsync/internal/types"
)

// historyLimit caps the number of turns replayed to the model.
const historyLimit = 20

// Completer produces one assistant reply for a conversation. The
// production implementation calls the Anthropic API; tests substitute a
// canned one.
type Completer interface {
	Complete(ctx context.Context, system string, turns []types.ChatMessage) (string, error)
}

// Options configures the assistant.
type Options struct {
	APIKey   string
	Model    string
	PartnerA string
	PartnerB string
	Logger   *log.Logger
}

// Assistant owns the chat history and builds the schedule-aware prompt.
type Assistant struct {
	completer Completer
	store     *store.Store
	partnerA  string
	partnerB  string
	logger    *log.Logger
}

// New creates an assistant backed by the Anthropic API.
func New(opts Options, st *store.Store) *Assistant {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[assistant] ", log.LstdFlags)
	}
	if opts.Model == "" {
		opts.Model = "claude-sonnet-4-5"
	}
	return &Assistant{
		completer: &anthropicCompleter{
			client: anthropic.NewClient(option.WithAPIKey(opts.APIKey)),
			model:  anthropic.Model(opts.Model),
		},
		store:    st,
		partnerA: opts.PartnerA,
		partnerB: opts.PartnerB,
		logger:   opts.Logger,
	}
}

// NewWithCompleter creates an assistant over a custom completer.
func NewWithCompleter(c Completer, st *store.Store, partnerA, partnerB string, logger *log.Logger) *Assistant {
	if logger == nil {
		logger = log.New(os.Stderr, "[assistant] ", log.LstdFlags)
	}
	return &Assistant{completer: c, store: st, partnerA: partnerA, partnerB: partnerB, logger: logger}
}

// Ask appends the question to the history, asks the model with the
// schedule snapshot in context, persists both turns and returns the reply.
func (a *Assistant) Ask(ctx context.Context, question string, events []types.CalendarEvent, tasks []types.Task) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question is required")
	}

	history, err := a.store.ChatHistory(ctx)
	if err != nil {
		return "", err
	}
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	turns := append(history, types.ChatMessage{Role: "user", Text: question})

	reply, err := a.completer.Complete(ctx, a.systemPrompt(events, tasks), turns)
	if err != nil {
		return "", fmt.Errorf("assistant request failed: %w", err)
	}

	turns = append(turns, types.ChatMessage{Role: "model", Text: reply})
	if err := a.store.SaveChatHistory(ctx, turns); err != nil {
		a.logger.Printf("Warning: failed to persist chat history: %v", err)
	}
	return reply, nil
}

// History returns the stored conversation.
func (a *Assistant) History(ctx context.Context) ([]types.ChatMessage, error) {
	return a.store.ChatHistory(ctx)
}

// ClearHistory wipes the stored conversation.
func (a *Assistant) ClearHistory(ctx context.Context) error {
	return a.store.SaveChatHistory(ctx, nil)
}

func (a *Assistant) systemPrompt(events []types.CalendarEvent, tasks []types.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are Sync, the shared assistant for %s and %s. ", a.partnerA, a.partnerB)
	b.WriteString("Answer questions about their schedule and task board warmly and concisely. ")
	fmt.Fprintf(&b, "Today is %s.\n\n", time.Now().Format("Monday, January 2, 2006"))

	b.WriteString("Upcoming events:\n")
	if len(events) == 0 {
		b.WriteString("(none)\n")
	}
	for _, ev := range events {
		if ev.Time != "" {
			fmt.Fprintf(&b, "- %s %s: %s\n", ev.Date, ev.Time, ev.Title)
		} else {
			fmt.Fprintf(&b, "- %s: %s\n", ev.Date, ev.Title)
		}
	}

	b.WriteString("\nTask board:\n")
	if len(tasks) == 0 {
		b.WriteString("(none)\n")
	}
	for _, t := range tasks {
		fmt.Fprintf(&b, "- [%s] %s (%s)\n", t.Status, t.Content, t.Owner)
	}
	return b.String()
}

// anthropicCompleter is the production Completer.
type anthropicCompleter struct {
	client anthropic.Client
	model  anthropic.Model
}

func (c *anthropicCompleter) Complete(ctx context.Context, system string, turns []types.ChatMessage) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(t.Text)
		if t.Role == "model" {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages:  messages,
	})
	if err != nil {
		return "", err
	}

	var reply strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	if reply.Len() == 0 {
		return "", fmt.Errorf("empty model response")
	}
	return reply.String(), nil
}
