package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/methodslab/studychat/internal/llm"
	"github.com/methodslab/studychat/internal/logging"
	"github.com/methodslab/studychat/internal/prompt"
	"github.com/methodslab/studychat/internal/session"
	"github.com/methodslab/studychat/internal/transcript"
)

var ErrUnknownPart = errors.New("chat: unknown part")

// TranscriptStore is the durable record of one part's conversations.
type TranscriptStore interface {
	AppendMessage(ctx context.Context, userID, sessionToken string, msg transcript.Message) error
	SaveFullTranscript(ctx context.Context, userID, sessionToken string, history []transcript.Message) error
}

// StateStore holds the in-flight history of a browser session.
type StateStore interface {
	History(ctx context.Context, token, part string) ([]transcript.Message, error)
	SaveHistory(ctx context.Context, token, part string, history []transcript.Message) error
}

// Engine drives one persona turn: build the prompt from session history,
// call the provider, then write the turn back to the transcript store.
type Engine struct {
	parts        *prompt.Registry
	providers    *llm.Registry
	providerName string
	stores       map[string]TranscriptStore
	state        StateStore
}

// NewEngine wires the engine. An empty providerName falls through to the
// registry's default provider.
func NewEngine(parts *prompt.Registry, providers *llm.Registry, providerName string, stores map[string]TranscriptStore, state StateStore) *Engine {
	return &Engine{
		parts:        parts,
		providers:    providers,
		providerName: providerName,
		stores:       stores,
		state:        state,
	}
}

// History returns the session's conversation for a part, seeding the part's
// greeting into an empty one.
func (e *Engine) History(ctx context.Context, sess session.Context, part string) ([]transcript.Message, error) {
	p, ok := e.parts.Get(part)
	if !ok {
		return nil, ErrUnknownPart
	}

	history, err := e.state.History(ctx, sess.Token, part)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 && p.Greeting != "" {
		history = []transcript.Message{{Role: transcript.RoleAssistant, Content: p.Greeting}}
		if err := e.state.SaveHistory(ctx, sess.Token, part, history); err != nil {
			return nil, err
		}
	}
	return history, nil
}

func (e *Engine) providerFor(ctx context.Context, p prompt.Part) (llm.Provider, error) {
	return e.providers.Get(ctx, e.providerName, p.Model)
}

// providerMessages prepends the system prompt to the session history.
func providerMessages(p prompt.Part, history []transcript.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history)+1)
	out = append(out, llm.Message{Role: transcript.RoleSystem, Content: p.SystemPrompt})
	for _, m := range history {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// persistTurn writes the finished turn: both role appends first, then the
// authoritative full save. The appends are partially redundant with the full
// save but leave an append-only trail if the save never lands.
func (e *Engine) persistTurn(ctx context.Context, sess session.Context, part string, userMsg, assistantMsg transcript.Message, history []transcript.Message) error {
	store, ok := e.stores[part]
	if !ok {
		return ErrUnknownPart
	}

	if err := store.AppendMessage(ctx, sess.UserID, sess.Token, userMsg); err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}
	if err := store.AppendMessage(ctx, sess.UserID, sess.Token, assistantMsg); err != nil {
		return fmt.Errorf("persist assistant message: %w", err)
	}
	if err := store.SaveFullTranscript(ctx, sess.UserID, sess.Token, history); err != nil {
		return fmt.Errorf("persist transcript: %w", err)
	}
	return nil
}

// Send runs one synchronous turn and returns the assistant reply.
func (e *Engine) Send(ctx context.Context, sess session.Context, part, content string) (string, error) {
	p, ok := e.parts.Get(part)
	if !ok {
		return "", ErrUnknownPart
	}

	provider, err := e.providerFor(ctx, p)
	if err != nil {
		return "", err
	}

	history, err := e.History(ctx, sess, part)
	if err != nil {
		return "", err
	}

	userMsg := transcript.Message{Role: transcript.RoleUser, Content: content}
	history = append(history, userMsg)

	reply, err := provider.Chat(ctx, providerMessages(p, history))
	if err != nil {
		return "", err
	}

	assistantMsg := transcript.Message{Role: transcript.RoleAssistant, Content: reply}
	history = append(history, assistantMsg)

	if err := e.persistTurn(ctx, sess, part, userMsg, assistantMsg, history); err != nil {
		return "", err
	}
	if err := e.state.SaveHistory(ctx, sess.Token, part, history); err != nil {
		return "", err
	}
	return reply, nil
}

// SendStream runs one turn streaming the assistant reply as it arrives.
// Persistence happens only after the stream completes in full; an interrupted
// stream leaves the turn unsaved.
func (e *Engine) SendStream(ctx context.Context, sess session.Context, part, content string) (<-chan string, <-chan struct{}, <-chan error) {
	outChunks := make(chan string, 16)
	outDone := make(chan struct{})
	outErrs := make(chan error, 1)

	go func() {
		defer close(outErrs)
		defer close(outDone)
		defer close(outChunks)

		p, ok := e.parts.Get(part)
		if !ok {
			outErrs <- ErrUnknownPart
			return
		}

		provider, err := e.providerFor(ctx, p)
		if err != nil {
			outErrs <- err
			return
		}
		sp, ok := provider.(llm.StreamProvider)
		if !ok {
			outErrs <- errors.New("provider does not support streaming")
			return
		}

		history, err := e.History(ctx, sess, part)
		if err != nil {
			outErrs <- err
			return
		}

		userMsg := transcript.Message{Role: transcript.RoleUser, Content: content}
		history = append(history, userMsg)

		pChunks, pErrs := sp.StreamChat(ctx, providerMessages(p, history))

		var b strings.Builder
		for c := range pChunks {
			b.WriteString(c)
			outChunks <- c
		}

		select {
		case err := <-pErrs:
			if err != nil {
				// Discard the partial reply rather than persist it half-formed.
				outErrs <- err
				return
			}
		default:
		}

		assistantMsg := transcript.Message{Role: transcript.RoleAssistant, Content: b.String()}
		history = append(history, assistantMsg)

		if err := e.persistTurn(ctx, sess, part, userMsg, assistantMsg, history); err != nil {
			logging.WithTurn(part, sess.UserID, sess.Token).
				Error("transcript write failed after streamed turn", "err", err)
			outErrs <- err
			return
		}
		if err := e.state.SaveHistory(ctx, sess.Token, part, history); err != nil {
			outErrs <- err
			return
		}
	}()

	return outChunks, outDone, outErrs
}
