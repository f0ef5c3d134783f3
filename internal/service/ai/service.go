package ai

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/aisetech/chat-relay/backend/internal/model/chat"
	"github.com/aisetech/chat-relay/backend/internal/model/persona"
)

// primingQuery is the scripted first turn of every new conversation. Its
// answer anchors the persona before any real user turn arrives.
const primingQuery = "Stay in character from now on. Greet the visitor in one short sentence."

// Service adapts the generative backend to the relay: it owns the prompt
// chain and the fixed persona, and hands out Conversation handles.
type Service struct {
	chatModel    model.ChatModel
	persona      persona.Persona
	historyLimit int
	chain        compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the prompt chain for the supplied model and persona.
// The model is injected so callers (and tests) control its construction.
func NewService(ctx context.Context, p persona.Persona, chatModel model.ChatModel, historyLimit int) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required: %w", ErrBackendUnavailable)
	}
	if historyLimit < 1 {
		historyLimit = 10
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel:    chatModel,
		persona:      p,
		historyLimit: historyLimit,
		chain:        runnable,
	}, nil
}

// Persona returns the fixed persona this service speaks as.
func (s *Service) Persona() persona.Persona {
	return s.persona
}

// NewConversation opens a fresh handle and performs the priming exchange.
// A priming failure degrades the persona instead of blocking the session:
// the handle is returned either way and the failure is only logged.
func (s *Service) NewConversation(ctx context.Context) *Conversation {
	conv := &Conversation{}
	if s == nil || s.chain == nil {
		return conv
	}

	reply, err := s.invoke(ctx, conv, primingQuery)
	if err != nil {
		log.Printf("[ai] priming exchange failed, continuing with degraded persona: %v", err)
		return conv
	}

	conv.record(primingQuery, reply, s.historyLimit)
	return conv
}

// SendTurn submits one user turn on the handle's conversation and returns
// the backend's completion text. The call is bounded by the caller's
// context; on success the exchange is recorded in the replay window.
func (s *Service) SendTurn(ctx context.Context, conv *Conversation, text string) (string, error) {
	if s == nil || s.chain == nil {
		return "", ErrBackendUnavailable
	}

	reply, err := s.invoke(ctx, conv, text)
	if err != nil {
		return "", err
	}

	conv.record(text, reply, s.historyLimit)
	return reply, nil
}

// RebuildConversation is the recovery path: it opens a fresh handle and
// reconstructs the replay window from the session's recorded turns, ready
// for the next turn. The window lives on this side of the wire, so the
// reconstruction is deterministic and needs no backend round-trips.
func (s *Service) RebuildConversation(recentTurns []chat.Turn) *Conversation {
	conv := &Conversation{}
	if s == nil {
		return conv
	}

	start := 0
	if len(recentTurns) > s.historyLimit {
		start = len(recentTurns) - s.historyLimit
	}

	for _, turn := range recentTurns[start:] {
		switch turn.Role {
		case chat.RoleUser:
			conv.history = append(conv.history, schema.UserMessage(turn.Text))
		case chat.RoleAssistant:
			conv.history = append(conv.history, schema.AssistantMessage(turn.Text, nil))
		}
	}

	log.Printf("[ai] rebuilt conversation window from %d recorded turns", len(conv.history))
	return conv
}

// Release frees the handle. Best-effort, nil-safe, and idempotent.
func (s *Service) Release(conv *Conversation) {
	if conv == nil || conv.released {
		return
	}
	conv.history = nil
	conv.released = true
}

func (s *Service) invoke(ctx context.Context, conv *Conversation, query string) (string, error) {
	input := map[string]any{
		"system":  BuildSystemPrompt(s.persona),
		"history": conv.window(),
		"query":   query,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return "", ErrBackendTimeout
		}
		// A canceled caller (client gone) is not a backend fault; keep it
		// outside the recoverable taxonomy so nothing retries against a
		// dead context.
		if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
			return "", fmt.Errorf("backend call canceled: %w", context.Canceled)
		}
		return "", &BackendError{Details: err.Error()}
	}
	if response == nil {
		return "", &BackendError{Details: "empty completion"}
	}

	return response.Content, nil
}
