package handlers

import (
	"context"

	"github.com/methodslab/studychat/internal/chat"
	"github.com/methodslab/studychat/internal/config"
	"github.com/methodslab/studychat/internal/llm"
	"github.com/methodslab/studychat/internal/logincode"
	"github.com/methodslab/studychat/internal/prompt"
	"github.com/methodslab/studychat/internal/store/rabbitmq"
	"github.com/methodslab/studychat/internal/transcript"
)

type Handler struct {
	Cfg    config.Config
	Parts  *prompt.Registry
	Engine *chat.Engine
	Codes  *logincode.Resolver
	Rabbit *rabbitmq.Publisher
}

func NewHandler(cfg config.Config, parts *prompt.Registry, stores map[string]*transcript.Store, state chat.StateStore, codes *logincode.Resolver, rabbit *rabbitmq.Publisher) *Handler {
	reg := llm.NewRegistry()
	reg.Register("openai", func(ctx context.Context, model string) (llm.Provider, error) {
		_ = ctx
		return llm.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, model), nil
	})

	engineStores := make(map[string]chat.TranscriptStore, len(stores))
	for part, s := range stores {
		engineStores[part] = s
	}

	return &Handler{
		Cfg:    cfg,
		Parts:  parts,
		Engine: chat.NewEngine(parts, reg, "openai", engineStores, state),
		Codes:  codes,
		Rabbit: rabbit,
	}
}
