package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/methodslab/studychat/internal/chat"
	"github.com/methodslab/studychat/internal/config"
	"github.com/methodslab/studychat/internal/httpapi"
	"github.com/methodslab/studychat/internal/httpapi/handlers"
	"github.com/methodslab/studychat/internal/logging"
	"github.com/methodslab/studychat/internal/logincode"
	"github.com/methodslab/studychat/internal/prompt"
	"github.com/methodslab/studychat/internal/store/mongostore"
	"github.com/methodslab/studychat/internal/store/rabbitmq"
	"github.com/methodslab/studychat/internal/store/redisstore"
	"github.com/methodslab/studychat/internal/transcript"
)

func main() {
	logging.Init()

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	cfg := config.Load()

	parts, err := prompt.Load(cfg.PartsFile)
	if err != nil {
		slog.Error("load parts", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		slog.Error("mongo connect", "err", err)
		os.Exit(1)
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Close(cctx)
	}()

	if err := db.EnsureIndexes(ctx); err != nil {
		slog.Error("ensure indexes", "err", err)
		os.Exit(1)
	}

	stores := make(map[string]*transcript.Store)
	for _, p := range parts.All() {
		stores[p.Name] = transcript.NewStore(db.Collection(p.Collection()))
	}

	codes := logincode.NewResolver(db.Collection(mongostore.CollectionLoginCodes))

	state := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL)
	defer state.Close()
	if err := state.Ping(ctx); err != nil {
		slog.Error("redis ping", "err", err)
		os.Exit(1)
	}

	rabbit, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		slog.Error("rabbit connect", "err", err)
		os.Exit(1)
	}
	defer rabbit.Close()

	var stateStore chat.StateStore = state
	h := handlers.NewHandler(cfg, parts, stores, stateStore, codes, rabbit)
	r := httpapi.NewRouter(cfg, h)

	slog.Info("server listening", "addr", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
