package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/methodslab/studychat/internal/config"
	"github.com/methodslab/studychat/internal/logging"
	"github.com/methodslab/studychat/internal/logincode"
	"github.com/methodslab/studychat/internal/store/mongostore"
)

func main() {
	count := flag.Int("n", 50, "number of login codes to mint")
	length := flag.Int("len", logincode.DefaultLength, "code length")
	outDir := flag.String("out", "exports", "directory for the handout CSV")
	flag.Parse()

	logging.Init()

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	if *count <= 0 || *count > 10000 {
		fmt.Fprintln(os.Stderr, "n must be between 1 and 10000")
		os.Exit(2)
	}

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		slog.Error("mongo connect", "err", err)
		os.Exit(1)
	}
	defer func() {
		cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer ccancel()
		_ = db.Close(cctx)
	}()

	if err := db.EnsureIndexes(ctx); err != nil {
		slog.Error("ensure indexes", "err", err)
		os.Exit(1)
	}

	codes := logincode.NewResolver(db.Collection(mongostore.CollectionLoginCodes))

	minted, err := codes.Mint(ctx, *count, *length)
	if err != nil {
		slog.Error("mint failed", "minted", len(minted), "err", err)
		os.Exit(1)
	}

	path, err := logincode.ExportCSVFile(*outDir, minted)
	if err != nil {
		slog.Error("csv export failed", "err", err)
		os.Exit(1)
	}

	unused, err := codes.UnusedCount(ctx)
	if err != nil {
		slog.Error("count unused", "err", err)
		os.Exit(1)
	}

	fmt.Printf("minted %d codes (length %d)\n", len(minted), *length)
	fmt.Printf("csv written to %s\n", path)
	fmt.Printf("unused codes in store: %d\n", unused)
}
