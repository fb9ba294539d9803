package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/methodslab/studychat/internal/config"
	"github.com/methodslab/studychat/internal/export"
	"github.com/methodslab/studychat/internal/logging"
	"github.com/methodslab/studychat/internal/logincode"
	"github.com/methodslab/studychat/internal/prompt"
	"github.com/methodslab/studychat/internal/store/mongostore"
	"github.com/methodslab/studychat/internal/store/rabbitmq"
	"github.com/methodslab/studychat/internal/transcript"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		slog.Error("rabbit dial", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		slog.Error("rabbit channel", "err", err)
		os.Exit(1)
	}
	defer ch.Close()

	// Topology must match the publisher: main queue dead-letters to the DLQ,
	// the retry queue TTLs back into the main queue.
	mainQ := cfg.RabbitQueue
	retryQ := mainQ + ".retry"
	dlqQ := mainQ + ".dlq"

	if _, err := ch.QueueDeclare(dlqQ, true, false, false, false, nil); err != nil {
		slog.Error("queue declare", "queue", dlqQ, "err", err)
		os.Exit(1)
	}
	if _, err := ch.QueueDeclare(retryQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": mainQ,
	}); err != nil {
		slog.Error("queue declare", "queue", retryQ, "err", err)
		os.Exit(1)
	}
	if _, err := ch.QueueDeclare(mainQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqQ,
	}); err != nil {
		slog.Error("queue declare", "queue", mainQ, "err", err)
		os.Exit(1)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		slog.Error("qos", "err", err)
		os.Exit(1)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		slog.Error("consume", "err", err)
		os.Exit(1)
	}

	slog.Info("worker started", "queue", cfg.RabbitQueue, "concurrency", concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var job rabbitmq.ExportJob
				if err := json.Unmarshal(d.Body, &job); err != nil || job.JobID == "" {
					slog.Error("bad message", "worker", workerID, "err", err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleExport(ctx, cfg, parts, db, job); err != nil {
					slog.Error("export job failed", "worker", workerID, "job_id", job.JobID,
						"cost", time.Since(start).String(), "err", err)
					_ = d.Nack(false, false)
					continue
				}
				slog.Info("export job done", "worker", workerID, "job_id", job.JobID,
					"cost", time.Since(start).String())

				if err := d.Ack(false); err != nil {
					slog.Error("ack failed", "worker", workerID, "job_id", job.JobID, "err", err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				slog.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

// handleExport dumps the requested parts' transcript collections to text
// files under <export dir>/<job id>/ and the login codes to CSV alongside.
func handleExport(ctx context.Context, cfg config.Config, parts *prompt.Registry, db *mongostore.DB, job rabbitmq.ExportJob) error {
	selected := parts.All()
	if len(job.Parts) > 0 {
		selected = selected[:0]
		for _, name := range job.Parts {
			if p, ok := parts.Get(name); ok {
				selected = append(selected, p)
			}
		}
	}

	outDir := filepath.Join(cfg.ExportDir, job.JobID)

	for _, p := range selected {
		store := transcript.NewStore(db.Collection(p.Collection()))
		recs, err := store.ListRecords(ctx)
		if err != nil {
			return err
		}
		files, err := export.WriteRecords(outDir, p.Name, recs)
		if err != nil {
			return err
		}
		slog.Info("part exported", "job_id", job.JobID, "part", p.Name, "files", len(files))
	}

	codes, err := logincode.NewResolver(db.Collection(mongostore.CollectionLoginCodes)).List(ctx)
	if err != nil {
		return err
	}
	if _, err := logincode.ExportCSVFile(outDir, codes); err != nil {
		return err
	}
	return nil
}
