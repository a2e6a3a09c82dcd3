package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/thread-scout/internal/config"
	"github.com/DeafMist/thread-scout/internal/dedupe"
	"github.com/DeafMist/thread-scout/internal/elasticsearch"
	"github.com/DeafMist/thread-scout/internal/engine"
	"github.com/DeafMist/thread-scout/internal/jobs"
	"github.com/DeafMist/thread-scout/internal/logger"
	"github.com/DeafMist/thread-scout/internal/models"
)

type reportIndexer interface {
	IndexReport(ctx context.Context, doc models.ReportDocument) error
}

type researchRunner interface {
	Run(ctx context.Context, q models.Query) (*models.SearchResponse, error)
}

func main() {
	_ = godotenv.Load()
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	eng, err := engine.FromConfig(ctx, &cfg.Engine, log)
	if err != nil {
		log.Error("init engine", slog.Any("err", err))
		os.Exit(1)
	}

	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.JobsTopic,
		GroupID:        cfg.KafkaConsumer,
		MinBytes:       1,
		MaxBytes:       1e6,
		CommitInterval: 0, // manual commit only
	})
	defer reader.Close()

	dlqTopic := cfg.JobsTopic + "_dlq"
	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       dlqTopic,
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.JobsTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", dlqTopic),
		slog.Any("backends", eng.Status().Backends),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, eng, esClient, cache, msg, time.Now); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			if !sendToDLQ(ctx, log, dlqWriter, msg, err, cfg.MaxRetries, sleepCtx) {
				if ctx.Err() != nil {
					log.Info("context canceled during DLQ retry")
					return
				}
				// Skip the commit so the job is redelivered after restart.
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// processMessage runs one queued job and archives its report. A job id that
// is already claimed is acknowledged without running it again.
func processMessage(ctx context.Context, log *slog.Logger, runner researchRunner, idx reportIndexer, cache *dedupe.Cache, msg kafka.Message, now func() time.Time) error {
	job, err := jobs.Decode(msg.Value)
	if err != nil {
		return err
	}

	if !cache.Claim(job.ID) {
		log.Debug("duplicate job", slog.String("job_id", job.ID))
		return nil
	}

	ctx = logger.WithRequestID(ctx, job.RequestID)
	jlog := logger.From(ctx, log).With(slog.String("job_id", job.ID))

	resp, err := runner.Run(ctx, job.Query)
	if err != nil {
		cache.Release(job.ID)
		return fmt.Errorf("run job %s: %w", job.ID, err)
	}

	doc := jobs.BuildReport(job, resp, now())
	if err := idx.IndexReport(ctx, doc); err != nil {
		cache.Release(job.ID)
		return fmt.Errorf("index report for job %s: %w", job.ID, err)
	}

	jlog.Info("indexed report", slog.String("id", doc.ID), slog.String("mode", doc.SearchMode))
	return nil
}

// sendToDLQ copies msg to the dead-letter topic with error context, retrying
// with exponential backoff. It reports whether the write succeeded.
func sendToDLQ(ctx context.Context, log *slog.Logger, w jobs.MessageWriter, msg kafka.Message, cause error, retries int, sleep func(context.Context, time.Duration) error) bool {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	for attempt := range retries {
		dlqErr := w.WriteMessages(ctx, dlqMsg)
		if dlqErr == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", dlqErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		if err := sleep(ctx, backoff); err != nil {
			return false
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
