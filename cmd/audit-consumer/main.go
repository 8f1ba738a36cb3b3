package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/opsdeck/platform/internal/domain"
	"github.com/opsdeck/platform/internal/infra"
)

// audit-consumer tails the security audit mirror topic and emits each event
// as a structured log line for downstream SIEM shipping.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("audit consumer failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, cfg.AuditTopic,
		"audit-consumer", cfg.KafkaEnabled, logger)
	if !consumer.Enabled() {
		return fmt.Errorf("kafka is disabled; audit-consumer needs KAFKA_ENABLED=true")
	}
	defer consumer.Close()

	logger.Info("audit-consumer started", "topic", cfg.AuditTopic)

	for {
		msg, err := consumer.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info("audit-consumer shutting down")
				return nil
			}
			logger.Error("read message", "error", err)
			continue
		}

		var event domain.SecurityEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("malformed audit event", "error", err, "offset", msg.Offset)
			continue
		}

		logger.Info("audit event",
			"id", event.ID,
			"kind", event.Kind,
			"severity", event.Severity,
			"subject", event.Subject,
			"source_ip", event.SourceIP,
			"path", event.Path,
			"detail", event.Detail,
			"environment", event.Environment,
			"timestamp", event.Timestamp,
		)
	}
}
