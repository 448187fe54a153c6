package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/credit-engine/internal/config"
	"github.com/jmehdipour/credit-engine/internal/db"
	"github.com/jmehdipour/credit-engine/internal/kafka"
	"github.com/jmehdipour/credit-engine/internal/logger"
	"github.com/jmehdipour/credit-engine/internal/metrics"
	"github.com/jmehdipour/credit-engine/internal/repository"
	"github.com/jmehdipour/credit-engine/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Copy decision events from Kafka into ClickHouse",
	RunE:  runDecisions,
}

func runDecisions(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) ClickHouse connection
	chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer func() { _ = chDB.Close() }()

	// 3) kafka consumer
	topic := cfg.Kafka.DecisionsTopic
	if topic == "" {
		topic = "credit.decisions"
	}
	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "credit-recorder"
	}

	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	w := worker.NewDecisionRecorder(consumer, repository.NewCHDecisionsRepository(chDB))

	// tune knobs
	if cfg.Recorder.BatchSize > 0 {
		w.BatchSize = cfg.Recorder.BatchSize
	}
	if cfg.Recorder.BatchWait > 0 {
		w.BatchWait = cfg.Recorder.BatchWait
	}

	// 4) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Log.Info("decision recorder started",
		zap.String("topic", topic),
		zap.String("group", groupID),
		zap.Int("batch_size", w.BatchSize),
		zap.Duration("batch_wait", w.BatchWait),
	)

	return w.Run(ctx)
}
