// Command worker consumes the backend's domain events and maintains
// operational telemetry: per-topic counters, structured audit logs, and a
// health endpoint for orchestrator probes.  It is deployed separately from
// the API server so event processing lag never affects request latency.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/edu008/HeatQuest/internal/config"
	"github.com/edu008/HeatQuest/internal/infrastructure/messaging/kafka"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/prometheus"
)

const defaultGroupID = "heatquest-worker"

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	groupID := flag.String("group", defaultGroupID, "Kafka consumer group id")
	topics := flag.String("topics", "", "comma-separated topic filter (default: all event topics)")
	healthAddr := flag.String("health-addr", ":8081", "address for the health and metrics endpoint")
	flag.Parse()

	if err := run(*configPath, *groupID, *topics, *healthAddr); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, groupID, topicFilter, healthAddr string) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}

	log, err := logging.NewLogger(logging.LogConfig(cfg.Log))
	if err != nil {
		return err
	}
	log = log.Named("worker")

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "heatquest",
		Subsystem:            "worker",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, log)
	if err != nil {
		return err
	}

	eventsTotal := collector.RegisterCounter(
		"events_total", "Domain events consumed, by topic and outcome.", "topic", "outcome")
	eventLag := collector.RegisterHistogram(
		"event_lag_seconds", "Delay between event emission and consumption.",
		[]float64{0.1, 0.5, 1, 5, 30, 120, 600}, "topic")

	topics := selectTopics(topicFilter)
	if len(topics) == 0 {
		return fmt.Errorf("no known topics in filter %q", topicFilter)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	consumers := make([]*kafka.Consumer, 0, len(topics))
	for _, topic := range topics {
		handler := auditHandler(topic, log, eventsTotal, eventLag)
		consumer, err := kafka.NewConsumer(cfg.Kafka, groupID, topic, handler, log)
		if err != nil {
			return err
		}
		consumers = append(consumers, consumer)

		wg.Add(1)
		go func(topic string, c *kafka.Consumer) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil {
				log.Error("Consumer stopped", logging.String("topic", topic), logging.Err(err))
				stop()
			}
		}(topic, consumer)
	}

	health := healthServer(healthAddr, collector)
	go func() {
		if err := health.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Health server failed", logging.Err(err))
		}
	}()

	log.Info("worker started",
		logging.String("group", groupID),
		logging.Any("topics", topics))

	<-ctx.Done()
	log.Info("worker shutting down")

	for _, c := range consumers {
		_ = c.Close()
	}
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return health.Shutdown(shutdownCtx)
}

// selectTopics resolves the --topics filter against the known event topics.
func selectTopics(filter string) []string {
	known := []string{
		kafka.TopicScanCompleted,
		kafka.TopicCellAnalyzed,
		kafka.TopicMissionCreated,
	}
	if filter == "" {
		return known
	}

	wanted := make(map[string]bool)
	for _, t := range strings.Split(filter, ",") {
		wanted[strings.TrimSpace(t)] = true
	}

	var out []string
	for _, t := range known {
		if wanted[t] {
			out = append(out, t)
		}
	}
	return out
}

// auditHandler logs each event with its payload fields and records counters.
func auditHandler(topic string, log logging.Logger, eventsTotal prometheus.CounterVec, eventLag prometheus.HistogramVec) kafka.Handler {
	return func(ctx context.Context, envelope kafka.EventEnvelope) error {
		if !envelope.Timestamp.IsZero() {
			eventLag.WithLabelValues(topic).Observe(time.Since(envelope.Timestamp).Seconds())
		}

		fields := []logging.Field{
			logging.String("event_id", envelope.EventID),
			logging.String("topic", topic),
		}

		switch topic {
		case kafka.TopicScanCompleted:
			var p kafka.ScanCompletedPayload
			if err := json.Unmarshal(envelope.Payload, &p); err != nil {
				eventsTotal.WithLabelValues(topic, "decode_error").Inc()
				return err
			}
			fields = append(fields,
				logging.String("parent_key", p.ParentKey),
				logging.Int("cells", p.ChildCount),
				logging.Int("hotspots", p.HotspotCount),
				logging.Bool("cache_hit", p.CacheHit),
				logging.Int64("duration_ms", p.DurationMs))
		case kafka.TopicCellAnalyzed:
			var p kafka.CellAnalyzedPayload
			if err := json.Unmarshal(envelope.Payload, &p); err != nil {
				eventsTotal.WithLabelValues(topic, "decode_error").Inc()
				return err
			}
			fields = append(fields,
				logging.String("child_cell_id", p.ChildCellID),
				logging.String("provider", p.Provider),
				logging.Bool("success", p.Success))
		case kafka.TopicMissionCreated:
			var p kafka.MissionCreatedPayload
			if err := json.Unmarshal(envelope.Payload, &p); err != nil {
				eventsTotal.WithLabelValues(topic, "decode_error").Inc()
				return err
			}
			fields = append(fields,
				logging.String("mission_id", p.MissionID),
				logging.Float64("heat_score", p.HeatScore))
		}

		log.Info("Event consumed", fields...)
		eventsTotal.WithLabelValues(topic, "ok").Inc()
		return nil
	}
}

func healthServer(addr string, collector prometheus.MetricsCollector) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", collector.Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
