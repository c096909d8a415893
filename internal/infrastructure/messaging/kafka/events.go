package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
)

// Event topics.
const (
	TopicScanCompleted  = "heat.scan.completed"
	TopicCellAnalyzed   = "heat.cell.analyzed"
	TopicMissionCreated = "heat.mission.created"
)

const schemaVersion = "1.0"

// EventEnvelope is the common frame around every published payload.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// ScanCompletedPayload is emitted after a grid scan finishes, whether it was
// served from cache or computed fresh.
type ScanCompletedPayload struct {
	ParentKey    string  `json:"parent_key"`
	ChildCount   int     `json:"child_count"`
	HotspotCount int     `json:"hotspot_count"`
	CacheHit     bool    `json:"cache_hit"`
	DurationMs   int64   `json:"duration_ms"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
}

// CellAnalyzedPayload is emitted once per analyzed hotspot cell, including
// failed analyzer runs since those still close the cell's lifecycle.
type CellAnalyzedPayload struct {
	ChildCellID string `json:"child_cell_id"`
	AnalysisID  string `json:"analysis_id,omitempty"`
	UserID      string `json:"user_id"`
	Provider    string `json:"provider,omitempty"`
	Success     bool   `json:"success"`
}

// MissionCreatedPayload is emitted when a mission is generated from an
// analysis.
type MissionCreatedPayload struct {
	MissionID  string  `json:"mission_id"`
	AnalysisID string  `json:"analysis_id"`
	UserID     string  `json:"user_id"`
	HeatScore  float64 `json:"heat_score"`
}

// EventPublisher is what the application layer sees.  The Kafka-backed
// implementation and the disabled no-op both satisfy it.
type EventPublisher interface {
	ScanCompleted(ctx context.Context, p ScanCompletedPayload)
	CellAnalyzed(ctx context.Context, p CellAnalyzedPayload)
	MissionCreated(ctx context.Context, p MissionCreatedPayload)
	Close() error
}

type eventPublisher struct {
	producer *Producer
	logger   logging.Logger
}

// NewEventPublisher wraps a producer with envelope framing.
func NewEventPublisher(producer *Producer, log logging.Logger) EventPublisher {
	return &eventPublisher{producer: producer, logger: log.Named("events")}
}

func (e *eventPublisher) ScanCompleted(ctx context.Context, p ScanCompletedPayload) {
	e.publish(ctx, TopicScanCompleted, []byte(p.ParentKey), p)
}

func (e *eventPublisher) CellAnalyzed(ctx context.Context, p CellAnalyzedPayload) {
	e.publish(ctx, TopicCellAnalyzed, []byte(p.ChildCellID), p)
}

func (e *eventPublisher) MissionCreated(ctx context.Context, p MissionCreatedPayload) {
	e.publish(ctx, TopicMissionCreated, []byte(p.UserID), p)
}

func (e *eventPublisher) Close() error {
	return e.producer.Close()
}

func (e *eventPublisher) publish(ctx context.Context, topic string, key []byte, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error("Failed to encode event payload",
			logging.String("topic", topic), logging.Err(err))
		return
	}
	envelope := EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     topic,
		Source:        "heatquest-backend",
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		Payload:       raw,
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		e.logger.Error("Failed to encode event envelope",
			logging.String("topic", topic), logging.Err(err))
		return
	}
	e.producer.PublishAsync(ctx, &Message{Topic: topic, Key: key, Value: value})
}

// nopPublisher drops all events.  Used when Kafka is disabled.
type nopPublisher struct{}

// NewNopPublisher returns an EventPublisher that discards everything.
func NewNopPublisher() EventPublisher { return nopPublisher{} }

func (nopPublisher) ScanCompleted(context.Context, ScanCompletedPayload)   {}
func (nopPublisher) CellAnalyzed(context.Context, CellAnalyzedPayload)     {}
func (nopPublisher) MissionCreated(context.Context, MissionCreatedPayload) {}
func (nopPublisher) Close() error                                          { return nil }
