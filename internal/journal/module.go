// Package journal implements the activity journal plugin. It subscribes
// to record and generation events and keeps a queryable, exportable log
// of what the system did.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/HerbHall/chronicle/pkg/models"
	"github.com/HerbHall/chronicle/pkg/plugin"
	"github.com/HerbHall/chronicle/pkg/roles"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.HTTPProvider    = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
	_ roles.JournalProvider  = (*Module)(nil)
)

// Module implements the journal plugin.
type Module struct {
	logger *zap.Logger
	cfg    Config
	store  *Store

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new journal plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "journal",
		Version:     "0.1.0",
		Description: "Activity journal built from record and generation events",
		Roles:       []string{roles.RoleJournal},
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal journal config: %w", err)
		}
	}

	if deps.Store != nil {
		if err := deps.Store.Migrate(ctx, "journal", migrations()); err != nil {
			return fmt.Errorf("journal migrations: %w", err)
		}
		m.store = NewStore(deps.Store.DB())
	}

	m.logger.Info("journal module initialized",
		zap.Duration("retention", m.cfg.Retention),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	if m.store != nil && m.cfg.Retention > 0 {
		m.startMaintenance()
	}
	m.logger.Info("journal module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("journal module stopped")
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	if m.store == nil {
		return plugin.HealthStatus{Status: "degraded", Message: "store not available"}
	}
	stats, err := m.store.GetStats(ctx)
	if err != nil {
		return plugin.HealthStatus{Status: "unhealthy", Message: err.Error()}
	}
	return plugin.HealthStatus{
		Status:  "healthy",
		Details: map[string]string{"entries": fmt.Sprintf("%d", stats.TotalEntries)},
	}
}

// Subscriptions implements plugin.EventSubscriber.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: TopicRecordCreated, Handler: m.handleRecordEvent},
		{Topic: TopicRecordUpdated, Handler: m.handleRecordEvent},
		{Topic: TopicRecordDeleted, Handler: m.handleRecordEvent},
		{Topic: TopicGenerationCompleted, Handler: m.handleGenerationEvent},
	}
}

// RecentEntries implements roles.JournalProvider.
func (m *Module) RecentEntries(ctx context.Context, limit int) ([]models.JournalEntry, error) {
	if m.store == nil {
		return nil, fmt.Errorf("journal store not available")
	}
	return m.store.RecentEntries(ctx, limit)
}

// handleRecordEvent journals a record lifecycle event.
func (m *Module) handleRecordEvent(_ context.Context, event plugin.Event) {
	payload, _ := event.Payload.(map[string]any)
	id, hasID := payloadInt64(payload, "id")

	var summary string
	switch event.Topic {
	case TopicRecordCreated:
		fields, _ := payloadInt64(payload, "fields")
		summary = fmt.Sprintf("Record %d created with %d fields", id, fields)
	case TopicRecordUpdated:
		fields, _ := payloadInt64(payload, "fields")
		summary = fmt.Sprintf("Record %d updated (%d fields changed)", id, fields)
	case TopicRecordDeleted:
		summary = fmt.Sprintf("Record %d deleted", id)
	default:
		summary = event.Topic
	}

	var recordID *int64
	if hasID {
		recordID = &id
	}
	m.saveEntry(event, summary, recordID)
}

// handleGenerationEvent journals a completed LLM generation.
func (m *Module) handleGenerationEvent(_ context.Context, event plugin.Event) {
	payload, _ := event.Payload.(map[string]any)

	model, _ := payload["model"].(string)
	durationMS, _ := payloadInt64(payload, "duration_ms")
	completion, _ := payloadInt64(payload, "completion_tokens")

	summary := fmt.Sprintf("Generated %d tokens with %s in %dms", completion, model, durationMS)
	m.saveEntry(event, summary, nil)
}

// saveEntry persists one journal entry built from a bus event.
func (m *Module) saveEntry(event plugin.Event, summary string, recordID *int64) {
	if m.store == nil {
		return
	}

	details, err := json.Marshal(event.Payload)
	if err != nil {
		m.logger.Warn("failed to marshal event payload",
			zap.String("event_topic", event.Topic),
			zap.Error(err),
		)
		details = []byte("{}")
	}

	createdAt := event.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	entry := models.JournalEntry{
		ID:           uuid.New().String(),
		EventType:    event.Topic,
		Summary:      summary,
		Details:      details,
		RecordID:     recordID,
		SourceModule: event.Source,
		CreatedAt:    createdAt,
	}

	if err := m.store.SaveEntry(context.Background(), entry); err != nil {
		m.logger.Warn("failed to save journal entry",
			zap.String("event_topic", event.Topic),
			zap.Error(err),
		)
		return
	}

	m.logger.Debug("journal entry created",
		zap.String("event_type", event.Topic),
		zap.String("summary", summary),
	)
}

// startMaintenance launches a background goroutine that periodically
// deletes entries past the retention window.
func (m *Module) startMaintenance() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.MaintenanceInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.runMaintenance()
			}
		}
	}()
}

// runMaintenance executes a single retention sweep.
func (m *Module) runMaintenance() {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-m.cfg.Retention)
	deleted, err := m.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		m.logger.Warn("failed to delete old journal entries", zap.Error(err))
		return
	}
	if deleted > 0 {
		m.logger.Info("purged old journal entries", zap.Int64("count", deleted))
	}
}

// payloadInt64 extracts an integer from a loosely typed event payload.
func payloadInt64(payload map[string]any, key string) (int64, bool) {
	switch v := payload[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
