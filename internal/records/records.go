// Package records implements the record store plugin: durable CRUD access
// to free-form application records in the shared SQLite file.
package records

import (
	"context"
	"fmt"
	"time"

	"github.com/HerbHall/chronicle/pkg/models"
	"github.com/HerbHall/chronicle/pkg/plugin"
	"github.com/HerbHall/chronicle/pkg/roles"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ roles.RecordProvider = (*Module)(nil)
)

// Module implements the records plugin.
type Module struct {
	logger *zap.Logger
	cfg    Config
	store  *Store
	bus    plugin.EventBus
}

// New creates a new records plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "records",
		Version:     "0.1.0",
		Description: "Durable storage of application records",
		Required:    true,
		Roles:       []string{roles.RoleRecordStore},
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal records config: %w", err)
		}
	}

	if deps.Store != nil {
		if err := deps.Store.Migrate(context.Background(), "records", migrations()); err != nil {
			return fmt.Errorf("records migrations: %w", err)
		}
		m.store = NewStore(deps.Store.DB(), m.cfg.DefaultPerPage, m.cfg.MaxPerPage)
	}
	m.bus = deps.Bus

	m.logger.Info("records module initialized",
		zap.Int("default_per_page", m.cfg.DefaultPerPage),
		zap.Int("max_per_page", m.cfg.MaxPerPage),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("records module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("records module stopped")
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	if m.store == nil {
		return plugin.HealthStatus{Status: "degraded", Message: "store not available"}
	}
	n, err := m.store.Count(ctx)
	if err != nil {
		return plugin.HealthStatus{Status: "unhealthy", Message: err.Error()}
	}
	return plugin.HealthStatus{
		Status:  "healthy",
		Details: map[string]string{"records": fmt.Sprintf("%d", n)},
	}
}

// Record implements roles.RecordProvider.
func (m *Module) Record(ctx context.Context, id int64) (*models.Record, error) {
	if m.store == nil {
		return nil, storageErr("get", errNoStore)
	}
	return m.store.Get(ctx, id)
}

// SearchRecords implements roles.RecordProvider.
func (m *Module) SearchRecords(ctx context.Context, field, equals string, limit int) ([]models.Record, error) {
	if m.store == nil {
		return nil, storageErr("list", errNoStore)
	}
	recs, _, err := m.store.List(ctx, Filter{Field: field, Equals: equals, PerPage: limit})
	return recs, err
}

// InsertRecord implements roles.RecordProvider.
func (m *Module) InsertRecord(ctx context.Context, fields map[string]any) (int64, error) {
	if m.store == nil {
		return 0, storageErr("insert", errNoStore)
	}
	id, err := m.store.Insert(ctx, fields)
	if err != nil {
		return 0, err
	}
	m.publishEvent(ctx, EventRecordCreated, map[string]any{"id": id, "fields": len(fields)})
	return id, nil
}

// publishEvent publishes an event to the bus, if one is wired.
func (m *Module) publishEvent(ctx context.Context, topic string, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.PublishAsync(ctx, plugin.Event{
		Topic:     topic,
		Source:    "records",
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
