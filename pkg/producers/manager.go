package producers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rhordoan/logpulse/pkg/broker"
	"github.com/rhordoan/logpulse/pkg/datasource"
	"github.com/rhordoan/logpulse/pkg/models"
	"github.com/rhordoan/logpulse/pkg/supervisor"
)

// Manager reads the enabled DataSource rows, instantiates a Producer per
// row, and runs each under a supervisor.Loop that restarts it with
// exponential backoff (1s -> 10s cap) on unhandled failure. It reacts to
// DataSource changes (added/removed/disabled) via the repository's Watch
// stream for the lifetime of the process, matching the original per-row
// lifecycle management in original_source's producer manager.
type Manager struct {
	repo     datasource.Repository
	broker   *broker.Broker
	registry *Registry

	mu     sync.Mutex
	active map[string]*supervisor.Loop
}

// NewManager builds a Manager around the given DataSource repository, stream
// broker, and producer registry.
func NewManager(repo datasource.Repository, b *broker.Broker, registry *Registry) *Manager {
	return &Manager{
		repo:     repo,
		broker:   b,
		registry: registry,
		active:   make(map[string]*supervisor.Loop),
	}
}

// Run loads the current enabled sources, starts a supervised producer for
// each, and then follows repository changes until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	sources, err := m.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, s := range sources {
		if s.Enabled {
			m.start(ctx, s)
		}
	}

	changes := m.repo.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			m.stopAll()
			return nil
		case change, ok := <-changes:
			if !ok {
				m.stopAll()
				return nil
			}
			m.handleChange(ctx, change)
		}
	}
}

func (m *Manager) handleChange(ctx context.Context, change datasource.Change) {
	switch change.Kind {
	case datasource.ChangeDelete:
		m.stop(change.Row.ID)
	case datasource.ChangeUpsert:
		id := change.Row.ID
		m.stop(id)
		if change.Row.Enabled {
			m.start(ctx, change.Row)
		}
	}
}

func (m *Manager) start(ctx context.Context, source models.DataSource) {
	producer, err := m.registry.Build(source, m.broker)
	if err != nil {
		slog.Error("producer build failed", "source_id", source.ID, "type", source.Type, "error", err)
		return
	}

	loop := supervisor.NewLoop(source.Type+":"+source.Name, producer.Run, supervisor.DefaultRestartPolicy)

	m.mu.Lock()
	m.active[source.ID] = loop
	m.mu.Unlock()

	loop.Start(ctx)
	slog.Info("producer started", "source_id", source.ID, "type", source.Type, "name", source.Name)
}

func (m *Manager) stop(id string) {
	m.mu.Lock()
	loop, ok := m.active[id]
	delete(m.active, id)
	m.mu.Unlock()
	if ok {
		loop.Stop()
	}
}

func (m *Manager) stopAll() {
	m.mu.Lock()
	loops := make([]*supervisor.Loop, 0, len(m.active))
	for id, loop := range m.active {
		loops = append(loops, loop)
		delete(m.active, id)
	}
	m.mu.Unlock()
	for _, loop := range loops {
		loop.Stop()
	}
}
