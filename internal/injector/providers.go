package injector

import (
	"fmt"
	"strings"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/mist/internal/config"
	"github.com/zeusync/mist/internal/core/action"
	"github.com/zeusync/mist/internal/core/component"
	"github.com/zeusync/mist/internal/core/entity"
	"github.com/zeusync/mist/internal/core/events/bus"
	"github.com/zeusync/mist/internal/core/observability/log"
	"github.com/zeusync/mist/internal/core/observability/metrics"
	"github.com/zeusync/mist/internal/core/render"
	"github.com/zeusync/mist/internal/core/storage/memory"
	"github.com/zeusync/mist/internal/core/storage/sqlite"
	"github.com/zeusync/mist/internal/server"
	"github.com/zeusync/mist/pkg/mist"
)

// ProviderSet builds a server from a validated configuration.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideBus,
	ProvideStore,
	ProvideSource,
	ProvideRenderer,
	ProvideEngine,
	ProvideServer,
)

// DocumentStore is an entity store whose types hold config-declared
// documents.
type DocumentStore interface {
	entity.Store
	Define(name string) entity.Type
}

type sqliteDocuments struct {
	*sqlite.Store
}

func (s sqliteDocuments) Define(name string) entity.Type {
	return s.Store.Define(name, entity.DocumentDecoder())
}

func ProvideLogger(cfg *config.Config) (log.Log, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: log.level: %w", config.ErrInvalidConfig, err)
	}
	return log.New(level), nil
}

func ProvideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideMetrics returns nil when metrics are disabled; every recorder is
// nil-safe.
func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) *metrics.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New(metrics.WithNamespace(cfg.Metrics.Namespace), metrics.WithRegistry(reg))
}

func ProvideBus() bus.EventBus {
	return bus.New()
}

func ProvideStore(cfg *config.Config, b bus.EventBus, logger log.Log) (DocumentStore, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(sqlite.Config{
			Path:     cfg.Storage.Path,
			PoolSize: cfg.Storage.PoolSize,
			Bus:      b,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return sqliteDocuments{store}, func() {
			if err := store.Close(); err != nil {
				logger.Warn("failed to close store", log.Error(err))
			}
		}, nil
	default:
		return memory.New(b, logger), func() {}, nil
	}
}

func ProvideSource(cfg *config.Config) *render.Source {
	return render.NewSource(cfg.Templates.Dir)
}

func ProvideRenderer(src *render.Source) render.Renderer {
	return render.NewTemplateRenderer(src)
}

func ProvideEngine(
	cfg *config.Config,
	b bus.EventBus,
	store DocumentStore,
	src *render.Source,
	renderer render.Renderer,
	logger log.Log,
	m *metrics.Metrics,
) (*mist.Engine, func(), error) {
	components, err := BuildComponents(cfg.Components, store, src)
	if err != nil {
		return nil, nil, err
	}
	engine := mist.New(mist.Options{
		Bus:        b,
		Store:      store,
		Source:     src,
		Renderer:   renderer,
		Logger:     logger,
		Metrics:    m,
		OutboxSize: cfg.Server.OutboxSize,
		Welcome:    cfg.Server.Welcome,
	})
	engine.Configure(components...)
	return engine, func() { _ = engine.Close() }, nil
}

func ProvideServer(cfg *config.Config, engine *mist.Engine, logger log.Log, reg *prometheus.Registry) *server.Server {
	opts := []server.Option{server.WithLogger(logger), server.WithEntityStore(engine.Store())}
	if cfg.Metrics.Enabled {
		opts = append(opts, server.WithMetricsHandler(cfg.Metrics.Path, reg))
	}
	return server.NewServer(cfg.Server, engine.Handler(), opts...)
}

// BuildComponents turns component declarations into components over
// document types of store. Inline templates are registered on src under the
// component name. A repeated name keeps its first declaration; later ones
// are skipped without touching src.
func BuildComponents(decls []config.ComponentConfig, store DocumentStore, src *render.Source) ([]*component.Component, error) {
	out := make([]*component.Component, 0, len(decls))
	seen := make(map[string]bool, len(decls))
	for _, decl := range decls {
		if seen[decl.Name] {
			continue
		}
		seen[decl.Name] = true

		types := make([]entity.Type, 0, len(decl.EntityTypes))
		for _, name := range decl.EntityTypes {
			types = append(types, store.Define(name))
		}

		var opts []component.Option
		switch {
		case decl.Template != "":
			src.Register(decl.Name, decl.Template)
		case decl.TemplateFile != "":
			opts = append(opts, component.WithTemplate(strings.TrimSuffix(decl.TemplateFile, ".html")))
		}

		for _, a := range decl.Actions {
			switch a {
			case config.ActionDelete:
				opts = append(opts, component.WithActions(action.Delete(decl.EntityTypes...)))
			default:
				return nil, fmt.Errorf("%w: component %s: unknown action %q", config.ErrInvalidConfig, decl.Name, a)
			}
		}
		out = append(out, component.New(decl.Name, types, opts...))
	}
	return out, nil
}
