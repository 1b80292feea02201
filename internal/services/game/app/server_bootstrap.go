package server

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/delving.space/internal/platform/timeouts"
	"github.com/louisbranch/delving.space/internal/services/game/battlelog"
	"github.com/louisbranch/delving.space/internal/services/game/content"
	"github.com/louisbranch/delving.space/internal/services/game/domain/combat"
	"github.com/louisbranch/delving.space/internal/services/game/domain/group"
	"github.com/louisbranch/delving.space/internal/services/game/push"
	"github.com/louisbranch/delving.space/internal/services/game/storage/ephemeral"
	storagesqlite "github.com/louisbranch/delving.space/internal/services/game/storage/sqlite"
)

// Health service names reported as serving once the core is wired.
const (
	healthCombat = "delving.game.Combat"
	healthGroup  = "delving.game.Group"
)

// HealthServices lists the health service names the server reports,
// including the empty whole-server name.
func HealthServices() []string {
	return []string{"", healthCombat, healthGroup}
}

// New wires every component from cfg and opens the listeners. Nothing is
// served until Serve.
func New(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("listen address is required")
	}
	tables, err := content.Default()
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	generator, err := tables.Generator()
	if err != nil {
		return nil, fmt.Errorf("build encounter generator: %w", err)
	}
	roller, err := tables.Roller()
	if err != nil {
		return nil, fmt.Errorf("build loot roller: %w", err)
	}

	bundle, err := openStorageBundle(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	emitter := battlelog.NewEmitter(bundle.durable)

	resolver, err := combat.New(combat.Options{
		Config:    cfg.Combat,
		Store:     bundle.durable,
		Ephemeral: bundle.ephemeral,
		Generator: generator,
		Roller:    roller,
		Dungeons:  tables.Dungeons,
		DropRules: tables.DropRules,
		Emitter:   emitter,
	})
	if err != nil {
		bundle.Close()
		return nil, fmt.Errorf("create combat resolver: %w", err)
	}
	coordinator, err := group.New(group.Options{
		Config:    cfg.Group,
		Store:     bundle.durable,
		Ephemeral: bundle.ephemeral,
		Templates: tables.GroupTemplates,
		Events:    tables.GroupEvents,
		Chains:    tables.ChainTasks,
		Emitter:   emitter,
	})
	if err != nil {
		bundle.Close()
		return nil, fmt.Errorf("create group coordinator: %w", err)
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		bundle.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	s := &Server{
		listener:    listener,
		stores:      bundle,
		resolver:    resolver,
		coordinator: coordinator,
		maintainer:  group.NewMaintainer(coordinator, bundle.ephemeral),
	}
	s.dispatcher = NewDispatcher(resolver, coordinator, nil)

	if addr := strings.TrimSpace(cfg.PushAddr); addr != "" {
		pushListener, err := net.Listen("tcp", addr)
		if err != nil {
			_ = listener.Close()
			bundle.Close()
			return nil, fmt.Errorf("listen push on %s: %w", addr, err)
		}
		s.hub = push.New(push.Options{
			OriginPatterns: cfg.OriginPatterns,
			Dispatcher:     s.dispatcher,
			AdminCommands:  cfg.AdminCommands,
		})
		s.dispatcher.publisher = s.hub
		mux := http.NewServeMux()
		mux.Handle("/ws", s.hub)
		s.pushListener = pushListener
		s.pushServer = &http.Server{
			Handler:           otelhttp.NewHandler(mux, "game.push"),
			ReadHeaderTimeout: timeouts.ReadHeader,
		}
	}

	s.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	s.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(healthCombat, grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(healthGroup, grpc_health_v1.HealthCheckResponse_SERVING)
	return s, nil
}

// openStorageBundle opens the sqlite store at path and a fresh in-memory
// ephemeral store.
func openStorageBundle(path string) (*storageBundle, error) {
	if strings.TrimSpace(path) == "" {
		path = filepath.Join("data", "game.db")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	store, err := storagesqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open game store: %w", err)
	}
	if info, err := os.Stat(path); err == nil {
		log.Printf("game store %s (%s)", path, humanize.Bytes(uint64(info.Size())))
	}
	return &storageBundle{durable: store, ephemeral: ephemeral.New()}, nil
}

// ensureDir creates parent paths for sqlite files so startup can create DB files.
func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	return nil
}
