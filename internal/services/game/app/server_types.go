package server

import (
	"log"
	"net"
	"net/http"

	"github.com/louisbranch/delving.space/internal/services/game/domain/combat"
	"github.com/louisbranch/delving.space/internal/services/game/domain/group"
	"github.com/louisbranch/delving.space/internal/services/game/push"
	"github.com/louisbranch/delving.space/internal/services/game/storage/ephemeral"
	storagesqlite "github.com/louisbranch/delving.space/internal/services/game/storage/sqlite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

// Config is the runtime configuration of the game server.
type Config struct {
	// Addr is the gRPC health listen address.
	Addr string
	// PushAddr is the websocket listen address. Empty disables push.
	PushAddr       string
	OriginPatterns []string
	// AdminCommands lets push peers send operator commands.
	AdminCommands bool
	DBPath        string

	Combat combat.Config
	Group  group.Config
}

// Server hosts the game core: solo combat, group encounters, their
// maintenance loop, a gRPC health endpoint, and the push socket.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server

	pushListener net.Listener
	pushServer   *http.Server
	hub          *push.Hub

	stores      *storageBundle
	resolver    *combat.Resolver
	coordinator *group.Coordinator
	maintainer  *group.Maintainer
	dispatcher  *Dispatcher
}

// storageBundle groups the durable and ephemeral stores and manages their
// lifecycle.
type storageBundle struct {
	durable   *storagesqlite.Store
	ephemeral *ephemeral.Store
}

// Close closes the durable store, logging any error.
func (b *storageBundle) Close() {
	if b == nil || b.durable == nil {
		return
	}
	if err := b.durable.Close(); err != nil {
		log.Printf("close game store: %v", err)
	}
}
