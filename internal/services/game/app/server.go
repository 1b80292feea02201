package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"google.golang.org/grpc"

	"github.com/louisbranch/delving.space/internal/platform/timeouts"
	"github.com/louisbranch/delving.space/internal/services/game/domain/combat"
	"github.com/louisbranch/delving.space/internal/services/game/domain/group"
	"github.com/louisbranch/delving.space/internal/services/game/push"
)

// Addr returns the gRPC listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// PushAddr returns the websocket listener address, empty when push is off.
func (s *Server) PushAddr() string {
	if s == nil || s.pushListener == nil {
		return ""
	}
	return s.pushListener.Addr().String()
}

// Resolver returns the solo combat resolver.
func (s *Server) Resolver() *combat.Resolver { return s.resolver }

// Coordinator returns the group encounter coordinator.
func (s *Server) Coordinator() *group.Coordinator { return s.coordinator }

// Dispatcher returns the action dispatcher shared with the push socket.
func (s *Server) Dispatcher() *Dispatcher { return s.dispatcher }

// Hub returns the push hub, nil when push is off.
func (s *Server) Hub() *push.Hub { return s.hub }

// Run creates and serves a game server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	srv, err := New(cfg)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// Serve runs the listeners and the group maintenance loop, and blocks until
// one listener fails or the context ends. Stores are closed on return.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.stores.Close()

	maintCtx, stopMaint := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Go(func() {
		s.maintainer.Run(maintCtx)
	})
	defer func() {
		stopMaint()
		wg.Wait()
	}()

	log.Printf("game server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 2)
	go func() {
		if err := s.grpcServer.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr <- fmt.Errorf("serve gRPC: %w", err)
			return
		}
		serveErr <- nil
	}()
	if s.pushServer != nil {
		log.Printf("game push listening at %v", s.pushListener.Addr())
		go func() {
			if err := s.pushServer.Serve(s.pushListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("serve push: %w", err)
				return
			}
			serveErr <- nil
		}()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}
	s.shutdown()
	return err
}

func (s *Server) shutdown() {
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.pushServer != nil {
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		if err := s.pushServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown push server: %v", err)
		}
		cancel()
	}
	s.grpcServer.GracefulStop()
}
