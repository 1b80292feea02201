// Package game parses game command flags and starts the game core.
package game

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/delving.space/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/delving.space/internal/platform/grpc"
	server "github.com/louisbranch/delving.space/internal/services/game/app"
	"github.com/louisbranch/delving.space/internal/services/game/domain/combat"
	"github.com/louisbranch/delving.space/internal/services/game/domain/group"
)

// Config holds game command configuration.
type Config struct {
	Port          int      `env:"DELVING_SPACE_GAME_PORT" envDefault:"8082"`
	Addr          string   `env:"DELVING_SPACE_GAME_ADDR"`
	PushAddr      string   `env:"DELVING_SPACE_GAME_PUSH_ADDR" envDefault:":8083"`
	PushOrigins   []string `env:"DELVING_SPACE_GAME_PUSH_ORIGINS" envSeparator:","`
	DBPath        string   `env:"DELVING_SPACE_GAME_DB_PATH" envDefault:"data/game.db"`
	Debug         bool     `env:"DELVING_SPACE_GAME_DEBUG"`
	AdminCommands bool     `env:"DELVING_SPACE_GAME_ADMIN_COMMANDS"`
	HealthCheck   bool

	RateLimitCount  int           `env:"DELVING_SPACE_GAME_RATE_LIMIT_COUNT" envDefault:"3"`
	RateLimitWindow time.Duration `env:"DELVING_SPACE_GAME_RATE_LIMIT_WINDOW" envDefault:"3s"`

	SaveInterval         time.Duration `env:"DELVING_SPACE_GAME_SAVE_INTERVAL" envDefault:"30s"`
	RegressionInterval   time.Duration `env:"DELVING_SPACE_GAME_REGRESSION_INTERVAL" envDefault:"90s"`
	RegressionFraction   float64       `env:"DELVING_SPACE_GAME_REGRESSION_FRACTION" envDefault:"0.012"`
	LowActivityPerMinute int           `env:"DELVING_SPACE_GAME_LOW_ACTIVITY_PER_MINUTE" envDefault:"2"`
	MaxSessionDuration   time.Duration `env:"DELVING_SPACE_GAME_MAX_SESSION_DURATION" envDefault:"75m"`
	ForceCompleteHPFloor int           `env:"DELVING_SPACE_GAME_FORCE_COMPLETE_HP_FLOOR" envDefault:"5"`
	DamageCooldown       time.Duration `env:"DELVING_SPACE_GAME_DAMAGE_COOLDOWN" envDefault:"2s"`
	RampWindow           time.Duration `env:"DELVING_SPACE_GAME_RAMP_WINDOW" envDefault:"5m"`
	RampMultiplier       float64       `env:"DELVING_SPACE_GAME_RAMP_MULTIPLIER" envDefault:"0.7"`
	RoomCooldown         time.Duration `env:"DELVING_SPACE_GAME_ROOM_COOLDOWN" envDefault:"60m"`
	InitiatorCooldown    time.Duration `env:"DELVING_SPACE_GAME_INITIATOR_COOLDOWN" envDefault:"2h"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The game health server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The game health listen address (overrides -port)")
	fs.StringVar(&cfg.PushAddr, "push-addr", cfg.PushAddr, "The websocket push listen address (empty disables push)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the game SQLite database")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Bypass group encounter start gates")
	fs.BoolVar(&cfg.AdminCommands, "admin-commands", cfg.AdminCommands, "Accept admin commands on the push socket")
	fs.BoolVar(&cfg.HealthCheck, "healthcheck", false, "Probe a running game core and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.RegressionFraction < 0 || cfg.RegressionFraction >= 1 {
		return Config{}, fmt.Errorf("regression fraction %v outside [0, 1)", cfg.RegressionFraction)
	}
	return cfg, nil
}

// ServerConfig maps the command configuration onto the runtime one.
func (c Config) ServerConfig() server.Config {
	addr := strings.TrimSpace(c.Addr)
	if addr == "" {
		addr = fmt.Sprintf(":%d", c.Port)
	}
	combatCfg := combat.DefaultConfig()
	combatCfg.RateLimitCount = c.RateLimitCount
	combatCfg.RateLimitWindow = c.RateLimitWindow

	groupCfg := group.DefaultConfig()
	groupCfg.Debug = c.Debug
	groupCfg.SaveInterval = c.SaveInterval
	groupCfg.RegressionInterval = c.RegressionInterval
	groupCfg.RegressionFraction = c.RegressionFraction
	groupCfg.LowActivityPerMinute = c.LowActivityPerMinute
	groupCfg.ForceCompleteAfter = c.MaxSessionDuration
	groupCfg.ForceCompleteHPFloor = c.ForceCompleteHPFloor
	groupCfg.DamageCooldown = c.DamageCooldown
	groupCfg.RampWindow = c.RampWindow
	groupCfg.RampMultiplier = c.RampMultiplier
	groupCfg.RoomCooldown = c.RoomCooldown
	groupCfg.InitiatorCooldown = c.InitiatorCooldown

	return server.Config{
		Addr:           addr,
		PushAddr:       strings.TrimSpace(c.PushAddr),
		OriginPatterns: c.PushOrigins,
		AdminCommands:  c.AdminCommands,
		DBPath:         c.DBPath,
		Combat:         combatCfg,
		Group:          groupCfg,
	}
}

// Run starts the game core.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceGame, func(ctx context.Context) error {
		return server.Run(ctx, cfg.ServerConfig())
	})
}

// Probe waits until the game core listening on the configured address
// reports every service as SERVING.
func Probe(ctx context.Context, cfg Config) error {
	addr := cfg.ServerConfig().Addr
	if host, port, err := net.SplitHostPort(addr); err == nil && (host == "" || host == "0.0.0.0" || host == "::") {
		addr = net.JoinHostPort("127.0.0.1", port)
	}
	conn, err := platformgrpc.Dial(addr)
	if err != nil {
		return fmt.Errorf("dial game core: %w", err)
	}
	defer conn.Close()
	return platformgrpc.WaitForHealth(ctx, conn, server.HealthServices(), log.Printf)
}
