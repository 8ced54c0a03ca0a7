package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/l1jgo/arena/internal/config"
	"github.com/l1jgo/arena/internal/data"
	"github.com/l1jgo/arena/internal/match"
	"github.com/l1jgo/arena/internal/metrics"
	"github.com/l1jgo/arena/internal/scripting"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "0.1.0"

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "arena",
		Short:         "Arena - replicated object pools for a peer-hosted match",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to the TOML config (default $ARENA_CONFIG or config/arena.toml)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Arena v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "host",
		Short: "Host a match as the authoritative peer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cfgPath)
		},
	})

	var autoFire time.Duration
	joinCmd := &cobra.Command{
		Use:   "join [host:port]",
		Short: "Join a hosted match",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := ""
			if len(args) == 1 {
				addr = args[0]
			}
			return runJoin(cfgPath, addr, autoFire)
		},
	}
	joinCmd.Flags().DurationVar(&autoFire, "auto-fire", 0, "Fire the gun at this interval (0 = never)")
	root.AddCommand(joinCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name, role string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Printf("\033[36;1m  │\033[0m              Arena  v%-6s               \033[36;1m│\033[0m\n", version)
	fmt.Println("\033[36;1m  │\033[0m       競技場 · 物件池同步核心             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m對戰:\033[0m %s \033[90m(%s)\033[0m\n\n", name, role)
}

func displayWidth(s string) int {
	// CJK characters take two columns
	w := 0
	for _, r := range s {
		if r > 0x7F {
			w += 2
		} else {
			w++
		}
	}
	return w
}

func printSection(title string) {
	lineLen := 46 - displayWidth(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - displayWidth(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Shared startup ─────────────────────────────────────────────────

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("ARENA_CONFIG")
	}
	if path == "" {
		path = "config/arena.toml"
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// loadAssets reads the pool table, the crate spawn points and the Lua rules.
// A missing scripts directory falls back to built-in rules.
func loadAssets(cfg *config.Config, log *zap.Logger) (match.Assets, error) {
	printSection("資料載入")

	table, err := data.LoadPoolTable(cfg.Data.PoolList)
	if err != nil {
		return match.Assets{}, fmt.Errorf("pool list: %w", err)
	}
	printStat("物件池類別", table.Count())

	spawns, err := data.LoadSpawnPoints(cfg.Data.CrateSpawnList)
	if err != nil {
		return match.Assets{}, fmt.Errorf("crate spawn list: %w", err)
	}
	printStat("木箱生成點", len(spawns))

	rules, err := scripting.NewEngine(cfg.Data.ScriptsDir, log)
	if err != nil {
		log.Warn("Lua 規則載入失敗，使用內建規則", zap.Error(err))
	} else {
		printOK("Lua 規則引擎已載入")
	}
	fmt.Println()

	return match.Assets{Pools: table, SpawnPoints: spawns, Rules: rules}, nil
}

// serveMetrics exposes /metrics when enabled and returns the collector the
// match reports to, nil when disabled.
func serveMetrics(cfg config.MetricsConfig, log *zap.Logger) *metrics.Collector {
	if !cfg.Enabled {
		return nil
	}
	c := metrics.NewCollector(nil)
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: cfg.BindAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics 服務停止", zap.Error(err))
		}
	}()
	printReady(fmt.Sprintf("監控指標 http://%s/metrics", cfg.BindAddress))
	return c
}
