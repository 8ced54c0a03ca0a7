package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/l1jgo/arena/internal/component"
	"github.com/l1jgo/arena/internal/match"
	"github.com/l1jgo/arena/internal/pool"
	"github.com/l1jgo/arena/internal/vmath"
	"go.uber.org/zap"
)

// inputPollInterval is how often the host drains peer requests between ticks.
const inputPollInterval = 2 * time.Millisecond

func runHost(cfgPath string) error {
	// 1. Load config
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Session.Name, "主機")

	// 3. Static data and rules
	assets, err := loadAssets(cfg, log)
	if err != nil {
		return err
	}
	if assets.Rules != nil {
		defer assets.Rules.Close()
	}

	// 4. Build the authoritative match
	printSection("物件池")
	collector := serveMetrics(cfg.Metrics, log)
	host, err := match.NewHost(cfg, assets, collector, log)
	if err != nil {
		return fmt.Errorf("host: %w", err)
	}
	for _, k := range pool.Kinds {
		r, _ := host.Exec.Registry(k)
		total := 0
		for _, c := range r.Categories() {
			st, _ := r.Stats(c)
			total += st.Total
		}
		printStat(k.String(), total)
	}
	fmt.Println()

	if err := host.Listen(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	// 5. Game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()
	pollTicker := time.NewTicker(inputPollInterval)
	defer pollTicker.Stop()

	printSection("對戰就緒")
	printReady(fmt.Sprintf("監聽位址 %s", host.Addr().String()))
	printReady(fmt.Sprintf("對戰編號 %s", host.MatchID))
	printReady(fmt.Sprintf("遊戲迴圈啟動 (tick: %s)", cfg.Network.TickRate))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			host.Tick(cfg.Network.TickRate)
		case <-pollTicker.C:
			host.PollInput()
		case sig := <-shutdownCh:
			log.Info("收到關閉信號", zap.String("signal", sig.String()))
			host.Shutdown()
			log.Info("主機已停止", zap.Uint64("ticks", host.Ticks()))
			return nil
		}
	}
}

func runJoin(cfgPath, addr string, autoFire time.Duration) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Network.HostAddress = addr
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Session.Name, "加入者")

	assets, err := loadAssets(cfg, log)
	if err != nil {
		return err
	}
	if assets.Rules != nil {
		defer assets.Rules.Close()
	}
	collector := serveMetrics(cfg.Metrics, log)

	sess, err := match.DialHost(context.Background(), cfg, log)
	if err != nil {
		return err
	}
	peer := match.NewPeer(cfg, sess, assets, collector, log)
	peer.Join()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()

	printSection("已連線")
	printReady(fmt.Sprintf("主機位址 %s", cfg.Network.HostAddress))
	fmt.Println()

	// Simulated trigger: one fire point straight ahead of the spawn.
	pose := component.Pose{Position: vmath.Vec3{Y: 1}, Rotation: vmath.Identity}
	var sinceFire time.Duration

	for {
		select {
		case <-ticker.C:
			peer.Tick(cfg.Network.TickRate)
			if peer.Closed() {
				log.Info("對戰結束", zap.Int("replicated", peer.Mirror.Len()))
				return nil
			}
			if autoFire <= 0 || !peer.Joined() {
				continue
			}
			sinceFire += cfg.Network.TickRate
			if sinceFire >= autoFire {
				sinceFire = 0
				peer.Gun.Fire([]component.Pose{pose}, pose)
			}
		case sig := <-shutdownCh:
			log.Info("收到關閉信號", zap.String("signal", sig.String()))
			peer.Close()
			return nil
		}
	}
}
