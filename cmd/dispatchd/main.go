// Command dispatchd wires the order queue, the batching engine, and the
// wave dispatcher into a periodic dispatch-cycle runner. It is a
// simulation harness, not a production server: orders and drivers are
// read from CSV snapshots (§6.4), and progress is either printed to
// stdout or shown in a terminal dashboard behind --dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tangiraiC/passl-dispatch/pkg/audit"
	"github.com/tangiraiC/passl-dispatch/pkg/clock"
	"github.com/tangiraiC/passl-dispatch/pkg/config"
	"github.com/tangiraiC/passl-dispatch/pkg/cycle"
	"github.com/tangiraiC/passl-dispatch/pkg/dispatch"
	"github.com/tangiraiC/passl-dispatch/pkg/ingest"
	"github.com/tangiraiC/passl-dispatch/pkg/model"
	"github.com/tangiraiC/passl-dispatch/pkg/notify"
	"github.com/tangiraiC/passl-dispatch/pkg/queue"
	"github.com/tangiraiC/passl-dispatch/pkg/report"
	"github.com/tangiraiC/passl-dispatch/pkg/routing"
)

var (
	configPath  = flag.String("config", config.DefaultConfigFile, "Path to the dispatchd JSON config file")
	ordersPath  = flag.String("orders", "orders.csv", "Path to the simulation orders CSV")
	driversPath = flag.String("drivers", "drivers.csv", "Path to the simulation drivers CSV")
	webhookURL  = flag.String("webhook", "", "Optional webhook URL for wave offer notifications; logs only if empty")
	reportPath  = flag.String("report", "", "If set, write an XLSX cycle report here on shutdown")
	dashboard   = flag.Bool("dashboard", false, "Run a live terminal dashboard instead of logging to stdout")
	generate    = flag.Bool("generate-config", false, "Write a default config file to -config and exit")
)

// fleetPool is an in-memory DriverPool snapshot loaded once at startup;
// accepted jobs do not change it. A stand-in for a real fleet service.
type fleetPool struct {
	mu      sync.Mutex
	drivers map[string]model.Driver
}

func newFleetPool(drivers []model.Driver) *fleetPool {
	byID := make(map[string]model.Driver, len(drivers))
	for _, d := range drivers {
		byID[d.ID] = d
	}
	return &fleetPool{drivers: byID}
}

func (p *fleetPool) AvailableDrivers(ctx context.Context) ([]model.Driver, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Driver, 0, len(p.drivers))
	for _, d := range p.drivers {
		if d.Status == model.DriverAvailable {
			out = append(out, d)
		}
	}
	return out, nil
}

func main() {
	flag.Parse()

	if *generate {
		if err := config.Save(config.Default(), *configPath); err != nil {
			fmt.Fprintf(os.Stderr, "dispatchd: generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote default config to %s\n", *configPath)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dispatchd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadOrDefaultConfig(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(cfg.Logging)

	orders, err := ingest.LoadOrders(*ordersPath)
	if err != nil {
		return fmt.Errorf("load orders: %w", err)
	}
	drivers, err := ingest.LoadDrivers(*driversPath)
	if err != nil {
		return fmt.Errorf("load drivers: %w", err)
	}

	oracle, closeOracle, err := newOracle(cfg.Routing)
	if err != nil {
		return err
	}
	defer closeOracle()

	auditLog, err := audit.Open(cfg.Audit.SQLiteDSN)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer auditLog.Close()

	notifier := newNotifier(*webhookURL, log)
	locks := dispatch.NewInMemoryLockManager(clock.Real{})
	dispatcher, err := dispatch.NewWaveDispatcher(cfg.Dispatch, locks, notifier, clock.Real{}, oracle)
	if err != nil {
		return fmt.Errorf("build dispatcher: %w", err)
	}

	q := queue.New()
	now := time.Now()
	for _, o := range orders {
		q.EnqueueRaw(o, now)
	}

	runner := &cycle.Runner{
		Queue:        q,
		Batching:     cfg.Batching,
		StopOracle:   oracle,
		PickupOracle: oracle,
		Dispatcher:   dispatcher,
		Drivers:      newFleetPool(drivers),
		Audit:        auditLog,
		Clock:        clock.Real{},
		Log:          log,
		Cycle:        cfg.Cycle,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *dashboard {
		if err := runDashboard(ctx, runner, auditLog, log, cfg.Cycle); err != nil {
			return err
		}
		return maybeWriteReport(runner, log)
	}
	return runHeadless(ctx, runner, log, cfg.Cycle)
}

func runHeadless(ctx context.Context, runner *cycle.Runner, log zerolog.Logger, cycleCfg config.CycleConfig) error {
	ticker := time.NewTicker(time.Duration(cycleCfg.TickIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	cycleNum := 0
	for {
		select {
		case <-ctx.Done():
			runner.Wait()
			return maybeWriteReport(runner, log)
		case <-ticker.C:
			cycleNum++
			cycleID := fmt.Sprintf("cycle-%d", cycleNum)
			if err := runner.Tick(ctx, cycleID); err != nil {
				log.Error().Err(err).Str("cycle_id", cycleID).Msg("tick failed")
			}
		}
	}
}

func maybeWriteReport(runner *cycle.Runner, log zerolog.Logger) error {
	if *reportPath == "" || runner.Audit == nil {
		return nil
	}
	events, err := runner.Audit.Recent(10000)
	if err != nil {
		return fmt.Errorf("query audit events for report: %w", err)
	}
	if err := report.WriteCycleReport(events, *reportPath); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Info().Str("path", *reportPath).Msg("wrote cycle report")
	return nil
}

func loadOrDefaultConfig(path string) (config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if cfg.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return log.Level(level)
}

func newOracle(cfg config.RoutingConfig) (routing.Oracle, func(), error) {
	var persister routing.CachePersister
	var closeFn func()
	if cfg.CacheDBPath != "" {
		bolt, err := routing.NewBoltCachePersister(cfg.CacheDBPath)
		if err != nil {
			return nil, func() {}, fmt.Errorf("open oracle cache: %w", err)
		}
		persister = bolt
		closeFn = func() { bolt.Close() }
	} else {
		closeFn = func() {}
	}

	oracle, err := routing.NewHaversineOracle(cfg.AverageSpeedMetersPerSec, persister)
	if err != nil {
		return nil, closeFn, fmt.Errorf("build oracle: %w", err)
	}
	return oracle, closeFn, nil
}

func newNotifier(url string, log zerolog.Logger) dispatch.PushNotifier {
	if url == "" {
		return notify.NewLoggingNotifier(log)
	}
	return notify.NewWebhookNotifier(url)
}
