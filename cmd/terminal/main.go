package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Indemos/Terminal-sub003/internal/account"
	"github.com/Indemos/Terminal-sub003/internal/api"
	"github.com/Indemos/Terminal-sub003/internal/events"
	"github.com/Indemos/Terminal-sub003/internal/gateway"
	"github.com/Indemos/Terminal-sub003/internal/instrument"
	applog "github.com/Indemos/Terminal-sub003/internal/log"
	"github.com/Indemos/Terminal-sub003/internal/order"
	"github.com/Indemos/Terminal-sub003/internal/sim"
	"github.com/Indemos/Terminal-sub003/pkg/config"
	"github.com/Indemos/Terminal-sub003/pkg/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := applog.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	instruments := loadUniverse(cfg, logger)

	var journal *db.Journal
	if cfg.EnableJournal {
		journal, err = db.Open(cfg.JournalPath)
		if err != nil {
			logger.Fatal("open journal", zap.Error(err))
		}
		defer journal.Close()
	}

	bus := events.NewBus()
	venue := sim.New(sim.Config{
		StartPrice: cfg.SimStartPrice,
		Spread:     cfg.SimSpread,
		Step:       cfg.SimStep,
		Interval:   time.Duration(cfg.SimIntervalMs) * time.Millisecond,
		Balance:    cfg.AccountBalance,
		Seed:       cfg.SimSeed,
	}, logger, instruments...)

	var gatewayJournal gateway.Journal
	if journal != nil {
		gatewayJournal = journal
	}

	gw, err := gateway.New(gateway.Options{
		Account:   account.New(cfg.AccountDescriptor, cfg.AccountBalance, instruments...),
		Adapter:   venue,
		Bus:       bus,
		Validator: order.NewValidator(),
		Composer:  order.NewComposer(),
		Journal:   gatewayJournal,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("build gateway", zap.Error(err))
	}

	if journal != nil {
		replayFills(ctx, journal, gw, logger)
	}

	gateways := gateway.NewManager(logger)
	if err := gateways.Register(gw); err != nil {
		logger.Fatal("register gateway", zap.Error(err))
	}

	if err := gw.Connect(ctx); err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	if err := gw.SubscribeAll(ctx); err != nil {
		logger.Warn("subscribe", zap.Error(err))
	}

	server := api.NewServer(bus, gateways, journal, logger)
	go func() {
		logger.Info("monitor listening", zap.String("port", cfg.Port))
		if err := server.Run(":" + cfg.Port); err != nil {
			logger.Error("monitor server", zap.Error(err))
			stop()
		}
	}()

	logger.Info("terminal started",
		zap.String("account", cfg.AccountDescriptor),
		zap.Int("instruments", len(instruments)))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	gateways.Stop(shutdownCtx)
	logger.Info("terminal stopped")
}

// replayFills folds journaled fills back into the account's realized
// performance. The journal's fill-ID guard keeps redelivered venue events
// from accruing a second time on top of the replay.
func replayFills(ctx context.Context, journal *db.Journal, gw *gateway.Gateway, logger *zap.Logger) {
	fills, err := journal.ListFills(ctx, 10000)
	if err != nil {
		logger.Warn("replay fills", zap.Error(err))
		return
	}
	for _, f := range fills {
		gw.Account().Performance.Add(f.Balance)
	}
	if len(fills) > 0 {
		logger.Info("replayed fills", zap.Int("count", len(fills)))
	}
}

// loadUniverse reads the instrument universe file, falling back to a small
// default set when the file is absent.
func loadUniverse(cfg *config.Config, logger *zap.Logger) []*instrument.Instrument {
	instruments, err := instrument.LoadUniverse(cfg.UniversePath)
	if err != nil {
		logger.Warn("universe file unavailable, using defaults",
			zap.String("path", cfg.UniversePath), zap.Error(err))
		return []*instrument.Instrument{
			instrument.New("SPY"),
			instrument.New("QQQ"),
		}
	}
	return instruments
}
