package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	app "github.com/christopherrons/herron-trading-engine/internal/app/engine"
	instrumentv1 "github.com/christopherrons/herron-trading-engine/internal/domain/instrument/v1"
	journalv1 "github.com/christopherrons/herron-trading-engine/internal/domain/journal/v1"
	eventpublisher "github.com/christopherrons/herron-trading-engine/internal/usecase/event-publisher"
	instructionreader "github.com/christopherrons/herron-trading-engine/internal/usecase/instruction-reader"
	"github.com/christopherrons/herron-trading-engine/internal/usecase/journal"
	"github.com/christopherrons/herron-trading-engine/internal/usecase/marketdata"
	"github.com/christopherrons/herron-trading-engine/internal/usecase/orderbook"
	"github.com/christopherrons/herron-trading-engine/internal/usecase/registry"
	"github.com/christopherrons/herron-trading-engine/internal/usecase/sequencer"
	"github.com/christopherrons/herron-trading-engine/internal/usecase/snapshot"
	"github.com/christopherrons/herron-trading-engine/pkg/config"
	"github.com/christopherrons/herron-trading-engine/pkg/logger"
	"github.com/christopherrons/herron-trading-engine/pkg/redis"
)

var cfg *config.Config
var log *logger.Logger

func init() {
	var err error
	cfg = &config.Config{}
	err = config.Load(cfg)
	if err != nil {
		panic(err)
	}

	logger, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}

	log = logger
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	redisConfig := redis.DefaultConfig()
	redisConfig.Addrs = cfg.Redis.Addrs
	redisConfig.Password = cfg.Redis.Password
	redisConfig.Username = cfg.Redis.Username
	redisConfig.DB = cfg.Redis.DB
	rclient := redis.NewClient(log, redisConfig)

	if err := rclient.Connect(ctx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "connect_redis",
		})
		return
	}

	reg := registry.NewRegistry(log, orderbook.WithSelfTradePolicy(
		orderbook.SelfTradePolicy(cfg.Engine.SelfTradePolicy),
	))
	if err := registerInstruments(reg, cfg.Instruments); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "register_instruments",
		})
		return
	}

	seq := sequencer.New()
	reader := instructionreader.NewReader(cfg.Kafka, log)
	snapshotStore := snapshot.NewSnapshotStore(rclient, log)
	if err := snapshotStore.Prune(ctx, reg.InstrumentIDs()); err != nil {
		log.Warn("Failed to prune stale snapshots", logger.Field{
			Key:   "error",
			Value: err.Error(),
		})
	}

	sink := eventpublisher.NewKafkaSink(cfg.Kafka, log)
	publisher := eventpublisher.NewPublisher(sink, cfg.Publisher.QueueSize, eventpublisher.Policy(cfg.Publisher.Policy), log)
	publisher.Start(ctx)

	// The engine takes the journal as an interface; keep the variable nil when
	// journaling is disabled so the nil check inside the engine holds.
	var instructionJournal journalv1.Journal
	var journalStore *journal.Store
	if !cfg.Journal.Disabled {
		var err error
		journalStore, err = journal.Open(cfg.Journal.Dir, log)
		if err != nil {
			log.Error(err, logger.Field{
				Key:   "action",
				Value: "open_journal",
			})
			return
		}
		instructionJournal = journalStore
	}

	options := app.DefaultEngineOptions()
	options.Workers = cfg.Engine.Workers
	options.WorkerQueueSize = cfg.Engine.WorkerQueueSize
	options.SnapshotInterval = cfg.Engine.SnapshotEvery

	engine := app.NewEngineWithOptions(
		reg,
		seq,
		reader,
		instructionJournal,
		publisher,
		snapshotStore,
		log,
		options,
	)

	var marketData *marketdata.Client
	if cfg.MarketData.Enabled {
		marketData = marketdata.NewClient(cfg.MarketData.URL, cfg.MarketData.Symbols, marketdata.NewCache(), log)
		marketData.Start(ctx)
	}

	if err := engine.Start(ctx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "start_engine",
		})
		return
	}

	log.Info("Trading engine started successfully", logger.Field{
		Key:   "instruments",
		Value: reg.InstrumentIDs(),
	})

	sig := <-sigChan
	log.Info("Received shutdown signal", logger.Field{
		Key:   "signal",
		Value: sig.String(),
	})

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := engine.Stop(shutdownCtx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "stop_engine",
		})
	}

	if err := publisher.Stop(shutdownCtx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "stop_publisher",
		})
	}

	if marketData != nil {
		marketData.Stop()
	}

	if journalStore != nil {
		if err := journalStore.Close(); err != nil {
			log.Error(err, logger.Field{
				Key:   "action",
				Value: "close_journal",
			})
		}
	}

	if err := rclient.Disconnect(shutdownCtx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "disconnect_redis",
		})
	}

	log.Info("Trading engine shutdown complete")
}

// registerInstruments parses id:tickSize:lotSize definitions and registers
// each instrument. Books start with the trading session closed.
func registerInstruments(reg *registry.Registry, definitions []string) error {
	for _, definition := range definitions {
		parts := strings.Split(definition, ":")
		if len(parts) != 3 {
			return fmt.Errorf("invalid instrument definition %q, want id:tickSize:lotSize", definition)
		}

		tickSize, err := decimal.NewFromString(parts[1])
		if err != nil {
			return fmt.Errorf("invalid tick size in %q: %w", definition, err)
		}
		lotSize, err := decimal.NewFromString(parts[2])
		if err != nil {
			return fmt.Errorf("invalid lot size in %q: %w", definition, err)
		}

		reg.Register(instrumentv1.Instrument{
			ID:       parts[0],
			TickSize: tickSize,
			LotSize:  lotSize,
		})
	}

	return nil
}
