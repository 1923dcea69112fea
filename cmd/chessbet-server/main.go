package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	appcfg "github.com/ryanongwx/chessbet/internal/config"
	"github.com/ryanongwx/chessbet/internal/gateway"
	"github.com/ryanongwx/chessbet/internal/httpapi"
	"github.com/ryanongwx/chessbet/internal/lobby"
	"github.com/ryanongwx/chessbet/internal/obslog"
	"github.com/ryanongwx/chessbet/internal/profile"
	"github.com/ryanongwx/chessbet/internal/session"
	"github.com/ryanongwx/chessbet/internal/settlement"
	"github.com/ryanongwx/chessbet/internal/wallet"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	// Session + profile storage: Redis when configured, memory otherwise.
	var (
		store session.Store
		rdb   *redis.Client
	)
	if cfg.RedisURL != "" {
		opts, perr := redis.ParseURL(cfg.RedisURL)
		if perr != nil {
			log.Fatalf("redis url error: %v", perr)
		}
		rdb = redis.NewClient(opts)
		if perr := rdb.Ping(context.Background()).Err(); perr != nil {
			log.Fatalf("redis ping error: %v", perr)
		}
		store = session.NewRedisStoreFromClient(rdb)
	} else {
		store = session.NewMemStore()
		obslog.L().Warn("session_store_memory_only")
	}
	profiles := profile.NewStore(rdb)

	verifier := wallet.NewVerifier(cfg.AuthMaxAge, cfg.AuthMaxSkew)
	manager := lobby.NewManager(store, lobby.Options{
		Allotment: cfg.ClockAllotment,
		MaxWager:  cfg.MaxWager,
	})

	// Settlement: escrow resolver when configured, nop otherwise.
	var ledger settlement.Ledger = settlement.NopLedger{}
	if cfg.EscrowURL != "" {
		ledger = settlement.NewEscrowClient(cfg.EscrowURL, cfg.EscrowAPIKey)
	}
	bridge := settlement.NewBridge(ledger, store)
	if cfg.DatabaseURL != "" {
		results, rerr := settlement.NewResultsRepository(cfg.DatabaseURL)
		if rerr != nil {
			log.Fatalf("results repo init error: %v", rerr)
		}
		defer results.Close()
		bridge.AttachResults(results)
	}
	manager.AttachSettler(bridge)

	hub := gateway.NewHub(verifier, manager)
	manager.AttachSink(hub)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	scheduler := lobby.NewClockScheduler(manager, cfg.ClockTick)
	scheduler.Start(rootCtx)
	bridge.StartResweep(rootCtx, cfg.SettleResweep)

	api := httpapi.NewServer(verifier, manager, profiles)
	srv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     api.Router(hub.Handler()),
		ReadTimeout: 30 * time.Second,
	}

	go func() {
		obslog.L().Info("server_listen", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("server_error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	obslog.L().Info("server_shutdown_begin")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	scheduler.Stop()
	bridge.Stop()
	hub.Close()
	rootCancel()
	if rdb != nil {
		_ = rdb.Close()
	}
	obslog.L().Info("server_shutdown_done")
}
