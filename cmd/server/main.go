package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"roomsync/internal/api"
	"roomsync/internal/config"
	"roomsync/internal/directory"
	"roomsync/internal/reconcile"
	"roomsync/internal/routers"
	"roomsync/internal/session"
	"roomsync/internal/store"
	"roomsync/internal/store/memory"
	mongostore "roomsync/internal/store/mongo"
	"roomsync/internal/utils"
)

var (
	listenAndServe = http.ListenAndServe
	exitFunc       = func(err error) { utils.GetLogger().Fatal("server exited", zap.Error(err)) }
)

func main() {
	if err := run(context.Background()); err != nil {
		exitFunc(err)
	}
}

func run(ctx context.Context) error {
	logger := utils.GetLogger()
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()

	var st store.RoomStore
	if cfg.MongoURI != "" {
		ms, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.DBName)
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		st = ms
	} else {
		logger.Warn("MONGO_URI not set, room records will not survive restarts")
		st = memory.New()
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	dir := directory.New(rdb)

	hub := session.NewHub()

	writer := store.NewWriter(st, logger, cfg.SaveInterval)
	writer.Start()
	defer writer.Stop()

	rec := reconcile.New(hub, st, dir, logger,
		cfg.ReconnectGrace, cfg.InactiveAfter, cfg.PurgeAfter)
	if err := rec.Start(cfg.SweepSchedule); err != nil {
		return fmt.Errorf("start sweep: %w", err)
	}
	defer rec.Stop()

	h := api.NewHandlers(logger, hub, st, writer, dir, rec)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)
	r.Mount("/", routers.New(h))

	addr := ":" + cfg.Port
	logger.Info("roomsync listening", zap.String("addr", addr))
	return listenAndServe(addr, r)
}
