// Package main, duet sunucusunun giriş noktasıdır.
//
// Wire-up sırası:
//  1. Config + logger + i18n
//  2. Snapshot store + repository'ler
//  3. Bildirim transport'u
//  4. WebSocket Hub + service'ler (hydrate) + başlangıç expiry sweep'i
//  5. Hub callback'leri, arka plan worker'ları
//  6. Handler'lar, route'lar, HTTP server
//  7. Graceful shutdown
//
// Global değişken yok; her şey burada oluşturulup birbirine bağlanır.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/akinalp/duet/config"
	"github.com/akinalp/duet/middleware"
	"github.com/akinalp/duet/pkg/i18n"
	"github.com/akinalp/duet/pkg/logger"
	"github.com/akinalp/duet/pkg/telegram"
	"github.com/akinalp/duet/ws"
)

// shutdownTimeout, HTTP server'ın açık request'leri bitirmesi için süre.
const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "duet: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ─── 1. Config, logger, i18n ───
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if err := i18n.LoadEmbedded(); err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("duet starting",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("max_sessions", cfg.Chat.MaxSessions),
		zap.Duration("expiry", cfg.Chat.Expiry()),
		zap.String("store", cfg.Store.Driver),
		zap.String("notifications", cfg.Notify.Transport),
	)

	// ─── 2. Persistence ───
	store, err := initStore(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close snapshot store", zap.Error(err))
		}
	}()
	repos := initRepositories(store, cfg.Chat.DefaultUsers)

	// ─── 3. Bildirim transport'u ───
	notify, err := initNotifyTransport(cfg, log)
	if err != nil {
		return err
	}

	// ─── 4. Hub + service'ler ───
	hub := ws.NewHub(log)

	svcs, limiters, err := initServices(ctx, cfg, repos, notify, hub, log)
	if err != nil {
		return err
	}
	defer limiters.Close()

	// Restart sırasında süresi dolmuş mesajlar hiç yayınlanmadan silinir.
	if n := svcs.Router.SweepExpired(ctx); n > 0 {
		log.Info("startup sweep removed expired messages", zap.Int("removed", n))
	}

	// ─── 5. Callback'ler ve worker'lar ───
	registerHubCallbacks(hub, svcs.Router)

	// Worker'lar kendi context'leriyle durur; signal ctx'i HTTP tarafı içindir.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	startWorker := func(fn func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			fn(workerCtx)
		}()
	}

	startWorker(hub.Run)
	startWorker(svcs.Notifier.Run)
	startWorker(func(ctx context.Context) { svcs.Router.RunExpiryWorker(ctx, cfg.Chat.SweepInterval) })

	if notify.Bot != nil {
		poller := telegram.NewPoller(notify.Bot, svcs.Notifier, cfg.Telegram.PollTimeout, log)
		startWorker(poller.Run)
	}

	// ─── 6. HTTP ───
	h := initHandlers(cfg, svcs, notify, hub, log)
	ticketMw := middleware.NewTicketMiddleware(svcs.Tickets, svcs.Presence, log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           initRoutes(cfg, h, ticketMw),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute, // büyük upload'lar
		IdleTimeout:       2 * time.Minute,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error("server failed", zap.Error(err))
		}
	}

	// ─── 7. Graceful shutdown ───
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelFlush()
	if err := svcs.Messages.Flush(flushCtx); err != nil {
		log.Error("failed to flush messages", zap.Error(err))
	}
	if err := svcs.Presence.Flush(flushCtx); err != nil {
		log.Error("failed to flush presence", zap.Error(err))
	}
	if err := svcs.Notifier.Flush(flushCtx); err != nil {
		log.Error("failed to flush subscribers", zap.Error(err))
	}

	// Önce client'lara haber ver, sonra bağlantıları kapat.
	svcs.Router.Shutdown()
	hub.Shutdown()

	svcs.Notifier.Close()
	stopWorkers()
	workers.Wait()

	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelHTTP()
	if err := srv.Shutdown(httpCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}
