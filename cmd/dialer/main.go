package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"levlyfy/internal/apiclient"
	"levlyfy/internal/audit"
	"levlyfy/internal/auth"
	"levlyfy/internal/calls"
	"levlyfy/internal/config"
	"levlyfy/internal/contacts"
	"levlyfy/internal/dialer"
	"levlyfy/internal/events"
	"levlyfy/internal/httpapi"
	"levlyfy/internal/metrics"
	"levlyfy/internal/reporting"
	"levlyfy/internal/telephony"
	"levlyfy/pkg/logger"
	"levlyfy/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const appName = "levlyfy-dialer"

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, cfg.App.LogLevel)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()

	// Optional infrastructure.
	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	var db *pgxpool.Pool
	journalRepo := audit.Repository(audit.NewMemoryRepo())
	if cfg.JournalEnabled() {
		db, err = utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := audit.NewPostgresRepo(db)
		if err := pg.EnsureSchema(rootCtx); err != nil {
			log.Error("journal schema failed", "err", err)
			os.Exit(1)
		}
		journalRepo = pg
	}
	journal := audit.NewService(journalRepo, log)

	var nc *events.NATSClient
	if cfg.NATS.URL != "" {
		nc, err = events.ConnectNATS(cfg.NATS.URL, appName, log)
		if err != nil {
			// Event fan-out is best effort; the dialer works without it.
			log.Warn("nats unavailable, transitions stay local", "err", err)
			nc = nil
		} else {
			defer nc.Close()
		}
	}

	// Session and backend client.
	var store auth.Store = auth.NewMemoryStore()
	if cfg.Session.Store == config.SessionStoreRedis {
		store = auth.NewRedisStore(rdb, cfg.Session.KeyPrefix)
	}
	sess, err := auth.NewSession(rootCtx, store, log)
	if err != nil {
		log.Error("session restore failed", "err", err)
		os.Exit(1)
	}

	client, err := apiclient.New(cfg.Backend.BaseURL,
		apiclient.WithTimeout(cfg.Backend.Timeout),
		apiclient.WithTokenSource(sess),
		apiclient.WithUnauthorizedHandler(func() { sess.Invalidate(context.Background()) }),
		apiclient.WithObserver(m.ObserveBackend),
		apiclient.WithLogger(log),
	)
	if err != nil {
		log.Error("backend client init failed", "err", err)
		os.Exit(1)
	}

	userID := func() string {
		u, _ := sess.User()
		return u.ID
	}

	// Call coordinator and its observers.
	hub := events.NewHub(log)
	observers := []calls.Observer{hub, journal.Observer(userID), m.Observer()}
	if nc != nil {
		observers = append(observers, events.TransitionPublisher(nc, cfg.NATS.SubjectPrefix, userID, log))
	}

	var guard calls.SessionGuard
	if cfg.Telephony.GuardSessions {
		guard = calls.NewRedisGuard(rdb, cfg.Session.KeyPrefix, agentID(), cfg.Telephony.GuardTTL)
	}

	coord := calls.NewCoordinator(telephony.NewAPI(client), telephony.NewWebexDeviceFactory(log), calls.Options{
		DialMode:           cfg.Telephony.DialMode,
		DefaultCountryCode: cfg.Telephony.DefaultCountryCode,
		RingTimeout:        cfg.Telephony.RingTimeout,
		ReadyFallback:      cfg.Telephony.ReadyFallback,
		MetadataTimeout:    cfg.Telephony.MetadataTimeout,
		Logger:             log,
		Guard:              guard,
		UserID:             userID,
		Observers:          observers,
		OnDrop:             m.DroppedTransition,
	})

	sess.OnInvalidate(func() {
		log.Warn("session rejected by backend, ending any call")
		coord.EndCall(context.Background())
	})

	authSvc := auth.NewService(client, sess, log)
	h := httpapi.Handlers{
		Auth:      authSvc,
		Reporting: reporting.NewService(reporting.NewAPIRepo(client), log),
		Contacts:  contacts.NewService(client, cfg.Telephony.DefaultCountryCode, log),
		Calls:     coord,
		Journal:   journal,
		Views:     dialer.NewServer(rootCtx, coord, hub, log),
	}

	r := newRouter(log, m, h, sess, healthChecks(db, rdb))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: SSE and WebSocket views are long-lived.
		IdleTimeout: 60 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		authSvc.ValidateLoop(rootCtx, cfg.Session.ValidateInterval)
	}()

	go func() {
		log.Info("dialer listening", "addr", srv.Addr, "env", cfg.App.Env, "dial_mode", cfg.Telephony.DialMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	coord.Close()
	wg.Wait()
	log.Info("shutdown complete")
}

// agentID names this process as the owner of its call slot.
func agentID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "agent"
	}
	return host + "-" + uuid.NewString()
}

func healthChecks(db *pgxpool.Pool, rdb *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if db != nil {
			if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
				return err
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return err
			}
		}
		return nil
	}
}
