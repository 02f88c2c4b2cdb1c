package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vpnportal/config"
	"vpnportal/internal/api"
	"vpnportal/internal/db"
	"vpnportal/internal/gateway"
	"vpnportal/internal/health"
	"vpnportal/internal/logs"
	"vpnportal/internal/mail"
	"vpnportal/internal/middleware"
	"vpnportal/internal/models"
	"vpnportal/internal/ratelimit"
	"vpnportal/internal/repo"
	"vpnportal/internal/service"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type App struct {
	cfg        *config.Config
	db         *gorm.DB
	Router     *mux.Router
	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) {
	a.cfg = cfg

	/* 1) Логи */
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	/* 2) DB */
	d, err := db.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	a.db = d

	if err := a.db.AutoMigrate(
		&models.User{},
		&models.Configuration{},
		&models.PeerConfig{},
		&models.AccessRequest{},
		&models.EmailLog{},
	); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	/* 3) Хранилища и внешние клиенты */
	userStore := repo.NewUserStore(a.db)
	peerStore := repo.NewPeerStore(a.db)
	accessStore := repo.NewAccessRequestStore(a.db)
	emailStore := repo.NewEmailStore(a.db)

	gw := gateway.New(a.cfg.WireGuard.APIEndpoint, a.cfg.WireGuard.APIKey)

	var sender mail.Sender = mail.NopSender{}
	if a.cfg.Mail.Endpoint != "" {
		sender = mail.New(a.cfg.Mail.Endpoint, a.cfg.Mail.APIKey, a.cfg.Mail.From, emailStore)
	}

	var limiter ratelimit.Limiter = ratelimit.NopLimiter{}
	if a.cfg.Redis.Addr != "" {
		rl, err := ratelimit.NewRedis(a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
		if err != nil {
			log.Fatalf("redis connect failed: %v", err)
		}
		limiter = rl
	}

	/* 4) Сервисы */
	peerSvc := service.NewPeerService(gw, peerStore, a.cfg.WireGuard.Interface, a.cfg.WireGuard.Environment)
	userSvc := service.NewUserService(userStore, peerSvc, sender)
	accessSvc := service.NewAccessService(accessStore, userStore, limiter, sender, a.cfg.Mail.AdminEmail)

	/* 5) Router + middleware */
	a.Router = mux.NewRouter().StrictSlash(true)
	a.Router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.LoggerMW,
	)

	health.RegisterRoutesWithDB(a.Router, a.db) // /healthz, /readyz
	api.RegisterRoutes(a.Router, api.NewHandler(peerSvc, userSvc, accessSvc))

	/* (необязательно) вывести известные маршруты в лог при старте */
	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			methods = []string{"ANY"}
		}
		log.Printf("route: %-6v %s", methods, path)
		return nil
	})
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return fmt.Errorf("server not initialized")
	}

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logs.Logger.Infof("shutdown signal: %s", s)
		a.cancel()
	}()

	// Жёсткие таймауты — это важно для production
	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Logger.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Errorf("http shutdown: %v", err)
	}
	return nil
}
