package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"archiflow/config"
	"archiflow/internal/db"
	"archiflow/internal/deploy"
	"archiflow/internal/health"
	"archiflow/internal/ipam"
	"archiflow/internal/logs"
	"archiflow/internal/middleware"
	"archiflow/internal/models"
	"archiflow/internal/netbox"
	"archiflow/internal/netsync"
	"archiflow/internal/repo"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type App struct {
	cfg        *config.Config
	Router     *mux.Router
	httpServer *http.Server

	db      *gorm.DB
	syncSvc *netsync.Service
	ctx     context.Context
	cancel  context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) {
	a.cfg = cfg

	// 1) Логи
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	// 2) БД (опционально)
	if drv := a.cfg.Database.Driver; drv != "" {
		d, err := db.Open(drv, a.cfg.Database.DSN)
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		a.db = d
	}

	// ---- DB migrations (only if DB is connected) ----
	if a.db != nil {
		if err := a.db.AutoMigrate(
			// netbox cache
			&models.Site{},
			&models.DeviceType{},
			&models.DeviceRole{},
			&models.Prefix{},
			&models.VLAN{},
			&models.CachedDevice{},
			&models.CachedAddress{},
			&models.SyncStatus{},

			// allocation ledger
			&models.IPAllocation{},

			// local devices & diagrams
			&models.NetworkDevice{},
			&models.Diagram{},
			&models.DeviceDiagramMapping{},
			&models.NetBoxDeviceMapping{},
		); err != nil {
			log.Fatalf("db migrate failed: %v", err)
		}

		// The claim path depends on this index; refuse to start without it.
		if err := db.MigrateAllocationUniqueIndex(a.db); err != nil {
			log.Fatalf("allocation unique index migration: %v", err)
		}
	}

	// 3) NetBox клиент — один на процесс, им пользуются sync и deploy
	nbClient := netbox.NewClient(netbox.Options{
		URL:     a.cfg.NetBox.URL,
		Token:   a.cfg.NetBox.Token,
		Timeout: a.cfg.NetBox.Timeout,
	})

	// 4) Роутер + middleware
	a.Router = mux.NewRouter()
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(middleware.LoggerMW)

	if a.db != nil {
		health.RegisterRoutesWithDB(a.Router, a.db) // /healthz и /readyz
	} else {
		health.RegisterRoutes(a.Router) // только /healthz
	}

	// 5) Доменные сервисы (нужна БД)
	if a.db != nil {
		a.syncSvc = netsync.NewService(a.db, nbClient)
		netsync.NewHTTP(a.syncSvc).RegisterRoutes(a.Router)

		engine := ipam.NewEngine(ipam.NewRepo(a.db))
		ipam.NewHTTP(engine).RegisterRoutes(a.Router)

		orch := deploy.NewOrchestrator(a.db, nbClient)
		deploy.NewHTTP(orch).RegisterRoutes(a.Router)

		ds := repo.NewDeviceStore(a.db)
		repo.NewHTTP(ds).RegisterRoutes(a.Router)
	}

	a.Router.Walk(func(rt *mux.Route, r *mux.Router, ancestors []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		log.Printf("route: %-6v %s", methods, path)
		return nil
	})
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return ErrNotInitialized
	}
	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-sigs; a.cancel() }()

	if a.syncSvc != nil && a.cfg.Sync.Interval > 0 {
		go a.runSyncLoop()
	}

	a.httpServer = &http.Server{
		Addr:         bind,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.httpServer.Shutdown(ctx)
	return nil
}

// runSyncLoop re-runs the full sync on the configured interval.
// Ошибки логируем и пробуем на следующем тике: sync переигрываемый.
func (a *App) runSyncLoop() {
	ticker := time.NewTicker(a.cfg.Sync.Interval)
	defer ticker.Stop()
	for {
		if _, err := a.syncSvc.SyncAll(a.ctx); err != nil {
			logs.Logger.Errorf("scheduled sync: %v", err)
		}
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

var ErrNotInitialized = &initError{"server not initialized (call Initialize(cfg) first)"}

type initError struct{ s string }

func (e *initError) Error() string { return e.s }
