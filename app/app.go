package app

import (
	"context"
	"log"
	"time"

	"github.com/ExcursionClub/ExCSystem/config"
	"github.com/ExcursionClub/ExCSystem/db"
	"github.com/ExcursionClub/ExCSystem/ledger"
	"github.com/ExcursionClub/ExCSystem/notify"
	"github.com/ExcursionClub/ExCSystem/session"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Aliases so handlers read a little shorter.
type Ctx = gin.Context
type H = gin.H

// App aggregates every shared dependency.
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client
	Log    *zap.SugaredLogger
	Config config.Config

	Repo   *db.Repo
	Ledger *ledger.Ledger

	kioskSess *session.KioskSessionStore
}

func (a *App) KioskSessions() *session.KioskSessionStore { return a.kioskSess }

func MustNew() *App {
	cfg := config.Load()

	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	logger := zl.Sugar()

	// --- DB: Postgres (migrates on connect) ---
	dbConn, err := db.ConnectDB(cfg)
	if err != nil {
		logger.Fatalf("open db: %v", err)
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatalf("redis: %v", err)
	}

	// --- Gin ---
	r := gin.Default()
	useCORS(r, cfg.WebOrigin)

	repo := db.NewRepo(dbConn)
	led := ledger.New(dbConn, notify.NewLogNotifier(logger), logger, ledger.Options{
		DormantAfter: cfg.DormantAfter,
	})

	return &App{
		Router: r, DB: dbConn, RDB: rdb, Log: logger, Config: cfg,
		Repo:      repo,
		Ledger:    led,
		kioskSess: session.NewKioskSessionStore(rdb, cfg.SessionTTL),
	}
}

func (a *App) Close() {
	_ = a.RDB.Close()
	_ = a.Log.Sync()
}
