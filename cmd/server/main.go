package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	elog "github.com/labstack/gommon/log"

	"github.com/iliyamo/taskboard/internal/access"
	"github.com/iliyamo/taskboard/internal/auth"
	"github.com/iliyamo/taskboard/internal/config"
	"github.com/iliyamo/taskboard/internal/database"
	"github.com/iliyamo/taskboard/internal/handler"
	"github.com/iliyamo/taskboard/internal/obs"
	"github.com/iliyamo/taskboard/internal/queue"
	"github.com/iliyamo/taskboard/internal/repository"
	"github.com/iliyamo/taskboard/internal/router"
	"github.com/iliyamo/taskboard/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := database.Setup(ctx, db); err != nil {
		log.Fatalf("schema: %v", err)
	}

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		log.Printf("redis unavailable; auth rate limit uses the in-process limiter")
	} else {
		defer rdb.Close()
	}

	obs.Init()

	e := echo.New()
	e.HideBanner = true
	if cfg.Env == "dev" {
		e.Logger.SetLevel(elog.DEBUG)
	} else {
		e.Logger.SetLevel(elog.INFO)
	}
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(obs.Instrument())

	users := repository.NewUserRepo(db)
	boards := repository.NewBoardRepo(db)
	members := repository.NewMemberRepo(db)
	resolver := access.NewResolver(boards, members, members, e.Logger)

	authH := handler.NewAuthHandler(users, repository.NewTokenRepo(db), tokens, cfg.BcryptCost)
	boardH := handler.NewBoardHandler(boards, members, users, service.NewPublisher(cfg.AMQPURL))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, authH, tokens, config.LoadRateLimitConfig(), rdb)
	router.RegisterBoards(e, boardH, tokens, resolver)

	go func() {
		if err := queue.StartActivityConsumer(ctx, cfg.AMQPURL, cfg.ActivityLogDir); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("activity consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	resolver.Wait() // let pending last_accessed_at writes finish before the pool closes
}
