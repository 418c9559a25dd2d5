package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path"
	"regexp"
	"strconv"
	"syscall"
	"time"

	"tablebook/src/boot"
	"tablebook/src/lifecycle"
	"tablebook/src/logger"
	"tablebook/src/middlewares"
	"tablebook/src/utils"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	apiPrefix string = "/api/v1"
)

// moneyValidator rejects amounts with more than two decimal places.
var moneyValidator validator.Func = func(fl validator.FieldLevel) bool {
	v, ok := fl.Field().Interface().(float64)
	if !ok {
		return false
	}
	cents := v * 100
	return math.Abs(cents-math.Round(cents)) < 1e-6
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("money", moneyValidator)
	}
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middlewares.SecureHeaders)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	return router
}

func maintenanceModeMiddleware(g *gin.Engine) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		on, _ := strconv.ParseBool(os.Getenv("MAINTENANCE_MODE"))
		if on {
			err := errors.New("server is under maintenance")
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
	})
	return g
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func corsMiddleware() gin.HandlerFunc {
	if utils.IsLocal() {
		return cors.Default()
	}
	appHost := os.Getenv("APP_HOST")
	cc := cors.DefaultConfig()
	cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
	cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
	cc.AllowOriginFunc = func(origin string) bool {
		if appHost == "" {
			return false
		}
		match, _ := regexp.MatchString(appHost, origin)
		return match
	}
	cc.AllowCredentials = true
	cc.AllowAllOrigins = false
	return cors.New(cc)
}

// newRouter mounts every route on top of setupRouter.
func newRouter(engine *lifecycle.Engine, jwtSecret []byte, webhookSecret string) *gin.Engine {
	router := setupRouter()
	router.Use(corsMiddleware())
	router = maintenanceModeMiddleware(router)

	stripeWebhookRoute(router, engine, webhookSecret)

	authorized := router.Group(apiPrefix)
	authorized.Use(middlewares.Auth(jwtSecret))
	{
		reservationHandlers(authorized, engine)
	}
	return router
}

func initLogger() *zerolog.Logger {
	cwd, _ := os.Getwd()
	serverLogs := path.Join(cwd, "logs", "server.log")
	apiLogs := path.Join(cwd, "logs", "api.log")

	level := zerolog.InfoLevel
	if utils.IsLocal() {
		level = zerolog.DebugLevel
		gin.ForceConsoleColor()
	}
	if f, err := os.Create(apiLogs); err == nil {
		gin.DefaultWriter = io.MultiWriter(f, os.Stdout)
	}
	return logger.Init(level, os.Stdout, &lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func main() {
	if utils.IsLocal() {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
			panic(err)
		}
	}
	log := initLogger()
	registerValidators()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, _ := boot.InitEngine(ctx)
	boot.InitScheduler()
	boot.InitBroker(ctx)

	router := newRouter(engine, []byte(os.Getenv("JWT_SECRET")), os.Getenv("STRIPE_WEBHOOK_SECRET"))

	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	boot.Shutdown()
}
