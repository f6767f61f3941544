package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outfitapi/controllers"
	"outfitapi/dbhelper"
	"outfitapi/outfit"
	"outfitapi/services"
	"outfitapi/telegram"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using the environment")
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              os.Getenv("SENTRY_DSN"),
		Environment:      services.GetEnv("ENV", "local"),
		Release:          "outfitapi@1.0.0",
		TracesSampleRate: 1.0,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Recover()
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := dbhelper.SetupDB()

	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	awsService := &services.AWSService{}
	urlCache, err := services.NewURLCacheService(awsService, bucketName)
	if err != nil {
		log.Fatal("Failed to initialize URL cache service")
	}

	llmProcessor, err := services.NewGoogleLLMProcessor(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}
	generation := services.NewOutfitGenerationService(db, llmProcessor)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")})
	defer asynqClient.Close()

	deps := controllers.ServerDeps{
		Google:     services.GoogleService{},
		Apple:      services.NewAppleService(),
		AWSService: awsService,
		URLCache:   urlCache,
		Generator:  generation,
		Tasks:      asynqClient,
	}
	var weather services.WeatherProvider
	if key := os.Getenv("OPENWEATHER_API_KEY"); key != "" {
		weather = services.NewOpenWeatherService(key)
		deps.Weather = weather
	}
	var pinterest services.PinterestProvider
	if os.Getenv("PINTEREST_CLIENT_ID") != "" {
		pinterest = services.NewPinterestService(db)
		deps.Pinterest = pinterest
	}
	if app, err := firebase.NewApp(ctx, nil); err != nil {
		log.Printf("Push notifications disabled, firebase init failed: %v", err)
	} else {
		deps.Push = &services.FirebasePushSender{App: app, DB: db}
	}

	e := controllers.SetupServer(db, deps)
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))

	if os.Getenv("TELEGRAM_BOT") == "true" {
		var drafts outfit.DraftStorage
		if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
			drafts = services.NewRedisDraftStore(addr)
		}
		go func() {
			err := telegram.Run(ctx, db, telegram.Config{
				Generation: generation,
				Weather:    weather,
				Pinterest:  pinterest,
				Drafts:     drafts,
			})
			if err != nil {
				sentry.CaptureException(err)
				log.Printf("[Telegram] bot stopped: %v", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		e.Shutdown(shutdownCtx)
	}()
	if err := e.Start(":" + services.GetEnv("PORT", "8083")); err != nil {
		e.Logger.Info(err)
	}
}
