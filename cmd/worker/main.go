package main

import (
	"context"
	"log"
	"os"
	"time"

	"outfitapi/dbhelper"
	"outfitapi/services"
	"outfitapi/tasks"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
)

func runScheduler(redis asynq.RedisClientOpt) {
	scheduler := asynq.NewScheduler(redis, &asynq.SchedulerOpts{
		LogLevel: asynq.InfoLevel,
	})

	periodic := []struct {
		cron string
		task *asynq.Task
		desc string
	}{
		{
			cron: "@every 1h",
			task: tasks.NewCacheCleanupTask(),
			desc: "Generation cache cleanup",
		},
	}

	for _, t := range periodic {
		entryID, err := scheduler.Register(t.cron, t.task)
		if err != nil {
			log.Fatalf("Failed to register task '%s': %v", t.desc, err)
		}
		log.Printf("Registered task '%s' with ID: %s, cron: %s", t.desc, entryID, t.cron)
	}

	log.Println("Starting scheduler...")
	if err := scheduler.Run(); err != nil {
		log.Fatalf("Scheduler failed: %v", err)
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using the environment")
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         os.Getenv("SENTRY_DSN"),
		Environment: services.GetEnv("ENV", "local"),
		Release:     "outfitapi-worker@1.0.0",
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Flush(2 * time.Second)

	redis := asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")}
	srv := asynq.NewServer(
		redis,
		asynq.Config{Concurrency: 10, Queues: map[string]int{
			tasks.QueueGenerate: 7,
			"default":           3,
		}},
	)

	ctx := context.Background()
	awsService := &services.AWSService{}
	if err := awsService.InitPresignClient(ctx); err != nil {
		log.Fatal("[Queue] Failed to initialize AWS provider: S3")
	}
	llmProcessor, err := services.NewGoogleLLMProcessor(ctx)
	if err != nil {
		log.Fatalf("[Queue] Failed to initialize LLM client: %v", err)
	}
	app, err := firebase.NewApp(ctx, nil)
	if err != nil {
		log.Fatalf("error initializing firebase app: %v\n", err)
	}
	db := dbhelper.SetupDB()
	push := &services.FirebasePushSender{App: app, DB: db}

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TaskProcessClothing, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleClothingProcessingTask(ctx, t, db, llmProcessor, awsService, push)
	})
	mux.HandleFunc(tasks.TaskCacheCleanup, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleCacheCleanupTask(ctx, t, db)
	})

	go runScheduler(redis)
	if err := srv.Run(mux); err != nil {
		log.Fatal(err)
	}
}
