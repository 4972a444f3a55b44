package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"faceattend/internal/attendance"
	"faceattend/internal/config"
	"faceattend/internal/queue"
	"faceattend/internal/store"
)

// Worker drains the audit queue and persists captured encodings. Keeping
// this off the request path lets compare responses return without waiting on
// the historical write.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var audit queue.Queue
	if cfg.QueueBackend == "memory" {
		audit = queue.NewInMemory(64)
	} else {
		audit = queue.NewRedisQueue(redisClient.Client, "faceattend:audit")
	}

	encodings := store.NewPostgres(db.Client)

	messages, err := audit.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != queue.TypeCapturedEncoding {
			continue
		}

		var captured attendance.CapturedEncoding
		if err := json.Unmarshal(msg.Body, &captured); err != nil {
			log.Printf("decode captured encoding: %v", err)
			continue
		}

		if err := encodings.SaveCaptured(ctx, captured.SubjectID, captured.Encoding); err != nil {
			log.Printf("save captured encoding for %s: %v", captured.SubjectID, err)
			continue
		}
		log.Printf("captured encoding stored for %s", captured.SubjectID)
	}

	log.Println("worker stopped")
}
