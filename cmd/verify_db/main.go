package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/david/issue-hunter/internal/db"
	"github.com/david/issue-hunter/internal/logger"
)

func main() {
	_ = godotenv.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, logger.NewNop()); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	var runs, posted int
	var lastRun *time.Time
	err = pool.QueryRow(ctx, `
		SELECT count(*), COALESCE(SUM(posted), 0), MAX(started_at)
		FROM hunter_runs
	`).Scan(&runs, &posted, &lastRun)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Printf("Runs: %d\n", runs)
	fmt.Printf("Replies posted: %d\n", posted)
	if lastRun != nil {
		fmt.Printf("Last run: %s\n", lastRun.UTC().Format(time.RFC3339))
	}

	state, found, err := db.NewRateStateStore(pool, "").Load(ctx)
	if err != nil {
		log.Fatalf("Rate state query failed: %v", err)
	}
	if !found {
		fmt.Println("Rate state: none saved")
		return
	}
	fmt.Printf("Rate state: %d/%d sent today (effective %d)\n", state.SentToday, state.DailyLimit, state.Effective(time.Now()))
}
