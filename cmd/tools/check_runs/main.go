package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/david/issue-hunter/internal/db"
	"github.com/david/issue-hunter/internal/report"
)

func main() {
	limit := flag.Int("limit", 10, "number of runs to show")
	status := flag.String("status", "", "only runs with this status (completed, partial, aborted)")
	flag.Parse()
	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	runs, err := db.NewStore(pool).ListRuns(ctx, db.ListRunsParams{Status: *status, Limit: *limit})
	if err != nil {
		log.Fatal(err)
	}

	report.RenderRuns(os.Stdout, runs.Runs)
	log.Printf("%d of %d runs", len(runs.Runs), runs.Total)
}
