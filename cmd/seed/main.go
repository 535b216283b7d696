// seed inserts a test workspace, a handful of script_hash jobs, and one
// schedule into the local dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/windmillcore/jobcore/internal/queue"
	"github.com/windmillcore/jobcore/internal/store/postgres"
)

const seedWorkspaceID = "ws_seed_dev_local"
const seedUserID = "user_seed_dev_local"

type jobSpec struct {
	scriptHash string
	scriptPath string
}

var jobs = []jobSpec{
	{"hash-001", "f/examples/hello_world"},
	{"hash-002", "f/examples/hello_world"},
	{"hash-003", "f/examples/fail_on_purpose"},
	{"hash-004", "f/examples/slow_script"},
	{"hash-005", "f/examples/hello_world"},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set — run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL, 3)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	q := queue.New(pool, postgres.NewJobStore(), postgres.NewScheduleStore(), postgres.NewWorkerPingStore(), postgres.NewScriptStore(), logger)

	scheduledFor := time.Now().Add(time.Minute)

	var jobIDs []string
	for _, spec := range jobs {
		id, err := q.Push(ctx, nil, queue.PushInput{
			WorkspaceID:  seedWorkspaceID,
			Kind:         "script_hash",
			ScriptHash:   spec.scriptHash,
			ScriptPath:   spec.scriptPath,
			Args:         map[string]any{},
			CreatedBy:    seedUserID,
			OwnerPath:    "f/examples",
			ScheduledFor: scheduledFor,
		})
		if err != nil {
			log.Fatalf("push job %s: %v", spec.scriptHash, err)
		}
		jobIDs = append(jobIDs, id)
	}

	sched, err := q.CreateSchedule(ctx, queue.CreateScheduleInput{
		WorkspaceID:   seedWorkspaceID,
		Path:          "f/examples/every_minute",
		Schedule:      "0 * * * * *",
		OffsetMinutes: 0,
		ScriptPath:    "f/examples/hello_world",
		EditedBy:      seedUserID,
	})
	if err != nil {
		log.Fatalf("create schedule: %v", err)
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Workspace ID:  %s\n", seedWorkspaceID)
	fmt.Printf("  Jobs pushed:   %d\n", len(jobIDs))
	fmt.Printf("  Scheduled for: %s  (~1 minute from now)\n", scheduledFor.Format(time.RFC3339))
	fmt.Printf("  Schedule:      %s (%s)\n", sched.Path, sched.Schedule)
	fmt.Println()
	fmt.Println("  Sample job IDs:")
	for _, id := range jobIDs {
		fmt.Printf("    %s\n", id)
	}
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  Step 1 — request a magic link for the seed workspace:")
	fmt.Println()
	fmt.Println(`    curl -s -X POST http://localhost:8080/auth/magic-link \`)
	fmt.Printf("      -d '{\"email\":\"dev@example.com\",\"workspace_id\":%q}'\n", seedWorkspaceID)
	fmt.Println()
	fmt.Println("  Step 2 — check the local log output for the magic link, then verify it:")
	fmt.Println()
	fmt.Println("    curl -s 'http://localhost:8080/auth/verify?token=TOKEN'")
	fmt.Println()
	fmt.Println("  Step 3 — cancel a seeded job:")
	fmt.Println()
	fmt.Println("    export JWT=eyJ...")
	fmt.Printf("    curl -s -X POST http://localhost:8080/jobs/%s/cancel -H \"Authorization: Bearer $JWT\"\n", jobIDs[0])
}
