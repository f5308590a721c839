package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/userapi/userapi/internal/repository"
	"github.com/userapi/userapi/internal/seed"
	"github.com/userapi/userapi/internal/service"
)

type output struct {
	Skipped     bool  `json:"skipped"`
	Created     int   `json:"created"`
	TotalUsers  int64 `json:"total_users"`
	ActiveUsers int   `json:"active_users"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		migrate     = flag.Bool("migrate", true, "Apply migrations before seeding")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	if *migrate {
		if err := repo.Migrate(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	res, err := seed.Run(ctx, service.NewUserService(repo, nil), logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}

	out := output{
		Skipped:     res.Skipped,
		Created:     res.Created,
		TotalUsers:  res.TotalUsers,
		ActiveUsers: res.ActiveUsers,
	}

	switch strings.ToLower(*format) {
	case "plain":
		if out.Skipped {
			fmt.Printf("skipped: %d users already present\n", out.TotalUsers)
			return
		}
		fmt.Printf("created %d users (%d total, %d active)\n", out.Created, out.TotalUsers, out.ActiveUsers)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}
