package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/pcashcroft/backtest/internal/build"
	"github.com/pcashcroft/backtest/internal/di"
	"github.com/pcashcroft/backtest/internal/domain/models"
	"github.com/pcashcroft/backtest/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	datasets := flag.String("dataset", "", "comma-separated derived dataset ids (empty builds all)")
	from := flag.String("from", "", "start trade date, YYYY-MM-DD")
	to := flag.String("to", "", "end trade date, YYYY-MM-DD")
	session := flag.String("session", "", "session to build: FULL or RTH (empty builds both)")
	force := flag.Bool("force-rebuild", false, "rebuild covered dates, including stale ones")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	opts, err := buildOptions(*datasets, *from, *to, *session, *force)
	if err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	runner, cleanup, err := di.InitializeRunner(cfg)
	if err != nil {
		log.Fatalf("runner initialization failed: %v", err)
	}

	summary, err := runner.Run(context.Background(), opts)
	// Flush buffered notifications and close clients before exiting, even
	// when the run failed.
	cleanup()
	if err != nil {
		log.Fatalf("build failed: %v", err)
	}

	printSummary(summary)
	if summary.Failures() > 0 {
		os.Exit(1)
	}
}

func buildOptions(datasets, from, to, session string, force bool) (build.Options, error) {
	start, err := models.ParseDate(from)
	if err != nil {
		return build.Options{}, fmt.Errorf("from: %w", err)
	}
	end, err := models.ParseDate(to)
	if err != nil {
		return build.Options{}, fmt.Errorf("to: %w", err)
	}

	opts := build.Options{Start: start, End: end, Force: force}
	if datasets != "" {
		for _, id := range strings.Split(datasets, ",") {
			if id = strings.TrimSpace(id); id != "" {
				opts.DatasetIDs = append(opts.DatasetIDs, id)
			}
		}
	}
	if session != "" {
		sess, err := models.ParseSession(session)
		if err != nil {
			return build.Options{}, err
		}
		opts.Sessions = []models.Session{sess}
	}
	return opts, nil
}

func printSummary(s *build.Summary) {
	for _, d := range s.Datasets {
		fmt.Printf("%s %s: built=%d skipped=%d stale=%d missing=%d failed=%d rows=%d",
			d.DatasetID, d.Session,
			len(d.Built), len(d.Skipped), len(d.Stale), len(d.Missing), len(d.Failed), d.RowsWritten)
		if d.UnknownSides > 0 {
			fmt.Printf(" unknown_sides=%d", d.UnknownSides)
		}
		fmt.Println()
		for _, date := range d.Stale {
			fmt.Printf("  stale: %s (use -force-rebuild)\n", date)
		}
		for date, msg := range d.Failed {
			fmt.Printf("  failed: %s: %s\n", date, msg)
		}
	}
	fmt.Printf("total failures: %d\n", s.Failures())
}
