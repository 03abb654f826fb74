package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"MacroBrief/internal/app"
	"MacroBrief/internal/config"
	"MacroBrief/internal/dispatch"
	"MacroBrief/internal/domain"
	"MacroBrief/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Missing .env is fine; config has defaults and env overrides.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer application.Close()

	command := "briefing"
	args := os.Args[1:]
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "briefing":
		return runBriefing(application, cfg, args, logger)
	case "schedule":
		return runSchedule(application, args, logger)
	case "run":
		return runContinuous(application, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want briefing, schedule, or run)\n", command)
		return 2
	}
}

func runBriefing(application *app.Application, cfg config.Config, args []string, logger *slog.Logger) int {
	fs := flag.NewFlagSet("briefing", flag.ExitOnError)
	typ := fs.String("type", "daily", "briefing type: daily or high_impact")
	send := fs.Bool("send", false, "dispatch the briefing to configured channels")
	_ = fs.Parse(args)

	briefingType := domain.BriefingDaily
	if *typ == string(domain.BriefingHighImpact) {
		briefingType = domain.BriefingHighImpact
	}

	if *send {
		if err := cfg.ValidateDispatch(); err != nil {
			logger.Error("cannot send", "error", err)
			return 1
		}
	}

	ctx := context.Background()
	now := time.Now()

	b, report, err := application.Pipeline().GenerateBriefing(ctx, briefingType, now.Add(-24*time.Hour), now)
	if err != nil {
		logger.Error("briefing failed", "error", err)
		return 1
	}

	printBriefing(b)
	if len(report.DegradedSources) > 0 {
		fmt.Printf("Degraded sources: %v\n", report.DegradedSources)
	}

	if *send {
		results := application.Pipeline().Dispatch(ctx, b)
		for _, res := range results {
			line := fmt.Sprintf("Channel %s: %s", res.Channel, res.Outcome)
			if res.Err != nil {
				line += fmt.Sprintf(" (%v)", res.Err)
			}
			fmt.Println(line)
			if res.Outcome == dispatch.OutcomeFailed {
				return 1
			}
		}
	}

	return 0
}

func runSchedule(application *app.Application, args []string, logger *slog.Logger) int {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	hours := fs.Int("hours", 168, "hours to look ahead")
	highOnly := fs.Bool("high-impact-only", false, "only show high-impact releases")
	_ = fs.Parse(args)

	releases, err := application.Pipeline().UpcomingSchedule(
		context.Background(), time.Duration(*hours)*time.Hour, *highOnly)
	if err != nil {
		logger.Error("schedule lookup failed", "error", err)
		return 1
	}

	if len(releases) == 0 {
		fmt.Println("No upcoming releases found.")
		return 0
	}

	fmt.Println("Upcoming Economic Releases:")
	for _, rel := range releases {
		fmt.Printf("  [%s] %s %s - %s\n",
			rel.Impact, rel.Country, rel.Indicator,
			rel.ScheduledAt.UTC().Format("2006-01-02 15:04 UTC"))
		if rel.Forecast.Valid {
			fmt.Printf("        Forecast: %s\n", rel.Forecast.Decimal.String())
		}
		if rel.Previous.Valid {
			fmt.Printf("        Previous: %s\n", rel.Previous.Decimal.String())
		}
	}
	return 0
}

func runContinuous(application *app.Application, logger *slog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		return 1
	}
	return 0
}

func printBriefing(b domain.Briefing) {
	fmt.Printf("%s\n\n", b.Title)
	fmt.Printf("Sentiment: %s (%.2f)\n", b.Direction, b.OverallSentiment)
	fmt.Printf("Summary: %s\n", b.Summary)

	if len(b.KeyPoints) > 0 {
		fmt.Println("\nKey Points:")
		for _, point := range b.KeyPoints {
			fmt.Printf("  - %s\n", point)
		}
	}

	if len(b.Upcoming) > 0 {
		fmt.Println("\nUpcoming High-Impact Releases:")
		for _, rel := range b.Upcoming {
			fmt.Printf("  - %s %s - %s\n", rel.Country, rel.Indicator,
				rel.ScheduledAt.UTC().Format("2006-01-02 15:04 UTC"))
		}
	}
}
