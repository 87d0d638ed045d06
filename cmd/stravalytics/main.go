package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	// Autoloads .env file to supply environment variables
	_ "github.com/joho/godotenv/autoload"

	"github.com/lildude/stravalytics/internal/config"
	"github.com/lildude/stravalytics/internal/logger"
)

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"auth":       {"[-paste] [-status]  authorize with Strava", runAuth},
	"fetch":      {"[-force] [-limit N] [-after D] [-before D]  fetch activities", runFetch},
	"athlete":    {"[-force]  show the athlete", runAthlete},
	"stats":      {"show the athlete's Strava totals", runStats},
	"activity":   {"-id N  show the details of an activity", runActivity},
	"streams":    {"-id N [-no-cache]  show the streams of an activity", runStreams},
	"zones":      {"-id N  show the heart rate and power zones of an activity", runZones},
	"summary":    {"[filters]  summarize activities", runSummary},
	"types":      {"[filters]  statistics per activity type", runTypes},
	"weekly":     {"[filters]  totals per week", runWeekly},
	"monthly":    {"[filters]  totals per month", runMonthly},
	"days":       {"[filters]  totals per day of the week", runDays},
	"records":    {"[filters]  personal records", runRecords},
	"recent":     {"[-n N] [filters]  most recent activities", runRecent},
	"elevation":  {"[filters]  yearly run and ride elevation", runElevation},
	"compare":    {"[-type T]  this month's speeds against last month's", runCompare},
	"cache-info": {"show what is cached", runCacheInfo},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		printError(stderr, &stageError{stage: stageConfig, err: err})
		return 1
	}
	log := logger.NewLogger(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
		Env:    cfg.Env,
	})

	a, err := newApp(ctx, cfg, log, stdin, stdout)
	if err != nil {
		printError(stderr, err)
		return 1
	}
	defer a.Close()

	if err := cmd.run(ctx, a, args[1:]); err != nil {
		log.WithError(err).WithField("command", args[0]).Debug("command failed")
		printError(stderr, err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: stravalytics <command> [flags]")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-11s %s\n", name, commands[name].usage)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "filters: -type T (repeatable) -from YYYY-MM-DD -to YYYY-MM-DD")
}
