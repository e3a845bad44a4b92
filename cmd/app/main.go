package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"PairPull/internal/di"
	"PairPull/pkg/config"
	"PairPull/pkg/server"
	"PairPull/pkg/util"
)

const usage = `usage: pairpull [flags] <command> [args]

commands:
  serve              run the full engine (scan loop, monitor loop, HTTP API)
  scan               run one scan cycle and print the watchlist
  monitor            run one monitor cycle
  analyze SYM1 SYM2  evaluate a pair (respects -days and -cutoff)
  enter PAIR         open a manual position, e.g. enter BTCUSDT/ETHUSDT
  exit PAIR          close a live position
  history [PAIR]     print archived trades
`

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	days := flag.Int("days", 90, "lookback days for analyze")
	cutoff := flag.String("cutoff", "", "optional cutoff (RFC3339 or unix seconds) for analyze")
	limit := flag.Int("limit", 50, "max records for history")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	cmd := "serve"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}

	ctx := context.Background()
	if err := run(ctx, app, cmd, days, cutoff, limit); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, app *server.App, cmd string, days *int, cutoff *string, limit *int) error {
	switch cmd {
	case "serve":
		return app.Run()
	case "scan":
		w, err := app.RunScanOnce(ctx)
		if err != nil {
			return err
		}
		return printJSON(w)
	case "monitor":
		return app.RunMonitorOnce(ctx)
	case "analyze":
		if flag.NArg() != 3 {
			return fmt.Errorf("analyze needs two symbols, e.g. analyze BTCUSDT ETHUSDT")
		}
		res, err := app.AnalyzePair(ctx, flag.Arg(1), flag.Arg(2), *days, parseCutoff(*cutoff))
		if err != nil {
			return err
		}
		return printJSON(res)
	case "enter":
		if flag.NArg() != 2 {
			return fmt.Errorf("enter needs a pair, e.g. enter BTCUSDT/ETHUSDT")
		}
		t, err := app.EnterPair(ctx, flag.Arg(1))
		if err != nil {
			return err
		}
		return printJSON(t)
	case "exit":
		if flag.NArg() != 2 {
			return fmt.Errorf("exit needs a pair, e.g. exit BTCUSDT/ETHUSDT")
		}
		rec, err := app.ExitPair(ctx, flag.Arg(1))
		if err != nil {
			return err
		}
		return printJSON(rec)
	case "history":
		pair := ""
		if flag.NArg() > 1 {
			pair = flag.Arg(1)
		}
		recs, err := app.History(ctx, pair, *limit)
		if err != nil {
			return err
		}
		return printJSON(recs)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func parseCutoff(s string) time.Time {
	return util.ParseTimeDefault(s, time.Time{})
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
