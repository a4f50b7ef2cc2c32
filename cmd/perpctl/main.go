package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"perp-sdk/internal/cli"
	"perp-sdk/internal/config"
	"perp-sdk/internal/svc"
	"perp-sdk/pkg/exchange"
	"perp-sdk/pkg/fixedpoint"
	"perp-sdk/pkg/journal"
	"perp-sdk/pkg/sdk"
	"perp-sdk/pkg/statsapi"
	"perp-sdk/pkg/stream"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// txJournal is set when -journal is given.
var txJournal *journal.Writer

type runFunc func(ctx context.Context, app *svc.ServiceContext, args []string) error

var order = []string{"markets", "price", "position", "open", "close", "margin", "approve", "orders", "watch"}

var usages = map[string]string{
	"markets":  "markets",
	"price":    "price <amm>",
	"position": "position [-trader addr] <amm>",
	"open":     "open [-slippage pct] [-skip-checks] [-wait=false] <amm> <buy|sell> <margin> <leverage>",
	"close":    "close [-slippage pct] [-percent pct] [-wait=false] <amm>",
	"margin":   "margin <add|remove> <amm> <amount>",
	"approve":  "approve <amount|max>",
	"orders":   "orders [-trader addr] <amm>",
	"watch":    "watch <trade|funding> [amm]",
}

var commands = map[string]runFunc{
	"markets":  runMarkets,
	"price":    runPrice,
	"position": runPosition,
	"open":     runOpen,
	"close":    runClose,
	"margin":   runMargin,
	"approve":  runApprove,
	"orders":   runOrders,
	"watch":    runWatch,
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: perpctl [-f config] [-v] [-journal dir] <command> [args]")
	for _, name := range order {
		fmt.Fprintf(os.Stderr, "  %s\n", usages[name])
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one perpctl invocation and returns the process exit code.
// Everything it opens is released before it returns.
func run(args []string) int {
	fs := flag.NewFlagSet("perpctl", flag.ContinueOnError)
	configPath := fs.String("f", "etc/perpctl.yaml", "path to the perpctl config file")
	verbose := fs.Bool("v", false, "log the configuration summary")
	journalDir := fs.String("journal", "", "directory to record submitted transactions in")
	fs.Usage = usage
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage()
		return 2
	}
	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logx.Errorf("load config: %v", err)
		return 1
	}
	logx.MustSetup(cfg.Log)
	logx.DisableStat()
	if *verbose {
		cli.LogConfigSummary(cfg)
	}

	if *journalDir != "" {
		if txJournal, err = journal.NewWriter(*journalDir); err != nil {
			logx.Errorf("%v", err)
			return 1
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := svc.NewServiceContext(ctx, *cfg)
	if err != nil {
		logx.Errorf("%v", err)
		return 1
	}
	defer app.Close()

	if err := cmd(ctx, app, fs.Args()[1:]); err != nil {
		var rl *statsapi.RateLimitError
		if errors.As(err, &rl) {
			logx.Errorf("%s: rate limited, retry after %s", name, rl.RetryAfterDuration())
			return 1
		}
		logx.Errorf("%s: %v", name, err)
		return 1
	}
	return 0
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// finishTx prints the hash of a submitted transaction, optionally waits for
// it and records the outcome in the journal.
func finishTx(ctx context.Context, app *svc.ServiceContext, rec journal.TxRecord, tx exchange.Transaction, err error, wait bool) error {
	if err == nil {
		rec.Hash = tx.Hash().Hex()
		fmt.Println(rec.Hash)
		if wait {
			err = tx.Wait(ctx)
			rec.Mined = err == nil
		}
	}
	if txJournal != nil {
		rec.Instance = app.SDK.Instance().Name
		if err != nil {
			rec.Error = err.Error()
		}
		if _, werr := txJournal.Write(&rec); werr != nil {
			logx.WithContext(ctx).Errorf("perpctl: journal %s: %v", rec.Command, werr)
		}
	}
	return err
}

func needArgs(fs *flag.FlagSet, n int, usage string) error {
	if fs.NArg() < n {
		return fmt.Errorf("usage: perpctl %s", usage)
	}
	return nil
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	v, err := fixedpoint.Parse(raw)
	if err != nil {
		return decimal.Zero, &exchange.InvalidArgumentError{Field: field, Reason: err.Error()}
	}
	return v, nil
}

func runMarkets(_ context.Context, app *svc.ServiceContext, _ []string) error {
	contracts := app.SDK.Contracts()
	for _, amm := range app.SDK.SupportedAmms() {
		fmt.Printf("%-12s %s\n", amm, contracts.Amms[amm.String()])
	}
	return nil
}

func runPrice(ctx context.Context, app *svc.ServiceContext, args []string) error {
	fs := flag.NewFlagSet("price", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs, 1, usages["price"]); err != nil {
		return err
	}
	amm := exchange.Amm(fs.Arg(0))
	mark, err := app.SDK.GetMarkPrice(ctx, amm)
	if err != nil {
		return err
	}
	index, err := app.SDK.GetIndexPrice(ctx, amm)
	if err != nil {
		return err
	}
	funding, err := app.SDK.GetFundingRate(ctx, amm)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{
		"amm":         amm.Canonical().String(),
		"markPrice":   fixedpoint.Format(mark),
		"indexPrice":  fixedpoint.Format(index),
		"fundingRate": fixedpoint.Format(funding),
	})
}

func runPosition(ctx context.Context, app *svc.ServiceContext, args []string) error {
	fs := flag.NewFlagSet("position", flag.ContinueOnError)
	trader := fs.String("trader", "", "trader address (defaults to the signing account)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs, 1, usages["position"]); err != nil {
		return err
	}
	pos, err := app.SDK.GetPosition(ctx, exchange.Amm(fs.Arg(0)), *trader)
	if err != nil {
		return err
	}
	return printJSON(pos)
}

func runOpen(ctx context.Context, app *svc.ServiceContext, args []string) error {
	fs := flag.NewFlagSet("open", flag.ContinueOnError)
	slippage := fs.String("slippage", app.Config.SlippagePercent().String(), "slippage tolerance in percent, 0 disables")
	skip := fs.Bool("skip-checks", app.Config.Trading.SkipChecks, "skip the balance and allowance checks")
	wait := fs.Bool("wait", true, "wait for the transaction to be mined")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs, 4, usages["open"]); err != nil {
		return err
	}
	side, err := exchange.ParseSide(fs.Arg(1))
	if err != nil {
		return err
	}
	margin, err := parseAmount("margin", fs.Arg(2))
	if err != nil {
		return err
	}
	leverage, err := parseAmount("leverage", fs.Arg(3))
	if err != nil {
		return err
	}
	pct, err := parseAmount("slippage", *slippage)
	if err != nil {
		return err
	}
	guard := app.Config.GuardOptions()
	guard.SkipChecks = *skip

	tx, err := app.SDK.CreateMarketOrder(ctx, sdk.MarketOrderParams{
		Amm:             exchange.Amm(fs.Arg(0)),
		Side:            side,
		Margin:          margin,
		Leverage:        leverage,
		SlippagePercent: pct,
		GuardOptions:    guard,
	})
	rec := journal.TxRecord{Command: "open", Amm: fs.Arg(0), Params: map[string]string{
		"side": string(side), "margin": fixedpoint.Format(margin), "leverage": fixedpoint.Format(leverage), "slippage": fixedpoint.Format(pct),
	}}
	return finishTx(ctx, app, rec, tx, err, *wait)
}

func runClose(ctx context.Context, app *svc.ServiceContext, args []string) error {
	fs := flag.NewFlagSet("close", flag.ContinueOnError)
	slippage := fs.String("slippage", app.Config.SlippagePercent().String(), "slippage tolerance in percent, 0 disables")
	percent := fs.String("percent", "100", "share of the position to close")
	wait := fs.Bool("wait", true, "wait for the transaction to be mined")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs, 1, usages["close"]); err != nil {
		return err
	}
	pct, err := parseAmount("slippage", *slippage)
	if err != nil {
		return err
	}
	share, err := parseAmount("percent", *percent)
	if err != nil {
		return err
	}
	tx, err := app.SDK.ClosePosition(ctx, sdk.ClosePositionParams{
		Amm:             exchange.Amm(fs.Arg(0)),
		ClosePercent:    share,
		SlippagePercent: pct,
	})
	rec := journal.TxRecord{Command: "close", Amm: fs.Arg(0), Params: map[string]string{
		"percent": fixedpoint.Format(share), "slippage": fixedpoint.Format(pct),
	}}
	return finishTx(ctx, app, rec, tx, err, *wait)
}

func runMargin(ctx context.Context, app *svc.ServiceContext, args []string) error {
	fs := flag.NewFlagSet("margin", flag.ContinueOnError)
	wait := fs.Bool("wait", true, "wait for the transaction to be mined")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs, 3, usages["margin"]); err != nil {
		return err
	}
	amm := exchange.Amm(fs.Arg(1))
	amount, err := parseAmount("amount", fs.Arg(2))
	if err != nil {
		return err
	}
	var tx exchange.Transaction
	action := strings.ToLower(fs.Arg(0))
	switch action {
	case "add":
		tx, err = app.SDK.AddMargin(ctx, amm, amount, app.Config.GuardOptions())
	case "remove":
		tx, err = app.SDK.RemoveMargin(ctx, amm, amount)
	default:
		return fmt.Errorf("usage: perpctl %s", usages["margin"])
	}
	rec := journal.TxRecord{Command: "margin " + action, Amm: fs.Arg(1), Params: map[string]string{"amount": fixedpoint.Format(amount)}}
	return finishTx(ctx, app, rec, tx, err, *wait)
}

func runApprove(ctx context.Context, app *svc.ServiceContext, args []string) error {
	fs := flag.NewFlagSet("approve", flag.ContinueOnError)
	wait := fs.Bool("wait", true, "wait for the transaction to be mined")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs, 1, usages["approve"]); err != nil {
		return err
	}
	var p sdk.ApproveParams
	if strings.EqualFold(fs.Arg(0), "max") {
		p.Max = true
	} else {
		amount, err := parseAmount("amount", fs.Arg(0))
		if err != nil {
			return err
		}
		p.Amount = amount
	}
	tx, err := app.SDK.Approve(ctx, p)
	return finishTx(ctx, app, journal.TxRecord{Command: "approve", Params: map[string]string{"amount": fs.Arg(0)}}, tx, err, *wait)
}

func runOrders(ctx context.Context, app *svc.ServiceContext, args []string) error {
	fs := flag.NewFlagSet("orders", flag.ContinueOnError)
	trader := fs.String("trader", "", "trader address (defaults to the signing account)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs, 1, usages["orders"]); err != nil {
		return err
	}
	amm := exchange.Amm(fs.Arg(0))
	limits, err := app.SDK.GetLimitOrders(ctx, amm, *trader)
	if err != nil {
		return err
	}
	triggers, err := app.SDK.GetTriggerOrders(ctx, amm, *trader)
	if err != nil {
		return err
	}
	return printJSON(map[string][]statsapi.Order{"limit": limits, "trigger": triggers})
}

func runWatch(ctx context.Context, app *svc.ServiceContext, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs, 1, usages["watch"]); err != nil {
		return err
	}
	event, err := stream.ParseEvent(fs.Arg(0))
	if err != nil {
		return err
	}
	sub, err := app.SDK.Subscribe(ctx, event, exchange.Amm(fs.Arg(1)))
	if err != nil {
		return err
	}
	defer sub.Close()

	for msg := range sub.Messages() {
		fmt.Println(string(msg.Raw))
	}
	if err := sub.Err(); err != nil {
		return err
	}
	logx.Info("watch stopped")
	return nil
}
