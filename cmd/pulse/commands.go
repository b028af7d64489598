package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"AlphaPulse/internal/app"
	"AlphaPulse/internal/config"
	"AlphaPulse/internal/logger"
	"AlphaPulse/internal/model"
	"AlphaPulse/internal/notifier"
	"AlphaPulse/internal/watchlist"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"
)

var commands = []subcommands.Command{
	&mutateCmd{name: "add", synopsis: "add symbols to the watchlist", op: (*app.App).WatchlistAdd},
	&mutateCmd{name: "rm", synopsis: "remove symbols from the watchlist", op: (*app.App).WatchlistRemove},
	&mutateCmd{name: "toggle", synopsis: "add or remove symbols depending on whether they are tracked", op: (*app.App).WatchlistToggle},
	&listCmd{},
	&quotesCmd{},
}

// openApp loads the config and builds the application. Logs go to stderr
// at warn level unless the config says otherwise.
func openApp() (*app.App, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Log.Level = "warn"
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a, _, err := app.Build(cfg, log)
	return a, err
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, "error:", err)
	return subcommands.ExitFailure
}

type mutateCmd struct {
	name     string
	synopsis string
	op       func(*app.App, context.Context, string) (string, watchlist.Outcome, error)
}

func (c *mutateCmd) Name() string     { return c.name }
func (c *mutateCmd) Synopsis() string { return c.synopsis }
func (c *mutateCmd) Usage() string {
	return fmt.Sprintf("pulse %s <symbol>...\n\n  Digit-only codes get the default market suffix, e.g. 2330 -> 2330.TW.\n", c.name)
}
func (c *mutateCmd) SetFlags(*flag.FlagSet) {}

func (c *mutateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	a, err := openApp()
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	status := subcommands.ExitSuccess
	for _, raw := range f.Args() {
		sym, out, err := c.op(a, ctx, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", raw, err)
			status = subcommands.ExitFailure
			continue
		}
		fmt.Printf("%-12s %s\n", sym, strings.ToLower(strings.ReplaceAll(string(out), "_", " ")))
	}
	return status
}

type listCmd struct{}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list tracked symbols, newest first" }
func (*listCmd) Usage() string    { return "pulse list\n" }
func (*listCmd) SetFlags(*flag.FlagSet) {}

func (*listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	entries, err := a.WatchlistList(ctx)
	if err != nil {
		return fail(err)
	}
	for _, e := range entries {
		fmt.Printf("%-12s added %s\n", e.Symbol, humanize.Time(e.AddedAt))
	}
	return subcommands.ExitSuccess
}

type quotesCmd struct{}

func (*quotesCmd) Name() string     { return "quotes" }
func (*quotesCmd) Synopsis() string { return "refresh live quotes for every tracked symbol" }
func (*quotesCmd) Usage() string {
	return "pulse quotes\n\n  Symbols whose quote cannot be fetched are left out.\n"
}
func (*quotesCmd) SetFlags(*flag.FlagSet) {}

func (*quotesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	quotes, err := a.RefreshWatchlistSummaries(ctx)
	if err != nil {
		return fail(err)
	}
	for _, q := range quotes {
		fmt.Printf("%-12s %12s  %s\n", q.Symbol, humanize.CommafWithDigits(q.Price, 2), notifier.FormatChange(q))
	}
	return subcommands.ExitSuccess
}

type analyzeCmd struct {
	chartPath string
}

func (*analyzeCmd) Name() string     { return "analyze" }
func (*analyzeCmd) Synopsis() string { return "show quote, fundamentals, technicals and news for a symbol" }
func (*analyzeCmd) Usage() string {
	return "pulse analyze [-chart file.png] <symbol>\n"
}

func (c *analyzeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.chartPath, "chart", "", "write the candlestick chart to this PNG file")
}

func (c *analyzeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	a, err := openApp()
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	res, err := a.Analyze(ctx, "cli", f.Arg(0))
	if err != nil {
		return fail(err)
	}
	writeAnalysis(os.Stdout, res)
	if !res.Found() {
		return subcommands.ExitFailure
	}

	if c.chartPath != "" {
		if !res.HasChart() {
			return fail(errors.New("chart unavailable: " + res.Missing[model.FacetChart]))
		}
		if err := os.WriteFile(c.chartPath, res.Chart, 0o644); err != nil {
			return fail(err)
		}
		fmt.Printf("\nchart written to %s (%s)\n", c.chartPath, humanize.Bytes(uint64(len(res.Chart))))
	}
	return subcommands.ExitSuccess
}

func writeAnalysis(w io.Writer, res model.AnalysisResult) {
	switch res.Status {
	case model.StatusInvalid:
		fmt.Fprintln(w, notifier.InputHint)
		return
	case model.StatusNotFound:
		fmt.Fprintf(w, "%s: 查無資料, 請確認代碼\n", res.Symbol)
		return
	case model.StatusUnavailable:
		fmt.Fprintf(w, "%s: %s\n", res.Symbol, res.Reason)
		return
	}

	name := res.Symbol
	if res.Fundamentals != nil {
		name = res.Fundamentals.DisplayName()
	}
	fmt.Fprintf(w, "%s (%s)\n", name, res.Symbol)
	if q := res.Quote; q != nil {
		fmt.Fprintf(w, "  price   %s %s  %s\n", humanize.CommafWithDigits(q.Price, 2), q.Currency, notifier.FormatChange(*q))
	}
	if f := res.Fundamentals; f != nil {
		if f.Volume != nil {
			fmt.Fprintf(w, "  volume  %s\n", humanize.Comma(*f.Volume))
		}
		if f.PE != nil {
			fmt.Fprintf(w, "  P/E     %.2f\n", *f.PE)
		}
		if f.EPS != nil {
			fmt.Fprintf(w, "  EPS     %.2f\n", *f.EPS)
		}
		fmt.Fprintf(w, "  cap     %s\n", notifier.FormatMarketCap(f.MarketCap))
		if f.Sector != nil {
			fmt.Fprintf(w, "  sector  %s\n", *f.Sector)
		}
	}
	if t := res.Technicals; t != nil {
		fmt.Fprintf(w, "  RSI14   %.1f  range %.2f ~ %.2f (%.0f%%)\n", t.RSI14, t.PeriodLow, t.PeriodHigh, t.RangePosition*100)
	}
	for facet, reason := range res.Missing {
		fmt.Fprintf(w, "  %-7s unavailable: %s\n", facet, reason)
	}
	if len(res.News) > 0 {
		fmt.Fprintln(w, "\nnews:")
	}
	for _, n := range res.News {
		fmt.Fprintf(w, "  - %s\n    %s, %s\n", n.Title, n.Publisher, n.PublishedAt.Local().Format("2006-01-02 15:04"))
	}
}
