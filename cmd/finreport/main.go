// Command finreport prints ledger reports as indented JSON.
//
//	finreport dashboard [-date "YYYY-MM-DD HH:MM:SS"]
//	finreport search <query>
//	finreport category -name <category> [-date "YYYY-MM-DD HH:MM:SS"] [-sum]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"finreport/internal/cli"
	"finreport/internal/log"
	"finreport/internal/report"
	"finreport/internal/services"
)

const usage = `usage: finreport <command> [flags]

commands:
  dashboard  month-to-date summary (-date)
  search     records whose description or category contain the query
  category   three-month spending in one category (-name, -date, -sum)
`

func main() {
	cli.LoadEnvFile()
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger := cli.SetupLogger(cfg.LogLevel, stderr).WithComponent(log.ComponentApp)

	app, err := cli.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		return 1
	}
	defer app.Close()

	out, err := dispatch(ctx, app.Service, args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	body, err := report.Encode(out)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	fmt.Fprintln(stdout, string(body))
	return 0
}

func dispatch(ctx context.Context, svc *services.ReportService, args []string, stderr io.Writer) (any, error) {
	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet("finreport "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)

	switch cmd {
	case "dashboard":
		date := fs.String("date", "", "reference moment, YYYY-MM-DD HH:MM:SS (default now)")
		if err := fs.Parse(rest); err != nil {
			return nil, err
		}
		return svc.Dashboard(ctx, *date)

	case "search":
		if err := fs.Parse(rest); err != nil {
			return nil, err
		}
		return svc.Search(ctx, strings.Join(fs.Args(), " "))

	case "category":
		name := fs.String("name", "", "category to report on")
		date := fs.String("date", "", "reference moment, YYYY-MM-DD HH:MM:SS (default now)")
		sum := fs.Bool("sum", false, "print one total per category instead of records")
		if err := fs.Parse(rest); err != nil {
			return nil, err
		}
		if *name == "" && fs.NArg() > 0 {
			*name = strings.Join(fs.Args(), " ")
		}
		if *sum {
			return svc.CategoryTotals(ctx, *name, *date)
		}
		return svc.SpendingByCategory(ctx, *name, *date)

	default:
		fmt.Fprint(stderr, usage)
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}
