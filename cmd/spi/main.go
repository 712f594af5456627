// Command spi talks to a running recommender service.
//
//	spi [-addr URL] [-token JWT] predict -sku A-1 -cost 100 -competitors 120,130
//	spi latest -sku A-1
//	spi decide -sku A-1 -action reject
//	spi history -sku A-1 -from 2024-01-01 -limit 20
//	spi export -sku A-1 -out a1.xlsx
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"SPI/internal/client"
	"SPI/internal/domain/models"
	xutil "SPI/pkg/util"
)

func main() {
	addr := flag.String("addr", envOr("RECOMMENDER_URL", "http://localhost:8000"), "recommender base URL")
	token := flag.String("token", os.Getenv("SPI_TOKEN"), "bearer token for decisions")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	rc := client.NewRecommender(*addr, client.WithToken(*token))
	if err := run(ctx, rc, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "spi:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: spi [flags] predict|latest|decide|history|export [args]\n")
	flag.PrintDefaults()
}

func run(ctx context.Context, rc *client.Recommender, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	sku := fs.String("sku", "", "product SKU")

	switch cmd {
	case "predict":
		cost := fs.Float64("cost", 0, "cost price")
		comps := fs.String("competitors", "", "comma separated competitor prices")
		margin := fs.String("margin", "", "min profit margin override")
		undercut := fs.String("undercut", "", "undercut limit override")
		if err := fs.Parse(args); err != nil {
			return err
		}
		req, err := predictionRequest(*sku, *cost, *comps, *margin, *undercut)
		if err != nil {
			return err
		}
		res, err := rc.Predict(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(res)

	case "latest":
		if err := parseWithSKU(fs, args, sku); err != nil {
			return err
		}
		rec, err := rc.Latest(ctx, *sku)
		if err != nil {
			return err
		}
		return printJSON(rec)

	case "decide":
		action := fs.String("action", models.ActionAccept, "accept or reject")
		if err := parseWithSKU(fs, args, sku); err != nil {
			return err
		}
		d, err := rc.Decide(ctx, *sku, *action)
		if err != nil {
			return err
		}
		return printJSON(d)

	case "history", "export":
		from := fs.String("from", "", "lower bound (RFC3339, date or unix seconds)")
		to := fs.String("to", "", "upper bound")
		limit := fs.Int("limit", 0, "max rows")
		out := fs.String("out", "", "output file for export")
		if err := parseWithSKU(fs, args, sku); err != nil {
			return err
		}
		fromT, toT, err := timeBounds(*from, *to)
		if err != nil {
			return err
		}
		if cmd == "history" {
			recs, err := rc.History(ctx, *sku, fromT, toT, *limit)
			if err != nil {
				return err
			}
			return printJSON(recs)
		}
		b, err := rc.Export(ctx, *sku, fromT, toT, *limit)
		if err != nil {
			return err
		}
		if *out == "" {
			*out = *sku + ".xlsx"
		}
		return os.WriteFile(*out, b, 0o644)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func parseWithSKU(fs *flag.FlagSet, args []string, sku *string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sku == "" {
		return fmt.Errorf("-sku is required")
	}
	return nil
}

func predictionRequest(sku string, cost float64, comps, margin, undercut string) (*models.PredictionRequest, error) {
	req := &models.PredictionRequest{
		Product: &models.ProductInput{SKU: sku, CostPrice: &cost},
	}
	prices, err := xutil.ParseFloatList(comps)
	if err != nil {
		return nil, fmt.Errorf("competitor prices: %w", err)
	}
	req.CompetitorPrices = prices

	rules := &models.RulesInput{}
	for name, pair := range map[string]struct {
		raw string
		dst **float64
	}{"margin": {margin, &rules.MinProfitMargin}, "undercut": {undercut, &rules.UndercutLimit}} {
		if pair.raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(pair.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		*pair.dst = &v
	}
	if rules.MinProfitMargin != nil || rules.UndercutLimit != nil {
		req.Rules = rules
	}
	return req, nil
}

func timeBounds(from, to string) (time.Time, time.Time, error) {
	var f, t time.Time
	var ok bool
	if from != "" {
		if f, ok = xutil.ParseTime(from); !ok {
			return f, t, fmt.Errorf("invalid -from %q", from)
		}
	}
	if to != "" {
		if t, ok = xutil.ParseTime(to); !ok {
			return f, t, fmt.Errorf("invalid -to %q", to)
		}
	}
	return f, t, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
