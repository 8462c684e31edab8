package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/stakecalc/internal/amount"
	"github.com/alanyoungcy/stakecalc/internal/domain"
	"github.com/alanyoungcy/stakecalc/internal/server"
	"github.com/alanyoungcy/stakecalc/internal/server/handler"
	"github.com/alanyoungcy/stakecalc/internal/server/ws"
	"github.com/alanyoungcy/stakecalc/internal/service"
)

// errUsage reports a malformed calc command line.
var errUsage = errors.New("usage: calc cost|max-session|stake|stipend|models|bids|best-bid|best-bids|invalidate ...")

// buildServices constructs the calculator and marketplace service shared by
// both modes.
func (a *App) buildServices(deps *Dependencies) (*service.Calculator, *service.MarketplaceService) {
	calc := service.NewCalculator(deps.Quoter, a.logger)
	market := service.NewMarketplaceService(deps.Fetcher, deps.Store, deps.SignalBus, service.MarketplaceConfig{
		ModelsTTL: a.cfg.Marketplace.ModelsTTL.Duration,
		BidsTTL:   a.cfg.Marketplace.BidsTTL.Duration,
		FanOut:    a.cfg.Marketplace.FanOut,
	}, a.logger)
	return calc, market
}

// ServerMode runs the HTTP API, the WebSocket hub and, when a refresh log is
// wired, the refresh recorder. It blocks until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	calc, market := a.buildServices(deps)

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(a.cfg.Mode, deps.CacheBackend, a.logger),
		Calc:        handler.NewCalcHandler(calc, a.logger),
		Quotes:      handler.NewQuoteHandler(deps.Quoter, a.logger),
		Marketplace: handler.NewMarketplaceHandler(market, a.logger),
	}
	if deps.RefreshLog != nil {
		handlers.Refreshes = handler.NewRefreshHandler(deps.RefreshLog, a.logger)

		recorder := service.NewRefreshRecorder(deps.SignalBus, deps.RefreshLog, a.logger)
		g.Go(func() error {
			return recorder.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimitRPS,
		RateBurst:   a.cfg.Server.RateBurst,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// quoteOutput is what the stake and stipend commands print.
type quoteOutput struct {
	Input     amount.Amount `json:"input"`
	Result    amount.Amount `json:"result"`
	ResultMOR string        `json:"result_mor"`
	Display   string        `json:"display"`
}

// CalcMode runs one calculator or marketplace command and prints the result
// as JSON.
func (a *App) CalcMode(ctx context.Context, deps *Dependencies, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	calc, market := a.buildServices(deps)

	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	unitName := fs.String("unit", "wei", "input unit for stake/stipend amounts (wei|MOR)")
	refresh := fs.Bool("refresh", false, "bypass the cache")
	// Flags may follow positional arguments ("max-session 1 10 -unit MOR").
	var pos []string
	for {
		if err := fs.Parse(rest); err != nil {
			return fmt.Errorf("app: %s: %w", cmd, err)
		}
		if fs.NArg() == 0 {
			break
		}
		pos = append(pos, fs.Arg(0))
		rest = fs.Args()[1:]
	}
	unit, err := amount.ParseUnit(*unitName)
	if err != nil {
		return fmt.Errorf("app: %s: %w", cmd, err)
	}

	var out any
	switch cmd {
	case "cost":
		if len(pos) != 2 {
			return fmt.Errorf("app: cost <seconds> <price>: %w", errUsage)
		}
		seconds, price, err := parsePair(pos[0], amount.UnitWei, pos[1])
		if err != nil {
			return fmt.Errorf("app: cost: %w", err)
		}
		if out, err = calc.SessionCost(ctx, seconds, price); err != nil {
			return fmt.Errorf("app: cost: %w", err)
		}

	case "max-session":
		if len(pos) != 2 {
			return fmt.Errorf("app: max-session [-unit MOR] <stake> <price>: %w", errUsage)
		}
		stake, price, err := parsePair(pos[0], unit, pos[1])
		if err != nil {
			return fmt.Errorf("app: max-session: %w", err)
		}
		if out, err = calc.MaxSession(ctx, stake, price); err != nil {
			return fmt.Errorf("app: max-session: %w", err)
		}

	case "stake", "stipend":
		if len(pos) != 1 {
			return fmt.Errorf("app: %s [-unit MOR] <amount>: %w", cmd, errUsage)
		}
		in, err := amount.ParseInput(pos[0], unit)
		if err != nil {
			return fmt.Errorf("app: %s: %w", cmd, err)
		}
		quote := deps.Quoter.QuoteStakeForStipend
		if cmd == "stipend" {
			quote = deps.Quoter.QuoteStipendForStake
		}
		res, err := quote(ctx, in)
		if err != nil {
			return fmt.Errorf("app: %s: %w", cmd, err)
		}
		out = quoteOutput{
			Input:     in,
			Result:    res,
			ResultMOR: amount.ToDisplayUnits(res, amount.Decimals),
			Display:   amount.FormatWei(res),
		}

	case "models":
		if out, err = market.ListModels(ctx, *refresh); err != nil {
			return fmt.Errorf("app: models: %w", err)
		}

	case "bids", "best-bid":
		if len(pos) != 1 {
			return fmt.Errorf("app: %s <model-id>: %w", cmd, errUsage)
		}
		if cmd == "bids" {
			if out, err = market.ListBids(ctx, pos[0], *refresh); err != nil {
				return fmt.Errorf("app: bids: %w", err)
			}
			break
		}
		bid, ok, err := market.TopBid(ctx, pos[0], *refresh)
		if err != nil {
			return fmt.Errorf("app: best-bid: %w", err)
		}
		var best *domain.ScoredBid
		if ok {
			best = &bid
		}
		out = map[string]any{"bid": best}

	case "best-bids":
		if out, err = market.BestBidsForAllModels(ctx, *refresh); err != nil {
			return fmt.Errorf("app: best-bids: %w", err)
		}

	case "invalidate":
		switch len(pos) {
		case 0:
			err = market.InvalidateModels(ctx)
		case 1:
			err = market.InvalidateBids(ctx, pos[0])
		default:
			return fmt.Errorf("app: invalidate [model-id]: %w", errUsage)
		}
		if err != nil {
			return fmt.Errorf("app: invalidate: %w", err)
		}
		out = map[string]bool{"invalidated": true}

	default:
		return fmt.Errorf("app: unknown command %q: %w", cmd, errUsage)
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// parsePair parses a first amount in unit and a per-second price in wei.
func parsePair(first string, unit amount.Unit, price string) (amount.Amount, amount.Amount, error) {
	a, err := amount.ParseInput(first, unit)
	if err != nil {
		return amount.Amount{}, amount.Amount{}, err
	}
	p, err := amount.Parse(price)
	if err != nil {
		return amount.Amount{}, amount.Amount{}, err
	}
	return a, p, nil
}
