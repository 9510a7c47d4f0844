package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/predyx/predyx/internal/chain"
	"github.com/predyx/predyx/internal/domain"
	"github.com/predyx/predyx/internal/engine"
	"github.com/predyx/predyx/internal/server"
	"github.com/predyx/predyx/internal/server/handler"
	"github.com/predyx/predyx/internal/server/ws"
)

// IndexMode runs only the chain poller and, when configured, the archiver.
func (a *App) IndexMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting index mode")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return deps.Poller.Run(ctx) })
	if deps.Archiver != nil {
		g.Go(func() error { return deps.Archiver.Run(ctx) })
	}
	return g.Wait()
}

// ServerMode serves the REST and websocket API over an already-populated
// mirror; no poller runs in this process.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps, nil)
	return g.Wait()
}

// SimMode runs everything against the in-process simulator: seeded markets,
// generated trade traffic, the poller and the API.
func (a *App) SimMode(ctx context.Context, deps *Dependencies) error {
	if deps.Sim == nil {
		return fmt.Errorf("app: sim mode requires the sim chain backend")
	}
	a.logger.InfoContext(ctx, "starting sim mode")

	if err := a.seedMarkets(deps); err != nil {
		return fmt.Errorf("app: seed markets: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return deps.Poller.Run(ctx) })
	g.Go(func() error { return a.generateTraffic(ctx, deps.Sim) })
	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps, deps.Poller)
	}
	return g.Wait()
}

// FullMode runs the poller and the API in one process, plus the archiver and
// sim traffic when configured.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	if deps.Sim != nil {
		if err := a.seedMarkets(deps); err != nil {
			return fmt.Errorf("app: seed markets: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return deps.Poller.Run(ctx) })
	if deps.Archiver != nil {
		g.Go(func() error { return deps.Archiver.Run(ctx) })
	}
	if deps.Sim != nil {
		g.Go(func() error { return a.generateTraffic(ctx, deps.Sim) })
	}
	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps, deps.Poller)
	}
	return g.Wait()
}

// startServer builds the handler set, the websocket hub and the HTTP server,
// and registers their goroutines on g. watermark may be nil when no poller
// runs in this process.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, watermark handler.WatermarkReader) {
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error { return hub.Run(ctx) })

	srv := server.New(server.Config{
		Host:        a.cfg.Server.Host,
		Port:        a.cfg.Server.Port,
		APIKey:      a.cfg.Server.APIKey,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, server.Handlers{
		Health:    handler.NewHealthHandler(deps.Markets, watermark),
		Markets:   handler.NewMarketHandler(deps.Query),
		Portfolio: handler.NewPortfolioHandler(deps.Query),
		Trades:    handler.NewTradeHandler(deps.Trade),
		Admin:     handler.NewAdminHandler(deps.Admin),
		Hub:       hub,
	}, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// seedQuestions are the markets deployed on simulator startup.
var seedQuestions = []struct {
	question string
	category string
}{
	{"Will ETH close above $5000 this quarter?", "crypto"},
	{"Will the next CPI print come in below 3%?", "economics"},
	{"Will the home team win the season opener?", "sports"},
	{"Will it rain in London on New Year's Day?", "weather"},
	{"Will a new L2 pass 1M daily transactions this year?", "crypto"},
}

func (a *App) seedMarkets(deps *Dependencies) error {
	n := a.cfg.Sim.SeedMarkets
	if n > len(seedQuestions) {
		n = len(seedQuestions)
	}
	for i := 0; i < n; i++ {
		q := seedQuestions[i]
		_, err := deps.Sim.CreateMarket(deps.OracleAddress, engine.Config{
			Question:       q.question,
			Category:       q.category,
			ResolutionDate: time.Now().Add(90 * 24 * time.Hour),
			Oracle:         deps.OracleAddress,
			FeeBps:         200,
		}, engine.ToRaw(a.cfg.Sim.SeedLiquidity))
		if err != nil {
			return err
		}
	}
	a.logger.Info("simulated markets seeded", "count", n)
	return nil
}

// generateTraffic plays random traders against the simulated markets so the
// indexer and API have live data to chew on. Rejected trades (pool drain,
// insufficient shares) are part of normal operation and only logged.
func (a *App) generateTraffic(ctx context.Context, sim *chain.Sim) error {
	traders := make([]string, a.cfg.Sim.Traders)
	for i := range traders {
		traders[i] = traderAddress(i)
	}
	if len(traders) == 0 {
		return nil
	}

	ticker := time.NewTicker(a.cfg.Sim.TradeInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			markets, err := sim.Markets(ctx)
			if err != nil || len(markets) == 0 {
				continue
			}
			trader := traders[rand.IntN(len(traders))]
			market := markets[rand.IntN(len(markets))]
			side := domain.SideYes
			if rand.IntN(2) == 0 {
				side = domain.SideNo
			}

			if rand.IntN(5) < 4 {
				amount := engine.ToRaw(1 + rand.Float64()*(a.cfg.Sim.MaxTradeAmount-1))
				if _, err := sim.Buy(trader, market, side, amount); err != nil {
					a.logger.Debug("sim buy rejected", "market", market, "error", err)
				}
			} else {
				shares := engine.ToRaw(1 + rand.Float64()*5)
				if _, err := sim.Sell(trader, market, side, shares); err != nil {
					a.logger.Debug("sim sell rejected", "market", market, "error", err)
				}
			}
		}
	}
}

// traderAddress derives a stable synthetic address for trader i.
func traderAddress(i int) string {
	h := gethcrypto.Keccak256([]byte(fmt.Sprintf("sim-trader-%d", i)))
	return common.BytesToAddress(h[12:]).Hex()
}
