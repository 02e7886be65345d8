// Command auctionhousectl bootstraps the auction engine and runs a
// scripted English-auction demo scenario, persisting a snapshot when a
// Redis URL is given. It carries no RPC framing and no interactive CLI —
// transport and a real command surface are left to the embedding
// application.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/nexuslabs/auctionengine/internal/auction"
	"github.com/nexuslabs/auctionengine/internal/capabilities"
	"github.com/nexuslabs/auctionengine/internal/events"
	"github.com/nexuslabs/auctionengine/internal/gateway"
	"github.com/nexuslabs/auctionengine/internal/ledger"
	"github.com/nexuslabs/auctionengine/internal/metrics"
	"github.com/nexuslabs/auctionengine/internal/persistence"
	"github.com/nexuslabs/auctionengine/pkg/logger"

	"github.com/rs/zerolog"
)

func main() {
	feeBps := flag.Uint("fee-bps", 100, "protocol fee in basis points")
	redisURL := flag.String("redis-url", os.Getenv("REDIS_URL"), "Redis URL for persistence (optional)")
	debug := flag.Bool("debug", false, "capture DebugInfo for each Create call")
	flag.Parse()

	logger.Init(logger.DefaultConfig())
	log := logger.Log

	m := metrics.NewMetrics("auctionengine")
	log.Info().Msg("prometheus metrics enabled")

	var store *persistence.Store
	if *redisURL != "" {
		s, err := persistence.New(*redisURL, 24*time.Hour)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to redis, running without persistence")
		} else {
			store = s
			defer store.Close()
			log.Info().Str("redis_url", *redisURL).Msg("persistence enabled")
		}
	} else {
		log.Info().Msg("redis-url not set, running without persistence")
	}

	treasury := capabilities.Principal("treasury")
	gw := gateway.NewMockGateway()
	sink := events.NewSliceSink()
	recorder := events.NewRecorder(sink, 100)
	l := ledger.New(gw, recorder, m)
	clock := capabilities.SystemClock{}
	params := capabilities.NewStaticParameters(uint32(*feeBps), treasury)
	cfg := auction.DefaultConfig()
	cfg.DebugMode = *debug
	dispatcher := auction.New(l, clock, params, m, cfg)

	ctx := context.Background()
	runEnglishScenario(ctx, log, dispatcher, gw, treasury)

	if store != nil {
		if id, ok := dispatcher.Ledger.Peek(1); ok {
			if err := store.SaveSnapshot(ctx, id); err != nil {
				log.Warn().Err(err).Msg("failed to persist snapshot")
			}
			if err := store.AppendLog(ctx, id.ID, "Create", nil); err != nil {
				log.Warn().Err(err).Msg("failed to append log entry")
			}
		}
	}

	log.Info().Int("events_recorded", len(sink.All())).Msg("scenario complete")
}

// runEnglishScenario seeds a single item and a fungible balance, then
// creates one English auction and places one bid on it — enough to
// exercise the escrow gateway, the effect-list commit path, and the
// metrics/event wiring. It does not claim or withdraw.
func runEnglishScenario(ctx context.Context, log zerolog.Logger, d *auction.Dispatcher, gw *gateway.MockGateway, treasury capabilities.Principal) {
	const seller capabilities.Principal = "seller"
	const bidder capabilities.Principal = "bidder"

	gw.SeedItem("widgets", 1, gateway.Principal(seller))
	gw.Credit("usd", gateway.Principal(bidder), 5_000_000_000_000_000_000)

	id, err := d.Create(ctx, auction.CreateRequest{
		Kind:           ledger.English,
		AssetKind:      gateway.Unique,
		Auctioneer:     seller,
		ItemAsset:      "widgets",
		ItemIDOrAmount: 1,
		PayAsset:       "usd",
		Params: auction.Params{
			StartingBid:       1_000_000_000_000_000_000,
			MinBidDelta:       100_000_000_000_000_000,
			Duration:          300,
			DeadlineExtension: 60,
		},
		IdempotencyKey: "demo-english-1",
	})
	if err != nil {
		log.Error().Err(err).Msg("create failed")
		return
	}
	log.Info().Uint64("auction_id", id).Msg("english auction created")

	if err := d.Bid(ctx, auction.BidRequest{AuctionID: id, Bidder: bidder, Delta: 1_000_000_000_000_000_000}); err != nil {
		log.Error().Err(err).Msg("bid failed")
		return
	}
	log.Info().Uint64("auction_id", id).Msg("bid accepted")
}
