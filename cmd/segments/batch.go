package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"network-kpi/internal/chain"
	"network-kpi/internal/config"
	"network-kpi/internal/geo"
	"network-kpi/internal/httpx"
	"network-kpi/internal/orchestrator"
	"network-kpi/internal/profitability"
	"network-kpi/internal/reporting"
	"network-kpi/internal/sources/leaderboard"
	"network-kpi/internal/sources/market"
	"network-kpi/internal/sources/pricing"
	"network-kpi/internal/sources/protocol"
	"network-kpi/internal/storage"
	"network-kpi/internal/storage/clickhouse"
	"network-kpi/internal/storage/migrations"
	"network-kpi/internal/storage/postgres"
	"network-kpi/internal/storage/s3"
	"network-kpi/internal/subgraph"
	"network-kpi/internal/windows"
)

// batch is one fully wired segmentation run: sources, orchestrator and
// every configured output.
type batch struct {
	orch     *orchestrator.Orchestrator
	writer   *reporting.Writer
	uploader *s3.Uploader
	sinks    *storage.Fanout
	closers  []func() error
	log      *slog.Logger
}

func newBatch(ctx context.Context, cfg config.Config, opts *options, log *slog.Logger) (b *batch, err error) {
	b = &batch{writer: reporting.NewWriter(opts.outputDir, log), log: log}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	newClient := func(paced bool) *httpx.Client {
		clientOpts := []httpx.Option{
			httpx.WithTimeout(cfg.HTTPTimeout),
			httpx.WithMaxRetries(cfg.MaxRetries),
		}
		if paced {
			clientOpts = append(clientOpts, httpx.WithRateLimit(cfg.RateLimitDelay))
		}
		return httpx.New(clientOpts...)
	}

	pagerFor := func(endpoint string) *subgraph.Paginator {
		return subgraph.NewPaginator(
			subgraph.NewHTTPTransport(endpoint, newClient(false)),
			subgraph.WithPageSize(cfg.PageSize),
			subgraph.WithPageCap(cfg.PageCap),
			subgraph.WithLogger(log),
		)
	}
	protocolSource := protocol.NewSource(pagerFor(cfg.MainnetSubgraphURL), pagerFor(cfg.ArbitrumSubgraphURL), log)

	etherscan := chain.NewEtherscanClient(cfg.EtherscanURL, cfg.EtherscanAPIKey, newClient(true))
	lookup, err := b.blockLookup(ctx, cfg, etherscan, newClient(false))
	if err != nil {
		return nil, err
	}

	orchOpts := orchestrator.Options{
		NumWindows: cfg.NumWindows,
		Windows: windows.NewAligner(windows.AlignerOptions{
			Lookup:  lookup,
			Delay:   cfg.RateLimitDelay,
			Workers: cfg.Workers,
			Clock:   cfg.Clock,
			Logger:  log,
		}),
		Entities: protocolSource,
		Scores:   leaderboard.New(cfg.LeaderboardURL, newClient(false), log),
		Clock:    cfg.Clock,
		Logger:   log,
	}

	if cfg.EnablePricing {
		orchOpts.Pricing = pricing.New(cfg.PricingURL, newClient(true), cfg.Workers, log)
	}
	if cfg.EnableGeo && cfg.EnablePricing {
		resolver, closeGeo, err := geo.Open(log, cfg.GeoIPCityDB, cfg.GeoIPASNDB)
		if err != nil {
			log.Warn("geo enrichment disabled", "error", err)
		} else {
			orchOpts.Geo = resolver
			b.closers = append(b.closers, closeGeo)
		}
	}
	if cfg.EnableProfitability {
		tokens := market.New(cfg.CoinGeckoURL, market.DefaultCoin, newClient(true))
		orchOpts.Economics = profitability.NewEstimator(protocolSource, etherscan, tokens, cfg.Workers, log)
	}
	b.orch = orchestrator.New(orchOpts)

	if err := b.openOutputs(ctx, opts); err != nil {
		return nil, err
	}
	return b, nil
}

// blockLookup resolves blocks over JSON-RPC when an endpoint is configured
// and through Etherscan otherwise.
func (b *batch) blockLookup(ctx context.Context, cfg config.Config, etherscan *chain.EtherscanClient, client *httpx.Client) (chain.BlockLookup, error) {
	switch {
	case cfg.EthRPCURL == "":
		return etherscan, nil
	case strings.HasPrefix(cfg.EthRPCURL, "ws://"), strings.HasPrefix(cfg.EthRPCURL, "wss://"):
		ws, err := chain.NewWSClient(ctx, cfg.EthRPCURL, nil)
		if err != nil {
			return nil, fmt.Errorf("connect eth rpc: %w", err)
		}
		b.closers = append(b.closers, ws.Close)
		return chain.NewRPCBlockLookup(ws), nil
	default:
		rpc := chain.NewHTTPClient(cfg.EthRPCURL, client)
		return chain.NewRPCBlockLookup(rpc), nil
	}
}

func (b *batch) openOutputs(ctx context.Context, opts *options) error {
	if opts.s3Bucket != "" {
		client, err := s3.NewClient(ctx, s3.Config{
			Bucket:   opts.s3Bucket,
			Region:   opts.s3Region,
			Endpoint: opts.s3Endpoint,
			Prefix:   opts.s3Prefix,
		})
		if err != nil {
			return fmt.Errorf("create s3 client: %w", err)
		}
		b.uploader = s3.NewUploader(client, opts.s3Bucket, opts.s3Prefix, b.log)
	}

	var sinks []storage.NamedSink
	if opts.postgresDSN != "" {
		pool, err := postgres.NewPool(ctx, opts.postgresDSN)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
		sinks = append(sinks, storage.NamedSink{Name: "postgres", Sink: postgres.NewRunStore(pool)})
	}
	if opts.clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, opts.clickhouseDSN)
		if err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		b.closers = append(b.closers, conn.Close)
		sinks = append(sinks, storage.NamedSink{Name: "clickhouse", Sink: clickhouse.NewRunSink(conn)})
	}
	b.sinks = storage.NewFanout(b.log, sinks...)
	return nil
}

// Run executes the pipeline once and writes every output. Output failures
// after the local artifacts are written are reported but do not fail the run.
func (b *batch) Run(ctx context.Context) error {
	result, err := b.orch.Run(ctx)
	if err != nil {
		captureError(b.log, err)
		return err
	}
	run := result.Run()
	if !run.Complete {
		b.log.Warn("run is incomplete", "run_id", run.ID, "warnings", len(run.Warnings))
	}

	artifacts := reporting.Render(run)
	paths, err := b.writer.Write(artifacts)
	if err != nil {
		captureError(b.log, err)
		return err
	}
	b.log.Info("artifacts written", "run_id", run.ID, "files", paths)

	var outputErrs []error
	if b.uploader != nil {
		uris, err := b.uploader.Upload(ctx, run.ID, artifacts)
		if err != nil {
			outputErrs = append(outputErrs, fmt.Errorf("s3 upload: %w", err))
		} else {
			b.log.Info("artifacts uploaded", "run_id", run.ID, "objects", uris)
		}
	}
	if b.sinks.Len() > 0 {
		if err := b.sinks.WriteRun(ctx, run); err != nil {
			outputErrs = append(outputErrs, err)
		}
	}
	if err := errors.Join(outputErrs...); err != nil {
		captureError(b.log, err)
		b.log.Error("export failed", "run_id", run.ID, "error", err)
	}
	b.log.Info("run finished", "run_id", run.ID, "rows", len(run.Detail), "complete", run.Complete,
		"duration", time.Since(run.GeneratedAt).Round(time.Second))
	return nil
}

// Close releases every connection opened by newBatch.
func (b *batch) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			b.log.Warn("close failed", "error", err)
		}
	}
	b.closers = nil
}
