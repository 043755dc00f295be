package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DeBrosOfficial/caseledger/pkg/app"
	"github.com/DeBrosOfficial/caseledger/pkg/indexer"
	"github.com/DeBrosOfficial/caseledger/pkg/logging"
	"github.com/DeBrosOfficial/caseledger/pkg/registry"
	"github.com/DeBrosOfficial/caseledger/pkg/telemetry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

func main() {
	cfg, err := parseIndexerConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "indexer: %v\n", err)
		os.Exit(2)
	}

	logger, closeLog, err := app.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "indexer: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.ComponentWarn(logging.ComponentIndexer, "tracing disabled", zap.Error(err))
	}

	eth, err := ethclient.DialContext(ctx, cfg.Network.RPCURL)
	if err != nil {
		logger.ComponentError(logging.ComponentIndexer, "failed to dial ledger", zap.String("url", cfg.Network.RPCURL), zap.Error(err))
		os.Exit(1)
	}
	defer eth.Close()

	ledger, err := registry.NewClient(eth, common.HexToAddress(cfg.Registry.ContractAddress), registry.WithLogger(logger))
	if err != nil {
		logger.ComponentError(logging.ComponentIndexer, "failed to create registry client", zap.Error(err))
		os.Exit(1)
	}

	store, err := indexer.OpenStore(ctx, cfg.Indexer.Driver, cfg.Indexer.DSN, logger)
	if err != nil {
		logger.ComponentError(logging.ComponentIndexer, "failed to open store",
			zap.String("driver", cfg.Indexer.Driver), zap.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	syncer := indexer.NewSyncer(ledger, store, cfg.Indexer.SyncInterval, logger)
	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		syncer.Run(ctx)
	}()

	ln, err := net.Listen("tcp", cfg.Indexer.ListenAddr)
	if err != nil {
		logger.ComponentError(logging.ComponentIndexer, "failed to listen", zap.String("addr", cfg.Indexer.ListenAddr), zap.Error(err))
		os.Exit(1)
	}
	server := indexer.NewServer(store, logger)

	// Start server
	go func() {
		if err := server.Serve(ln); err != nil {
			logger.ComponentError(logging.ComponentIndexer, "HTTP server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.ComponentInfo(logging.ComponentIndexer, "Shutting down indexer...")

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.ComponentError(logging.ComponentIndexer, "HTTP server shutdown error", zap.Error(err))
	}
	select {
	case <-syncDone:
	case <-shutdownCtx.Done():
		logger.ComponentWarn(logging.ComponentIndexer, "sync pass still running at shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.ComponentWarn(logging.ComponentIndexer, "trace flush failed", zap.Error(err))
	}
	logger.ComponentInfo(logging.ComponentIndexer, "Indexer shutdown complete")
}
