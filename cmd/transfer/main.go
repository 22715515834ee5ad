// Package main provides a one-shot token transfer CLI. It runs a single
// orchestrated transfer, prints pipeline progress, and can optionally wait
// for the transaction to be mined.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"evm-token-engine/internal/domain"
	"evm-token-engine/internal/engine"
	"evm-token-engine/internal/evm"
	"evm-token-engine/internal/token"
)

// privateKeyEnv names the environment variable holding the hex-encoded
// signing key. The key is never accepted as a flag.
const privateKeyEnv = "EVM_PRIVATE_KEY"

func main() {
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("EVM_RPC_ENDPOINT"), "EVM JSON-RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("EVM_WS_ENDPOINT"), "EVM WebSocket endpoint (optional, block-triggered waiting)")
	contractAddr := flag.String("contract", os.Getenv("TOKEN_CONTRACT"), "ERC20 token contract address")
	to := flag.String("to", "", "Recipient address")
	amount := flag.String("amount", "", "Amount in human units, e.g. 2.5")
	bufferPercent := flag.Uint64("buffer-percent", 0, "Gas safety buffer percent (0 selects the default)")
	wait := flag.Bool("wait", false, "Wait for the transaction to be mined")
	waitAttempts := flag.Int("wait-attempts", engine.DefaultConfirmAttempts, "Receipt polls before giving up")
	waitInterval := flag.Duration("wait-interval", engine.DefaultConfirmInterval, "Interval between receipt polls")
	verbose := flag.Bool("verbose", false, "Log rejections and client detail")

	flag.Parse()

	logger := log.New(os.Stderr, "[transfer] ", log.LstdFlags)

	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if !common.IsHexAddress(*contractAddr) {
		logger.Fatal("--contract must be a hex token contract address")
	}
	if *to == "" || *amount == "" {
		logger.Fatal("--to and --amount are required")
	}

	raw := strings.TrimSpace(os.Getenv(privateKeyEnv))
	if raw == "" {
		logger.Fatalf("%s must be set", privateKeyEnv)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		logger.Fatalf("Failed to parse %s: %v", privateKeyEnv, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	client := evm.NewHTTPClient(*rpcEndpoint, key)
	contract := common.HexToAddress(*contractAddr)

	progress := make(chan domain.ProgressEvent, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range progress {
			fmt.Printf("  %s...\n", ev.Stage)
		}
	}()

	orchestrator := engine.New(engine.Options{
		Client:        client,
		MetadataCache: token.NewMetadataCache(client, nil, logger),
		Contract:      contract,
		BufferPercent: *bufferPercent,
		Progress:      progress,
		Logger:        logger,
		Verbose:       *verbose,
	})

	fmt.Printf("Transferring %s to %s\n", *amount, *to)
	outcome := orchestrator.Transfer(ctx, *to, *amount)
	close(progress)
	wg.Wait()

	switch outcome.Status {
	case domain.StatusSubmitted:
		fmt.Printf("Submitted: %s\n", outcome.TxHash)
	case domain.StatusRejected:
		fmt.Printf("Rejected: %s\n", outcome.Reason)
		if outcome.Shortfall != nil {
			fmt.Printf("Short by %s wei for fees\n", outcome.Shortfall)
		}
		os.Exit(1)
	case domain.StatusFailed:
		fmt.Printf("Failed (%s): %s\n", outcome.Kind, outcome.Detail)
		os.Exit(1)
	}

	if !*wait {
		return
	}

	receipt, err := awaitReceipt(ctx, client, *wsEndpoint, common.HexToHash(outcome.TxHash), *waitAttempts, *waitInterval, logger)
	if err != nil {
		logger.Fatalf("Confirmation: %v", err)
	}
	if receipt.Succeeded() {
		fmt.Printf("Mined in block %d (gas used %d)\n", receipt.BlockNumber, receipt.GasUsed)
	} else {
		fmt.Printf("Reverted in block %d\n", receipt.BlockNumber)
		os.Exit(1)
	}
}

// awaitReceipt waits for a receipt, block-triggered when a WebSocket
// endpoint is available, fixed-interval polling otherwise.
func awaitReceipt(ctx context.Context, client evm.LedgerClient, wsEndpoint string, txHash common.Hash, attempts int, interval time.Duration, logger *log.Logger) (*evm.Receipt, error) {
	fmt.Printf("Waiting for confirmation of %s\n", txHash.Hex())

	if wsEndpoint != "" {
		sub, err := evm.NewHeadSubscriber(ctx, wsEndpoint, nil)
		if err != nil {
			logger.Printf("Head subscription failed, falling back to polling: %v", err)
		} else {
			defer sub.Close()
			return engine.AwaitConfirmationOnHeads(ctx, client, sub.Heads(), txHash, attempts)
		}
	}

	return engine.AwaitConfirmation(ctx, client, txHash, attempts, interval)
}
