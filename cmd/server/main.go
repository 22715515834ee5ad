// Package main provides the transfer engine HTTP service:
// - POST /transfer: run one orchestrated token transfer
// - GET /balance: token balance of an address
// - GET /healthz, GET /metrics: health and Prometheus metrics
package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"

	"evm-token-engine/internal/domain"
	"evm-token-engine/internal/engine"
	"evm-token-engine/internal/evm"
	"evm-token-engine/internal/observability"
	"evm-token-engine/internal/storage"
	chstore "evm-token-engine/internal/storage/clickhouse"
	"evm-token-engine/internal/storage/memory"
	"evm-token-engine/internal/storage/migrations"
	pgstore "evm-token-engine/internal/storage/postgres"
	"evm-token-engine/internal/token"
)

// privateKeyEnv names the environment variable holding the hex-encoded
// signing key. The key is never accepted as a flag.
const privateKeyEnv = "EVM_PRIVATE_KEY"

// Server holds the engine components behind the HTTP handlers.
type Server struct {
	orchestrator *engine.Orchestrator
	client       evm.LedgerClient
	canSign      bool
	waitAttempts int
	waitInterval time.Duration
	metrics      *observability.Metrics
	logger       *log.Logger
	started      time.Time
}

// engineStores holds the storage implementations used by the engine.
type engineStores struct {
	metadataStore storage.TokenMetadataStore
	recordStore   storage.TransferRecordStore
	feeObsStore   storage.FeeObservationStore
}

func main() {
	loadEnvFile()

	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("EVM_RPC_ENDPOINT"), "EVM JSON-RPC HTTP endpoint")
	contractAddr := flag.String("contract", os.Getenv("TOKEN_CONTRACT"), "ERC20 token contract address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	listenAddr := flag.String("listen-addr", ":8080", "HTTP listen address")
	bufferPercent := flag.Uint64("buffer-percent", 0, "Gas safety buffer percent (0 selects the default)")
	waitAttempts := flag.Int("wait-attempts", engine.DefaultConfirmAttempts, "Receipt polls per confirmation wait")
	waitInterval := flag.Duration("wait-interval", engine.DefaultConfirmInterval, "Interval between receipt polls")
	verbose := flag.Bool("verbose", false, "Log rejected transfers as well as failures")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if !common.IsHexAddress(*contractAddr) {
		logger.Fatal("--contract must be a hex token contract address")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	key, err := loadSigningKey()
	if err != nil {
		logger.Fatalf("Failed to load signing key: %v", err)
	}
	if key == nil {
		logger.Printf("%s not set, running read-only: POST /transfer is disabled", privateKeyEnv)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("")
	contract := common.HexToAddress(*contractAddr)

	effectiveBuffer := *bufferPercent
	if effectiveBuffer == 0 {
		effectiveBuffer = domain.DefaultBufferPercent
	}
	metrics.FeeBufferPercent.Set(float64(effectiveBuffer))

	client := evm.NewHTTPClient(*rpcEndpoint, key,
		evm.WithCallObserver(func(method string, duration time.Duration, _ error) {
			metrics.RPCDuration.WithLabelValues(method).Observe(duration.Seconds())
		}))
	instrumented := &countingClient{LedgerClient: client, polls: metrics.ConfirmationPolls}

	orchestrator := engine.New(engine.Options{
		Client:              instrumented,
		MetadataCache:       token.NewMetadataCache(instrumented, stores.metadataStore, logger),
		Contract:            contract,
		BufferPercent:       *bufferPercent,
		RecordStore:         stores.recordStore,
		FeeObservationStore: stores.feeObsStore,
		Metrics:             metrics,
		Logger:              logger,
		Verbose:             *verbose,
	})

	server := &Server{
		orchestrator: orchestrator,
		client:       instrumented,
		canSign:      key != nil,
		waitAttempts: *waitAttempts,
		waitInterval: *waitInterval,
		metrics:      metrics,
		logger:       logger,
		started:      time.Now(),
	}

	httpServer := &http.Server{
		Addr:    *listenAddr,
		Handler: server.routes(),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}
		cancel()
	}()

	logger.Printf("Serving token %s on %s", contract.Hex(), *listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// loadSigningKey reads the hex private key from the environment. A missing
// variable is not an error; the server then runs read-only.
func loadSigningKey() (*ecdsa.PrivateKey, error) {
	raw := strings.TrimSpace(os.Getenv(privateKeyEnv))
	if raw == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", privateKeyEnv, err)
	}
	return key, nil
}

// createStores creates the engine stores, applying migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*engineStores, func(), error) {
	if useMemory {
		stores := &engineStores{
			metadataStore: memory.NewTokenMetadataStore(),
			recordStore:   memory.NewTransferRecordStore(),
			feeObsStore:   memory.NewFeeObservationStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &engineStores{
		metadataStore: pgstore.NewTokenMetadataStore(pool),
		recordStore:   pgstore.NewTransferRecordStore(pool),
		feeObsStore:   chstore.NewFeeObservationStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/transfer", s.handleTransfer)
	mux.HandleFunc("/balance", s.handleBalance)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// TransferRequest is the JSON body of POST /transfer.
type TransferRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	// Wait blocks the response until the transaction is mined or the
	// confirmation attempt budget runs out.
	Wait bool `json:"wait,omitempty"`
}

// TransferResponse is the JSON response of POST /transfer.
type TransferResponse struct {
	Status    string `json:"status"`
	TxHash    string `json:"tx_hash,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Shortfall string `json:"shortfall_wei,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Confirmed *bool  `json:"confirmed,omitempty"`
	GasUsed   uint64 `json:"gas_used,omitempty"`
}

// handleTransfer runs one orchestrated transfer.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.canSign {
		http.Error(w, "server has no signing key", http.StatusServiceUnavailable)
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	outcome := s.orchestrator.Transfer(r.Context(), req.Recipient, req.Amount)
	resp := outcomeResponse(outcome)

	if outcome.Submitted() && req.Wait {
		receipt, err := engine.AwaitConfirmation(r.Context(), s.client,
			common.HexToHash(outcome.TxHash), s.waitAttempts, s.waitInterval)
		confirmed := err == nil && receipt.Succeeded()
		resp.Confirmed = &confirmed
		if receipt != nil {
			resp.GasUsed = receipt.GasUsed
		}
	}

	writeJSON(w, statusCode(outcome), resp)
}

// handleBalance returns the token balance of ?address= as a decimal string.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	address := r.URL.Query().Get("address")
	balance, err := s.orchestrator.CheckBalance(r.Context(), address)
	if err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, token.ErrInvalidAddress) {
			code = http.StatusBadRequest
		}
		http.Error(w, err.Error(), code)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"address": address,
		"balance": balance,
	})
}

// outcomeResponse maps a terminal outcome to its JSON form.
func outcomeResponse(outcome domain.TransferOutcome) TransferResponse {
	resp := TransferResponse{
		Status: string(outcome.Status),
		TxHash: outcome.TxHash,
		Reason: string(outcome.Reason),
		Kind:   string(outcome.Kind),
		Detail: outcome.Detail,
	}
	if outcome.Shortfall != nil {
		resp.Shortfall = outcome.Shortfall.String()
	}
	return resp
}

// statusCode picks the HTTP status for a terminal outcome. Rejections are
// client errors; failures are upstream trouble.
func statusCode(outcome domain.TransferOutcome) int {
	switch outcome.Status {
	case domain.StatusSubmitted:
		return http.StatusOK
	case domain.StatusRejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// countingClient counts receipt polls for the confirmation metric.
type countingClient struct {
	evm.LedgerClient
	polls prometheus.Counter
}

func (c *countingClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*evm.Receipt, error) {
	c.polls.Inc()
	return c.LedgerClient.TransactionReceipt(ctx, txHash)
}

// loadEnvFile loads environment variables from a .env file if present.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
