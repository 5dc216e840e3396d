package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/rawblock/txlock-engine/internal/api"
	"github.com/rawblock/txlock-engine/internal/auditlog"
	"github.com/rawblock/txlock-engine/internal/chainwatch"
	"github.com/rawblock/txlock-engine/internal/committee"
	"github.com/rawblock/txlock-engine/internal/relay"
	"github.com/rawblock/txlock-engine/internal/txlock"
)

func main() {
	log.Println("Starting txlock-engine (transaction-locking consensus service)...")

	// ─── Required Environment Variables ─────────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values.
	// ────────────────────────────────────────────────────────────────────

	dbUrl := os.Getenv("DATABASE_URL")
	var auditStore *auditlog.Store
	if dbUrl != "" {
		store, err := auditlog.Connect(dbUrl)
		if err != nil {
			log.Printf("Warning: failed to connect to PostgreSQL, continuing without an audit log. Error: %v", err)
		} else {
			auditStore = store
			defer auditStore.Close()
			if err := auditStore.InitSchema(); err != nil {
				log.Printf("Warning: audit log schema init failed: %v", err)
			}
		}
	} else {
		log.Println("DATABASE_URL not set — running without an audit log")
	}

	btcHost := getEnvOrDefault("BTC_RPC_HOST", "localhost:8332")
	btcUser := requireEnv("BTC_RPC_USER")
	btcPass := requireEnv("BTC_RPC_PASS")

	connCfg := &rpcclient.ConnConfig{
		Host:         btcHost,
		User:         btcUser,
		Pass:         btcPass,
		HTTPPostMode: true,
		DisableTLS:   getEnvOrDefault("BTC_RPC_DISABLE_TLS", "true") == "true",
	}
	rpcClient, err := rpcclient.New(connCfg, nil)
	if err != nil {
		log.Fatalf("FATAL: failed to connect to Bitcoin RPC: %v", err)
	}
	defer rpcClient.Shutdown()

	adapter := chainwatch.NewAdapter(rpcClient)

	// ─── Committee wiring ────────────────────────────────────────────────
	registry := committee.NewRegistry(func(height int64) ([32]byte, error) {
		hash, err := rpcClient.GetBlockHash(height)
		if err != nil {
			return [32]byte{}, err
		}
		return *hash, nil
	})
	signer := committee.NewECDSASigner()

	if selfCollateral := os.Getenv("COMMITTEE_SELF_COLLATERAL"); selfCollateral != "" {
		selfID, err := parseCommitteeId(selfCollateral, os.Getenv("COMMITTEE_SELF_COLLATERAL_INDEX"))
		if err != nil {
			log.Fatalf("FATAL: invalid COMMITTEE_SELF_COLLATERAL: %v", err)
		}
		privHex := requireEnv("COMMITTEE_SELF_PRIVKEY")
		priv, err := parsePrivateKey(privHex)
		if err != nil {
			log.Fatalf("FATAL: invalid COMMITTEE_SELF_PRIVKEY: %v", err)
		}
		signer.AddKey(selfID, priv)
		pub := (*btcec.PublicKey)(priv.PubKey())
		registry.Register(committee.Member{ID: selfID, PubKey: pub, ProtoVer: 70213})
		registry.SetSelf(selfID)
		log.Printf("[txlockd] registered self as committee member %s", selfID)
	} else {
		log.Println("WARNING: COMMITTEE_SELF_COLLATERAL not set — engine running in observer mode (no local voting)")
	}

	// ─── Relay hub + operator notifier ──────────────────────────────────
	hub := relay.NewHub()
	go hub.Run()
	notifier := relay.NewNotifier(os.Getenv("INSTANTSEND_NOTIFY_CMD"))

	// ─── Engine construction ─────────────────────────────────────────────
	cfg := txlock.DefaultConfig()
	if v := os.Getenv("TXLOCK_SIGNATURES_REQUIRED"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SignaturesRequired = n
		}
	}
	if v := os.Getenv("TXLOCK_SIGNATURES_TOTAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SignaturesTotal = n
		}
	}
	cfg.InstantSendNotify = os.Getenv("INSTANTSEND_NOTIFY_CMD")

	engine := txlock.NewEngine(cfg, adapter, registry, signer, hub)
	engine.SetNotifier(notifier)
	if auditStore != nil {
		engine.SetAuditSink(auditStore)
	}

	// ─── Chain watcher ───────────────────────────────────────────────────
	watcher := chainwatch.NewWatcher(adapter, engine, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	// ─── HTTP API ────────────────────────────────────────────────────────
	r := api.SetupRouter(engine, hub, auditStore)

	port := getEnvOrDefault("PORT", "5339")
	log.Printf("txlock-engine listening on :%s\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// parseCommitteeId builds a CommitteeId from a collateral txid and vout.
func parseCommitteeId(txidHex, voutStr string) (txlock.CommitteeId, error) {
	hash, err := chainhash.NewHashFromStr(txidHex)
	if err != nil {
		return txlock.CommitteeId{}, err
	}
	vout := 0
	if voutStr != "" {
		n, err := strconv.Atoi(voutStr)
		if err != nil {
			return txlock.CommitteeId{}, err
		}
		vout = n
	}
	return txlock.CommitteeId{Collateral: wire.OutPoint{Hash: *hash, Index: uint32(vout)}}, nil
}

// parsePrivateKey decodes a hex-encoded secp256k1 scalar into a private key.
func parsePrivateKey(hexKey string) (*secp256k1.PrivateKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("bad hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("expected 32-byte key, got %d bytes", len(raw))
	}
	return secp256k1.PrivKeyFromBytes(raw), nil
}

// requireEnv reads a required environment variable and exits if it is not set.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set.", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
