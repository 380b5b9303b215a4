// Copyright (C) 2025 aicollab-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// agentd is the long-running peer process: it terminates the signed
// messaging protocol, runs the escrow and token-economy engines, answers
// marketplace/ledger HTTP requests, and keeps this node's entry in the
// registry/DHT/relay discovery fabric current.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aicollab-project/platform/api"
	"github.com/aicollab-project/platform/auth"
	"github.com/aicollab-project/platform/bridge"
	"github.com/aicollab-project/platform/contract"
	chainpkg "github.com/aicollab-project/platform/crypto/chain"
	"github.com/aicollab-project/platform/crypto/chain/ethereum"
	"github.com/aicollab-project/platform/crypto/chain/solana"
	"github.com/aicollab-project/platform/crypto/keys"
	"github.com/aicollab-project/platform/crypto/vault"
	"github.com/aicollab-project/platform/discovery/dht"
	"github.com/aicollab-project/platform/discovery/registry"
	"github.com/aicollab-project/platform/discovery/relay"
	"github.com/aicollab-project/platform/economy"
	"github.com/aicollab-project/platform/entity"
	"github.com/aicollab-project/platform/internal/config"
	"github.com/aicollab-project/platform/internal/logger"
	"github.com/aicollab-project/platform/internal/metrics"
	"github.com/aicollab-project/platform/protocol/chunk"
	"github.com/aicollab-project/platform/protocol/nonce"
	"github.com/aicollab-project/platform/protocol/session"
	"github.com/aicollab-project/platform/protocol/transport"
	"github.com/aicollab-project/platform/protocol/wire"
	"github.com/aicollab-project/platform/reputation"
	"github.com/aicollab-project/platform/storage"
)

// docStore is the narrow persistence shape every subsystem depends on,
// satisfied by either storage.FileStore or storage.PostgresStore.
type docStore interface {
	Save(key string, v interface{}) error
	Load(key string, v interface{}) error
	Exists(key string) bool
	List() ([]string, error)
	Delete(key string) error
}

func main() {
	configPath := flag.String("config", "", "path to agentd config file (YAML)")
	vaultPassphrase := flag.String("vault-passphrase", os.Getenv("AICP_VAULT_PASSPHRASE"), "passphrase protecting the entity key vault")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentd: config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg)
	log.Info("agentd starting", logger.String("entity_id", cfg.EntityID), logger.String("data_dir", cfg.DataDir))

	if err := run(cfg, *vaultPassphrase, log); err != nil {
		log.Fatal("agentd exited with error", logger.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Defaults(), nil
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) *logger.StructuredLogger {
	level := logger.InfoLevel
	switch cfg.Logging.Level {
	case "debug":
		level = logger.DebugLevel
	case "warn":
		level = logger.WarnLevel
	case "error":
		level = logger.ErrorLevel
	}
	l := logger.NewLogger(os.Stdout, level)
	logger.SetDefaultLogger(l)
	return l
}

func run(cfg *config.Config, vaultPassphrase string, log *logger.StructuredLogger) error {
	if vaultPassphrase == "" {
		return errors.New("vault passphrase is required (AICP_VAULT_PASSPHRASE or -vault-passphrase)")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer closeStore()

	ent, err := loadOrCreateEntity(cfg, vaultPassphrase, log)
	if err != nil {
		return fmt.Errorf("loading entity: %w", err)
	}

	chainRegistry := chainpkg.NewRegistry()
	if err := chainRegistry.RegisterProvider(ethereum.NewProvider()); err != nil {
		log.Warn("chain registry: ethereum provider not registered", logger.Error(err))
	}
	if err := chainRegistry.RegisterProvider(solana.NewProvider()); err != nil {
		log.Warn("chain registry: solana provider not registered", logger.Error(err))
	}
	bridgeReporter := bridge.NewReporter(chainRegistry, log)

	ledger := economy.NewLedger(store, log)
	ledger.SetBridgeReporter(bridgeReporter, func(entityID string) (ed25519.PublicKey, bool) {
		if entityID != ent.ID() {
			return nil, false
		}
		return ent.PublicKey(), true
	})

	reputationStore := reputation.NewStore(store)
	taskStore := contract.NewTaskStore(store)

	addr := cfg.Listen.Host + ":" + strconv.Itoa(cfg.Listen.Port)

	svcRegistry := registry.New(store)
	if err := svcRegistry.Load(); err != nil {
		log.Warn("registry: load failed, starting empty", logger.Error(err))
	}
	if err := svcRegistry.Register(registry.Entry{
		EntityID:     ent.ID(),
		Endpoint:     addr,
		Capabilities: skillStrings(ent),
		RegisteredAt: time.Now(),
	}); err != nil {
		log.Warn("registry: self-registration failed", logger.Error(err))
	}

	wsHub := relay.NewWSHub(log)
	relayService := relay.New(ent.ID(), func(msg relay.Message) {
		if !wsHub.Send(msg.Recipient, msg) {
			log.Debug("relay: recipient has no live socket, message stays queued",
				logger.String("recipient", msg.Recipient))
		}
	})
	relayService.Register(relay.Peer{
		EntityID:       ent.ID(),
		PublicKey:      ent.PublicKey(),
		ConnectionInfo: addr,
	})

	selfNodeID := dht.IDFromBytes(ent.PublicKey())
	dhtRegistry := dht.New(selfNodeID, dht.NewHTTPPinger())

	sessionManager := session.NewManager(session.DefaultConfig(), cfg.Session.CleanupInterval, log)
	nonceManager := nonce.NewManager(cfg.Message.NonceCapacity)
	chunkStore := chunk.NewStore(cfg.Message.TransferTTL)

	issuer := auth.NewIssuer([]byte(cfg.JWT.Secret), cfg.JWT.TTL)
	apiKeys := auth.NewAPIKeyStore()

	dispatcher := &messageDispatcher{
		entity:     ent,
		sessions:   sessionManager,
		nonces:     nonceManager,
		chunks:     chunkStore,
		tasks:      taskStore,
		ledger:     ledger,
		reputation: reputationStore,
		relay:      relayService,
		dht:        dhtRegistry,
		registry:   svcRegistry,
		log:        log,
	}

	peerServer := transport.NewServer(dispatcher.Handle, ent.PublicKey(), log)
	marketplace := api.NewServer(ledger, taskStore, issuer, apiKeys, log)

	mux := http.NewServeMux()
	peerServer.Mount(mux)
	marketplace.Mount(mux)
	mux.Handle("/dht/", dht.Handler(dhtRegistry))
	mux.HandleFunc("/relay/ws", wsHub.Handler())
	mux.Handle("/metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	stop := make(chan struct{})
	go svcRegistry.Run(registry.DefaultStaleCutoff, stop)
	go chunkStore.Run(cfg.Message.TransferGCPeriod, stop)
	go dispatcher.runNackLoop(nackCheckInterval, stop)

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", logger.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("http server error", logger.Error(err))
	}

	close(stop)
	sessionManager.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := svcRegistry.Flush(); err != nil {
		log.Warn("registry: final flush failed", logger.Error(err))
	}
	log.Info("agentd stopped")
	return nil
}

// openStore selects the Postgres-backed document store when a DSN is
// configured, falling back to the atomic-file store otherwise (spec.md
// §7: Postgres is an optional multi-process backend, not a requirement).
func openStore(cfg *config.Config) (docStore, func(), error) {
	if cfg.Postgres.DSN != "" {
		pg, err := storage.NewPostgresStore(context.Background(), cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { pg.Close() }, nil
	}
	fs, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}

// loadOrCreateEntity unlocks the entity's signing key from the on-disk
// vault, generating and sealing a fresh key pair on first run.
func loadOrCreateEntity(cfg *config.Config, passphrase string, log logger.Logger) (*entity.Entity, error) {
	v, err := vault.NewFileVault(cfg.DataDir + "/vault")
	if err != nil {
		return nil, err
	}

	entityID := cfg.EntityID
	if entityID == "" {
		return nil, errors.New("config: entity_id must be set")
	}

	if v.Exists(entityID) {
		raw, err := v.LoadDecrypted(entityID, passphrase)
		if err != nil {
			return nil, fmt.Errorf("unlocking vault: %w", err)
		}
		if len(raw) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("vault: unexpected key length %d for %s", len(raw), entityID)
		}
		kp, err := keys.NewEd25519KeyPair(ed25519.PrivateKey(raw), entityID)
		if err != nil {
			return nil, err
		}
		ent, err := entity.FromKeyPair(entityID, kp)
		if err != nil {
			return nil, err
		}
		log.Info("entity unlocked from vault", logger.String("entity_id", entityID))
		return ent, nil
	}

	kp, err := keys.GenerateEd25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate signing keypair: %w", err)
	}
	seed, ok := kp.PrivateKey().(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("generated key is not Ed25519")
	}
	ent, err := entity.FromKeyPair(entityID, kp)
	if err != nil {
		return nil, err
	}
	if err := v.StoreEncrypted(entityID, seed, passphrase); err != nil {
		return nil, fmt.Errorf("sealing new key into vault: %w", err)
	}
	log.Info("entity created and sealed into vault", logger.String("entity_id", entityID))
	return ent, nil
}

// skillStrings flattens an entity's registered skills for the registry
// entry's Capabilities field, which FindByCapability matches against.
func skillStrings(ent *entity.Entity) []string {
	skills := ent.Skills()
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		out = append(out, string(s))
	}
	return out
}

// nackCheckInterval is how often the NACK loop sweeps sessions for gaps
// due a (re-)announcement.
const nackCheckInterval = 2 * time.Second

// maxNackRetries bounds how many times a gap is re-announced before its
// session is given up on, matching the "sequence gap | NACK+wait |
// timeout -> session ERROR" failure path.
const maxNackRetries = 5

// messageDispatcher routes verified inbound wire.Messages to the
// subsystem that owns their payload.
type messageDispatcher struct {
	entity     *entity.Entity
	sessions   *session.Manager
	nonces     *nonce.Manager
	chunks     *chunk.Store
	tasks      *contract.TaskStore
	ledger     *economy.Ledger
	reputation *reputation.Store
	relay      *relay.Service
	dht        *dht.Registry
	registry   *registry.Registry
	log        logger.Logger
}

// Handle implements protocol/transport.Handler. The contract/negotiation
// types (proposal/quote/agreement/receipt) carry their own signed JSON
// payload understood by package contract; this dispatcher only routes
// by wire.MessageType and leaves payload interpretation to the engine
// that owns it.
func (d *messageDispatcher) Handle(ctx context.Context, msg *wire.Message) (*wire.Message, error) {
	if d.nonces.CheckAndRecord(msg.SenderID, msg.Nonce) {
		d.log.Warn("dispatcher: rejected replayed nonce", logger.String("sender_id", msg.SenderID))
		return nil, fmt.Errorf("replayed nonce from %s", msg.SenderID)
	}

	switch msg.Type {
	case wire.TypeChunkInit, wire.TypeChunk:
		return d.handleChunk(msg)
	case wire.TypeHandshakeInit:
		return d.handleHandshakeInit(msg)
	case wire.TypeNack:
		return d.handleNack(ctx, msg)
	case wire.TypeProposal, wire.TypeQuote, wire.TypeAgreement, wire.TypeReceipt:
		d.log.Info("dispatcher: contract message received",
			logger.String("type", string(msg.Type)),
			logger.String("sender_id", msg.SenderID))
		return d.ack(msg), nil
	case wire.TypePing:
		return d.ack(msg), nil
	default:
		d.log.Debug("dispatcher: passthrough message", logger.String("type", string(msg.Type)))
		return d.ack(msg), nil
	}
}

func (d *messageDispatcher) handleChunk(msg *wire.Message) (*wire.Message, error) {
	switch msg.Type {
	case wire.TypeChunkInit:
		var init chunk.Init
		if err := decodePayload(msg.Payload, &init); err != nil {
			return nil, err
		}
		if err := d.chunks.BeginTransfer(init); err != nil {
			return nil, err
		}
	case wire.TypeChunk:
		var c chunk.Chunk
		if err := decodePayload(msg.Payload, &c); err != nil {
			return nil, err
		}
		if _, err := d.chunks.AcceptChunk(c); err != nil {
			return nil, err
		}
	}
	return d.ack(msg), nil
}

// handleHandshakeInit responds to a peer opening a sequenced session:
// it derives the shared exporter secret via X25519 ECDH against the
// peer's ephemeral public key, activates a new session as the responder,
// and replies with its own ephemeral public key to complete the
// exchange.
func (d *messageDispatcher) handleHandshakeInit(msg *wire.Message) (*wire.Message, error) {
	var init session.HandshakeInitPayload
	if err := decodePayload(msg.Payload, &init); err != nil {
		return nil, err
	}

	ephemeral, err := keys.GenerateX25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate handshake key: %w", err)
	}
	ephKP, ok := ephemeral.(*keys.X25519KeyPair)
	if !ok {
		return nil, errors.New("handshake key is not X25519")
	}
	secret, err := ephKP.DeriveSharedSecret(init.EphemeralPublic)
	if err != nil {
		return nil, fmt.Errorf("derive handshake secret: %w", err)
	}

	sess := d.sessions.NewSession(msg.SenderID)
	if err := sess.Transition(session.StateHandshakeReceived); err != nil {
		return nil, err
	}
	if err := sess.Activate(secret, false, 0); err != nil {
		return nil, fmt.Errorf("activate session: %w", err)
	}

	accept := session.HandshakeAcceptPayload{EphemeralPublic: ephKP.PublicBytesKey()}
	payload, err := json.Marshal(accept)
	if err != nil {
		return nil, err
	}

	reply := d.ack(msg)
	reply.Type = wire.TypeHandshakeAccept
	reply.SessionID = sess.ID()
	reply.Payload = payload
	return reply, nil
}

// handleNack replays whatever the requested sequence range still holds
// in the session's bounded send history.
func (d *messageDispatcher) handleNack(ctx context.Context, msg *wire.Message) (*wire.Message, error) {
	var nack session.NackPayload
	if err := decodePayload(msg.Payload, &nack); err != nil {
		return nil, err
	}

	sess, err := d.sessions.Get(msg.SessionID)
	if err != nil {
		return nil, err
	}

	for seq, ct := range sess.Retransmit(nack.From, nack.To) {
		retry := &wire.Message{
			Version:     wire.CurrentVersion,
			Type:        wire.TypeData,
			SenderID:    d.entity.ID(),
			RecipientID: msg.SenderID,
			Timestamp:   time.Now(),
			SessionID:   sess.ID(),
			Sequence:    seq,
			Payload:     ct,
		}
		if err := d.sendToPeer(ctx, msg.SenderID, retry); err != nil {
			d.log.Warn("nack retransmit failed",
				logger.String("session_id", sess.ID()), logger.Any("sequence", seq), logger.Error(err))
		}
	}
	return d.ack(msg), nil
}

// sendNack is the session.Manager.EmitPendingNacks callback: it
// announces a gap to the peer, or, once it has been re-announced
// maxNackRetries times with no resolution, gives up and moves the
// session to ERROR per the sequence-gap failure path.
func (d *messageDispatcher) sendNack(ctx context.Context, sessionID string, gap session.GapInfo) error {
	sess, err := d.sessions.Get(sessionID)
	if err != nil {
		return nil
	}

	if gap.NackCount >= maxNackRetries {
		if err := sess.Transition(session.StateError); err != nil {
			d.log.Warn("session nack retries exhausted but could not move to error",
				logger.String("session_id", sessionID), logger.Error(err))
		} else {
			d.log.Warn("session moved to ERROR after exhausting nack retries",
				logger.String("session_id", sessionID), logger.Any("gap_from", gap.From))
		}
		d.sessions.Remove(sessionID)
		return nil
	}

	payload, err := json.Marshal(session.NackPayload{From: gap.From, To: gap.To})
	if err != nil {
		return err
	}
	msg := &wire.Message{
		Version:     wire.CurrentVersion,
		Type:        wire.TypeNack,
		SenderID:    d.entity.ID(),
		RecipientID: sess.PeerID(),
		Timestamp:   time.Now(),
		SessionID:   sessionID,
	}
	msg.Payload = payload
	return d.sendToPeer(ctx, sess.PeerID(), msg)
}

// runNackLoop periodically sweeps every session for gaps due a NACK,
// driven until stop is closed.
func (d *messageDispatcher) runNackLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.sessions.EmitPendingNacks(context.Background(), d.sendNack)
		}
	}
}

// sendToPeer resolves entityID's advertised endpoint in the service
// registry and posts msg to its peer transport.
func (d *messageDispatcher) sendToPeer(ctx context.Context, entityID string, msg *wire.Message) error {
	entry, ok := d.registry.Lookup(entityID)
	if !ok {
		return fmt.Errorf("no registry entry for peer %s", entityID)
	}
	client := transport.NewClient("http://"+entry.Endpoint, d.log)
	_, err := client.Send(ctx, msg)
	return err
}

func decodePayload(payload []byte, v interface{}) error {
	return json.Unmarshal(payload, v)
}

func (d *messageDispatcher) ack(msg *wire.Message) *wire.Message {
	reply := &wire.Message{
		Version:     wire.CurrentVersion,
		Type:        wire.TypeAck,
		SenderID:    d.entity.ID(),
		RecipientID: msg.SenderID,
		Timestamp:   time.Now(),
	}
	nonceStr, err := nonce.GenerateNonce()
	if err == nil {
		reply.Nonce = nonceStr
	}
	return reply
}
