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

// Package api exposes the HTTP marketplace/ledger surface named in
// spec.md §6: service listing/registration, task listing/creation,
// wallet balance lookup, and authenticated transfer/mint. Per spec.md
// §9's open question, this is the "lightweight" marketplace path; the
// DHT-backed discovery.dht.Registry (wired separately in cmd/agentd)
// remains the authoritative peer directory, and this HTTP surface is a
// compatibility shim over the same economy.Ledger and contract.TaskStore
// the rest of the node uses.
package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aicollab-project/platform/auth"
	"github.com/aicollab-project/platform/contract"
	"github.com/aicollab-project/platform/economy"
	"github.com/aicollab-project/platform/internal/logger"
	"github.com/aicollab-project/platform/protoerr"
)

// Service is a marketplace listing: an entity advertising a
// task-performing capability at a price, per spec.md §6's
// POST /marketplace/services body shape.
type Service struct {
	EntityID     string    `json:"entity_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Capabilities []string  `json:"capabilities"`
	PricePerTask string    `json:"price_per_task"`
	Endpoint     string    `json:"endpoint,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// catalog holds the lightweight service listing, keyed by entity_id.
// Registration replaces any prior listing for the same entity, matching
// the append-or-replace semantics discovery.registry uses for peer
// endpoints.
type catalog struct {
	mu       sync.RWMutex
	services map[string]Service
}

func newCatalog() *catalog { return &catalog{services: make(map[string]Service)} }

func (c *catalog) put(s Service) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[s.EntityID] = s
}

func (c *catalog) list() []Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Service, 0, len(c.services))
	for _, s := range c.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// Server wires the marketplace/ledger HTTP handlers to the node's
// economy.Ledger, contract.TaskStore, and combined JWT/API-key auth.
type Server struct {
	ledger  *economy.Ledger
	tasks   *contract.TaskStore
	catalog *catalog
	issuer  *auth.Issuer
	keys    *auth.APIKeyStore
	log     logger.Logger
}

// NewServer creates a marketplace/ledger API server.
func NewServer(ledger *economy.Ledger, tasks *contract.TaskStore, issuer *auth.Issuer, keys *auth.APIKeyStore, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Server{ledger: ledger, tasks: tasks, catalog: newCatalog(), issuer: issuer, keys: keys, log: log}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to encode response", logger.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": protoerr.CodeOf(err)})
}

// registerServiceRequest is POST /marketplace/services's body.
type registerServiceRequest struct {
	EntityID     string   `json:"entity_id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	PricePerTask string   `json:"price_per_task"`
	Endpoint     string   `json:"endpoint,omitempty"`
}

// ServicesHandler serves GET/POST /marketplace/services.
func (s *Server) ServicesHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.writeJSON(w, http.StatusOK, map[string]interface{}{"services": s.catalog.list()})
		case http.MethodPost:
			var req registerServiceRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				s.writeError(w, http.StatusBadRequest, protoerr.Wrap(protoerr.InvalidJSON, "decode request", err))
				return
			}
			if req.EntityID == "" || req.Name == "" {
				s.writeError(w, http.StatusBadRequest, protoerr.New(protoerr.InvalidJSON, "entity_id and name required"))
				return
			}
			s.catalog.put(Service{
				EntityID:     req.EntityID,
				Name:         req.Name,
				Description:  req.Description,
				Capabilities: req.Capabilities,
				PricePerTask: req.PricePerTask,
				Endpoint:     req.Endpoint,
				RegisteredAt: time.Now(),
			})
			s.writeJSON(w, http.StatusOK, map[string]string{"status": "registered"})
		default:
			s.writeError(w, http.StatusMethodNotAllowed, protoerr.New(protoerr.InvalidJSON, "method not allowed"))
		}
	})
}

// createTaskRequest is POST /marketplace/tasks's body.
type createTaskRequest struct {
	TaskID       string `json:"task_id,omitempty"`
	CreatorID    string `json:"creator_id"`
	Description  string `json:"description"`
	RewardAmount string `json:"reward_amount"`
	RewardType   string `json:"reward_type"`
}

// TasksHandler serves GET/POST /marketplace/tasks. POST atomically debits
// the creator's wallet and locks the reward (economy.Ledger.LockForTask)
// before the task contract is persisted in CREATED status, per spec.md
// §3's Task Contract description.
func (s *Server) TasksHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": s.tasks.List()})
		case http.MethodPost:
			var req createTaskRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				s.writeError(w, http.StatusBadRequest, protoerr.Wrap(protoerr.InvalidJSON, "decode request", err))
				return
			}
			amount, err := decimal.NewFromString(req.RewardAmount)
			if err != nil || amount.IsNegative() || amount.IsZero() {
				s.writeError(w, http.StatusBadRequest, protoerr.New(protoerr.InvalidAmount, "invalid reward_amount"))
				return
			}
			taskID := req.TaskID
			if taskID == "" {
				taskID = uuid.NewString()
			}
			task := contract.NewTask(taskID, req.CreatorID, req.Description, amount, req.RewardType)
			if err := s.ledger.LockForTask(taskID, req.CreatorID, amount); err != nil {
				s.writeError(w, http.StatusBadRequest, err)
				return
			}
			if err := s.tasks.Put(task); err != nil {
				s.writeError(w, http.StatusInternalServerError, err)
				return
			}
			s.writeJSON(w, http.StatusOK, task)
		default:
			s.writeError(w, http.StatusMethodNotAllowed, protoerr.New(protoerr.InvalidJSON, "method not allowed"))
		}
	})
}

// BalanceHandler serves GET /token/balance/{entity_id}.
func (s *Server) BalanceHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entityID := r.URL.Path[len("/token/balance/"):]
		if entityID == "" {
			s.writeError(w, http.StatusBadRequest, protoerr.New(protoerr.WalletNotFound, "entity_id required"))
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"balance": s.ledger.Balance(entityID).String()})
	})
}

// SupplyHandler serves GET /economy/supply (SPEC_FULL.md §D: read-only
// mint/burn/supply snapshot from token_monitor.py's supply stats).
func (s *Server) SupplyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.ledger.SupplySnapshot())
	})
}

type transferRequest struct {
	FromEntity  string `json:"from_entity"`
	ToEntity    string `json:"to_entity"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

// transferHandler implements POST /economy/transfer, gated by
// auth.Middleware: any authenticated principal may request a transfer
// out of the entity named in the bearer token's `sub`/API-key owner.
func (s *Server) transferHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, protoerr.New(protoerr.InvalidJSON, "method not allowed"))
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, protoerr.Wrap(protoerr.InvalidJSON, "decode request", err))
		return
	}
	if req.FromEntity != p.EntityID {
		s.writeError(w, http.StatusForbidden, protoerr.New(protoerr.Forbidden, "cannot transfer from another entity's wallet"))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, protoerr.New(protoerr.InvalidAmount, "invalid amount"))
		return
	}
	if err := s.ledger.Transfer(req.FromEntity, req.ToEntity, amount, req.Description); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

type mintRequest struct {
	Recipient   string `json:"recipient"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

// mintHandler implements POST /economy/mint, gated by auth.RequireRole
// to the "admin" role per spec.md §6.
func (s *Server) mintHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, protoerr.New(protoerr.InvalidJSON, "method not allowed"))
		return
	}
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, protoerr.Wrap(protoerr.InvalidJSON, "decode request", err))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, protoerr.New(protoerr.InvalidAmount, "invalid amount"))
		return
	}
	if err := s.ledger.Mint(req.Recipient, amount, req.Description); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "minted"})
}

// Mount registers every marketplace/ledger route on mux.
func (s *Server) Mount(mux *http.ServeMux) {
	mux.Handle("/marketplace/services", s.ServicesHandler())
	mux.Handle("/marketplace/tasks", s.TasksHandler())
	mux.Handle("/token/balance/", s.BalanceHandler())
	mux.Handle("/economy/supply", s.SupplyHandler())
	mux.HandleFunc("/economy/transfer", auth.Middleware(s.issuer, s.keys, s.transferHandler))
	mux.HandleFunc("/economy/mint", auth.Middleware(s.issuer, s.keys, auth.RequireRole("admin", s.mintHandler)))
}
