package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/trunghm/trade-guardian/internal/decision"
	gerrors "github.com/trunghm/trade-guardian/internal/errors"
	"github.com/trunghm/trade-guardian/internal/exchange"
	"github.com/trunghm/trade-guardian/internal/guardian"
	"github.com/trunghm/trade-guardian/internal/monitoring"
	"github.com/trunghm/trade-guardian/internal/position"
)

// adminAPI is the boundary through which the decision source and the
// order-execution layer talk to the guardian. The guardian itself never
// places orders; it sizes, plans and protects.
type adminAPI struct {
	guardian *guardian.Guardian
	client   *exchange.Client
	health   *monitoring.HealthChecker
}

func serveAdmin(port int, g *guardian.Guardian, client *exchange.Client, health *monitoring.HealthChecker) *http.Server {
	api := &adminAPI{guardian: g, client: client, health: health}

	mux := http.NewServeMux()
	mux.Handle("/health", health)
	mux.HandleFunc("/api/decision", api.handleDecision)
	mux.HandleFunc("/api/fill", api.handleFill)
	mux.HandleFunc("/api/close", api.handleClose)
	mux.HandleFunc("/api/positions", api.handlePositions)
	mux.HandleFunc("/api/stats", api.handleStats)

	server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Admin server error: %v", err)
		}
	}()
	return server
}

type decisionRequest struct {
	Symbol       string   `json:"symbol"`
	Side         string   `json:"side"`
	Confidence   string   `json:"confidence"`
	CurrentPrice float64  `json:"current_price"`
	Support      *float64 `json:"support,omitempty"`
	Resistance   *float64 `json:"resistance,omitempty"`
	Reason       string   `json:"reason"`
}

func (a *adminAPI) handleDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dec := &decision.Decision{
		Symbol:       req.Symbol,
		Side:         decision.Side(req.Side),
		Confidence:   decision.Confidence(req.Confidence),
		CurrentPrice: req.CurrentPrice,
		Support:      req.Support,
		Resistance:   req.Resistance,
		Reason:       req.Reason,
		Timestamp:    time.Now(),
	}

	// Price omitted: ask the venue
	if dec.CurrentPrice == 0 {
		price, err := a.client.GetLatestPrice(r.Context(), req.Symbol)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to fetch price: %v", err), http.StatusBadGateway)
			return
		}
		dec.CurrentPrice = price
	}

	cons, err := a.client.GetConstraints(r.Context(), req.Symbol)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to fetch constraints: %v", err), http.StatusBadGateway)
		return
	}

	openReq, err := a.guardian.HandleDecision(r.Context(), dec, cons)
	if err != nil {
		status := http.StatusInternalServerError
		if gerrors.IsRejection(err) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusCreated, openReq)
}

type fillRequest struct {
	RecordID   string  `json:"record_id"`
	EntryPrice float64 `json:"entry_price"`
	Rejected   bool    `json:"rejected"`
	Reason     string  `json:"reason"`
}

func (a *adminAPI) handleFill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req fillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Rejected {
		a.guardian.RejectPending(req.RecordID, req.Reason)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := a.guardian.ConfirmFill(req.RecordID, req.EntryPrice, time.Now()); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type closeRequest struct {
	RecordID  string  `json:"record_id"`
	ExitPrice float64 `json:"exit_price"`
	ExitType  string  `json:"exit_type"`
}

func (a *adminAPI) handleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := a.guardian.OnClose(r.Context(), req.RecordID, req.ExitPrice, time.Now(), position.ExitType(req.ExitType))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (a *adminAPI) handlePositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.guardian.OpenPositions())
}

func (a *adminAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.guardian.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
