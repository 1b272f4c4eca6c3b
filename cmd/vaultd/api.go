// api.go - REST API for the vault daemon.
//
// Mutating endpoints accept a proof envelope produced client-side; the daemon
// only verifies and applies. Authorization failures are collapsed into one
// generic 401 on the wire so remote observers cannot distinguish a wrong
// password from a replayed nonce; the precise variant stays in the ledger
// caller's return value and is never written to the audit log.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"time"

	"zkvault/internal/settlement"
	"zkvault/internal/vault"
)

type server struct {
	cfg       *Config
	ledger    *vault.Ledger
	submitter settlement.Submitter
	logs      *Loggers
	metrics   *MetricsCollector
	limiter   *IdentityRateLimiter
	health    *HealthChecker
}

type registerRequest struct {
	UsernameHash   string               `json:"username_hash"`
	CredentialHash string               `json:"credential_hash"`
	Nonce          string               `json:"nonce"`
	ResultHash     string               `json:"result_hash"`
	Envelope       *vault.ProofEnvelope `json:"envelope"`
}

type depositRequest struct {
	UsernameHash string `json:"username_hash"`
	Amount       string `json:"amount"`
}

type transferRequest struct {
	From        string               `json:"from"`
	To          string               `json:"to,omitempty"`
	Destination string               `json:"destination,omitempty"`
	Amount      string               `json:"amount"`
	Nonce       string               `json:"nonce"`
	Envelope    *vault.ProofEnvelope `json:"envelope"`
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /deposit", s.handleDeposit)
	mux.HandleFunc("POST /pay", s.handlePay)
	mux.HandleFunc("POST /withdraw", s.handleWithdraw)
	mux.HandleFunc("GET /balance/{hash}", s.handleBalance)
	mux.HandleFunc("GET /credential/{hash}", s.handleCredential)
	mux.HandleFunc("GET /withdrawals/{id}", s.handleWithdrawalStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseAmount(s string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, false
	}
	return amount, true
}

// writeLedgerError maps ledger errors to HTTP responses. Authorization
// variants are collapsed; precondition failures are public information
// (registration existence and balances are readable anyway).
func (s *server) writeLedgerError(w http.ResponseWriter, op string, err error) {
	switch {
	case vault.IsAuthError(err):
		s.metrics.IncrementCounter(MetricAuthRejections)
		s.logs.Audit.Warn().Str("op", op).Msg("authorization rejected")
		s.logs.Main.Debug().Str("op", op).Err(err).Msg("authorization rejected")
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, vault.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, vault.ErrUnregisteredAccount), errors.Is(err, vault.ErrUnknownWithdrawal):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, vault.ErrZeroAmount), errors.Is(err, vault.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logs.Main.Error().Str("op", op).Err(err).Msg("operation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// persist writes the ledger snapshot after a successful transition.
func (s *server) persist() {
	if err := s.ledger.SaveToFile(s.cfg.LedgerPath); err != nil {
		s.logs.Main.Error().Err(err).Msg("ledger snapshot failed")
	}
}

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Envelope == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.limiter.Allow(req.UsernameHash) {
		s.metrics.IncrementCounter(MetricRateLimited)
		writeError(w, http.StatusTooManyRequests, "rate limited")
		return
	}

	start := time.Now()
	err := s.ledger.Register(req.UsernameHash, req.CredentialHash, req.Nonce, req.ResultHash, req.Envelope)
	s.metrics.RecordVerify(time.Since(start))
	if err != nil {
		s.writeLedgerError(w, "register", err)
		return
	}
	s.metrics.IncrementCounter(MetricRegistrations)
	s.logs.Audit.Info().Str("op", "register").Str("username_hash", req.UsernameHash).Msg("registered")
	s.persist()
	writeJSON(w, http.StatusOK, map[string]string{"status": "registered", "username_hash": req.UsernameHash})
}

func (s *server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, http.StatusBadRequest, vault.ErrZeroAmount.Error())
		return
	}
	if err := s.ledger.Deposit(req.UsernameHash, amount); err != nil {
		s.writeLedgerError(w, "deposit", err)
		return
	}
	s.metrics.IncrementCounter(MetricDeposits)
	s.logs.Audit.Info().Str("op", "deposit").Str("username_hash", req.UsernameHash).Str("amount", amount.String()).Msg("deposited")
	s.persist()
	writeJSON(w, http.StatusOK, map[string]string{"status": "deposited"})
}

func (s *server) handlePay(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Envelope == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, http.StatusBadRequest, vault.ErrZeroAmount.Error())
		return
	}
	if !s.limiter.Allow(req.From) {
		s.metrics.IncrementCounter(MetricRateLimited)
		writeError(w, http.StatusTooManyRequests, "rate limited")
		return
	}

	start := time.Now()
	err := s.ledger.Pay(req.From, req.To, amount, req.Nonce, req.Envelope)
	s.metrics.RecordVerify(time.Since(start))
	if err != nil {
		s.writeLedgerError(w, "pay", err)
		return
	}
	s.metrics.IncrementCounter(MetricPayments)
	s.logs.Audit.Info().Str("op", "pay").Str("from", req.From).Str("to", req.To).Str("amount", amount.String()).Msg("paid")
	s.persist()
	writeJSON(w, http.StatusOK, map[string]string{"status": "paid"})
}

// settlementCall encodes a confirmed ledger withdrawal for the submission
// channel, with proof points in the settlement verifier's coordinate order.
type settlementCall struct {
	Op            string            `json:"op"`
	From          string            `json:"from"`
	Destination   string            `json:"destination"`
	Amount        string            `json:"amount"`
	Nonce         string            `json:"nonce"`
	Proof         vault.ProofPoints `json:"proof"`
	PublicSignals []string          `json:"publicSignals"`
}

func (s *server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Envelope == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, http.StatusBadRequest, vault.ErrZeroAmount.Error())
		return
	}
	if !s.limiter.Allow(req.From) {
		s.metrics.IncrementCounter(MetricRateLimited)
		writeError(w, http.StatusTooManyRequests, "rate limited")
		return
	}

	start := time.Now()
	receiptID, err := s.ledger.Withdraw(req.From, req.Destination, amount, req.Nonce, req.Envelope)
	s.metrics.RecordVerify(time.Since(start))
	if err != nil {
		s.writeLedgerError(w, "withdraw", err)
		return
	}
	s.persist()

	// The proof is burned; from here on the only legal path is confirming or
	// rejecting this receipt, never resubmitting.
	data, err := json.Marshal(&settlementCall{
		Op:            "withdraw",
		From:          req.From,
		Destination:   req.Destination,
		Amount:        amount.String(),
		Nonce:         req.Nonce,
		Proof:         req.Envelope.SettlementPoints(),
		PublicSignals: req.Envelope.PublicSignals,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.cfg.SettlementTimeout)*time.Second)
	defer cancel()
	settleStart := time.Now()
	receipt, err := s.submitter.Submit(ctx, []settlement.Call{{To: req.Destination, Data: data}})
	if err == nil && !receipt.Status.Terminal() {
		receipt, err = s.submitter.Await(ctx, receipt.ID)
	}
	if err != nil {
		// Still pending: recover later via GET /withdrawals/{id}.
		s.logs.Main.Warn().Str("receipt", receiptID).Err(err).Msg("settlement not confirmed")
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":  string(vault.WithdrawalPending),
			"receipt": receiptID,
		})
		return
	}
	s.metrics.RecordSettlement(time.Since(settleStart))

	confirmed := receipt.Status == settlement.StatusConfirmed
	if err := s.ledger.SettleWithdrawal(receiptID, confirmed); err != nil {
		s.writeLedgerError(w, "withdraw", err)
		return
	}
	s.persist()
	if confirmed {
		s.metrics.IncrementCounter(MetricWithdrawals)
		s.logs.Audit.Info().Str("op", "withdraw").Str("from", req.From).Str("amount", amount.String()).Msg("withdrawn")
	} else {
		s.logs.Audit.Warn().Str("op", "withdraw").Str("from", req.From).Msg("settlement rejected")
	}
	status, _ := s.ledger.WithdrawalStatusByID(receiptID)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  string(status.Status),
		"receipt": receiptID,
	})
}

func (s *server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.ledger.BalanceOf(r.PathValue("hash"))
	if err != nil {
		s.writeLedgerError(w, "balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

func (s *server) handleCredential(w http.ResponseWriter, r *http.Request) {
	credential, err := s.ledger.CredentialOf(r.PathValue("hash"))
	if err != nil {
		s.writeLedgerError(w, "credential", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"credential_hash": credential})
}

func (s *server) handleWithdrawalStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.ledger.WithdrawalStatusByID(r.PathValue("id"))
	if err != nil {
		s.writeLedgerError(w, "withdrawal_status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.health.CheckHealth()
	status := http.StatusOK
	if health.OverallStatus != Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Summary())
}
