package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"custodia/native/arbitration"
	nativecommon "custodia/native/common"
	"custodia/native/escrow"
)

// Server exposes the escrow and arbitration engines over HTTP. Caller
// identity travels in the request body; authenticating it is a deployment
// concern layered in front of this surface.
type Server struct {
	escrows     *escrow.Engine
	arbitration *arbitration.Engine
	registry    *arbitration.Registry
	log         *slog.Logger
}

// NewServer wires the HTTP surface to the engines.
func NewServer(escrows *escrow.Engine, arb *arbitration.Engine, registry *arbitration.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{escrows: escrows, arbitration: arb, registry: registry, log: log}
}

// Router builds the route table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Route("/v1/escrow", func(er chi.Router) {
		er.Post("/", s.handleCreate)
		er.Get("/{id}", s.handleGet)
		er.Post("/{id}/release", s.handleRelease)
		er.Post("/{id}/refund", s.handleRefund)
		er.Post("/{id}/dispute/commit", s.handleCommit)
		er.Post("/{id}/dispute/reveal", s.handleReveal)
	})
	r.Route("/v1/arbitration", func(ar chi.Router) {
		ar.Post("/register", s.handleRegister)
		ar.Post("/{id}/vote", s.handleVote)
		ar.Post("/{id}/resolve", s.handleResolve)
		ar.Post("/{id}/rating", s.handleRating)
	})
	return r
}

// RPCError is the JSON error body. Callers branch on Code, not Message.
type RPCError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func kindCode(kind nativecommon.Kind) (int, string) {
	switch kind {
	case nativecommon.KindValidation:
		return http.StatusBadRequest, "validation"
	case nativecommon.KindEconomic:
		return http.StatusPaymentRequired, "economic"
	case nativecommon.KindAuthorization:
		return http.StatusForbidden, "authorization"
	case nativecommon.KindTiming:
		return http.StatusConflict, "timing"
	case nativecommon.KindState:
		return http.StatusConflict, "state"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := kindCode(nativecommon.KindOf(err))
	if errors.Is(err, escrow.ErrEscrowNotFound) || errors.Is(err, arbitration.ErrDisputeNotFound) {
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.log.Error("internal error", "err", err)
		writeJSON(w, status, RPCError{Code: code, Message: "internal error"})
		return
	}
	writeJSON(w, status, RPCError{Code: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decode(r *http.Request, into interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(into)
}

func parseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != len(addr) {
		return addr, escrow.ErrInvalidAddress
	}
	copy(addr[:], decoded)
	return addr, nil
}

func parseHash(raw string) ([32]byte, error) {
	var hash [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != len(hash) {
		return hash, escrow.ErrInvalidCommitment
	}
	copy(hash[:], decoded)
	return hash, nil
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, escrow.ErrInvalidAmount
	}
	return amount, nil
}

func parseOutcome(raw string) (escrow.Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "release":
		return escrow.OutcomeRelease, nil
	case "refund":
		return escrow.OutcomeRefund, nil
	default:
		return escrow.OutcomeUnset, arbitration.ErrInvalidVote
	}
}

func escrowID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, escrow.ErrEscrowNotFound
	}
	return id, nil
}

type escrowJSON struct {
	ID                   uint64 `json:"id"`
	Buyer                string `json:"buyer"`
	Seller               string `json:"seller"`
	Arbitrator           string `json:"arbitrator,omitempty"`
	Amount               string `json:"amount"`
	DisputeStake         string `json:"disputeStake"`
	CreatedAt            int64  `json:"createdAt"`
	Expiry               int64  `json:"expiry"`
	ArbitratorEligibleAt int64  `json:"arbitratorEligibleAt"`
	ReleaseVotes         uint8  `json:"releaseVotes"`
	RefundVotes          uint8  `json:"refundVotes"`
	Disputed             bool   `json:"disputed"`
	Resolved             bool   `json:"resolved"`
}

func renderEscrow(e *escrow.Escrow) escrowJSON {
	out := escrowJSON{
		ID:                   e.ID,
		Buyer:                hex.EncodeToString(e.Buyer[:]),
		Seller:               hex.EncodeToString(e.Seller[:]),
		Amount:               e.Amount.String(),
		DisputeStake:         e.DisputeStake.String(),
		CreatedAt:            e.CreatedAt,
		Expiry:               e.Expiry,
		ArbitratorEligibleAt: e.ArbitratorEligibleAt,
		ReleaseVotes:         e.ReleaseVotes,
		RefundVotes:          e.RefundVotes,
		Disputed:             e.Disputed,
		Resolved:             e.Resolved,
	}
	if e.Arbitrator != ([20]byte{}) {
		out.Arbitrator = hex.EncodeToString(e.Arbitrator[:])
	}
	return out
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller       string `json:"caller"`
		Seller       string `json:"seller"`
		DurationSecs int64  `json:"durationSecs"`
		Amount       string `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, escrow.ErrInvalidAmount)
		return
	}
	buyer, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	seller, err := parseAddress(req.Seller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	esc, err := s.escrows.Create(buyer, seller, req.DurationSecs, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("escrow created", "id", esc.ID, "amount", esc.Amount.String())
	writeJSON(w, http.StatusCreated, renderEscrow(esc))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := escrowID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	esc, err := s.escrows.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderEscrow(esc))
}

func (s *Server) terminalHandler(call func(uint64, [20]byte) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := escrowID(r)
		if err != nil {
			s.writeError(w, err)
			return
		}
		var req struct {
			Caller string `json:"caller"`
		}
		if err := decode(r, &req); err != nil {
			s.writeError(w, escrow.ErrInvalidAddress)
			return
		}
		caller, err := parseAddress(req.Caller)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if err := call(id, caller); err != nil {
			s.writeError(w, err)
			return
		}
		esc, err := s.escrows.Get(id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, renderEscrow(esc))
	}
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	s.terminalHandler(s.escrows.Release)(w, r)
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	s.terminalHandler(s.escrows.Refund)(w, r)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	id, err := escrowID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Caller     string `json:"caller"`
		Commitment string `json:"commitment"`
		Stake      string `json:"stake"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, escrow.ErrInvalidCommitment)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	commitment, err := parseHash(req.Commitment)
	if err != nil {
		s.writeError(w, err)
		return
	}
	stake, err := parseAmount(req.Stake)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.escrows.CommitDispute(id, caller, commitment, stake); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "committed"})
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	id, err := escrowID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Caller string `json:"caller"`
		Nonce  string `json:"nonce"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, escrow.ErrInvalidCommitment)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	nonce, err := parseHash(req.Nonce)
	if err != nil {
		s.writeError(w, err)
		return
	}
	arb, err := s.escrows.RevealDispute(id, caller, nonce)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("dispute opened", "id", id, "arbitrator", hex.EncodeToString(arb[:]))
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "disputed",
		"arbitrator": hex.EncodeToString(arb[:]),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, arbitration.ErrInvalidAddress)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	arb, err := s.registry.Register(caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"arbitrator":    hex.EncodeToString(arb.Address[:]),
		"reputation":    arb.Reputation,
		"participation": arb.ParticipationIndex,
	})
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	id, err := escrowID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Caller string `json:"caller"`
		Choice string `json:"choice"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, arbitration.ErrInvalidVote)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	choice, err := parseOutcome(req.Choice)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.arbitration.Vote(id, caller, choice); err != nil {
		s.writeError(w, err)
		return
	}
	esc, err := s.escrows.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderEscrow(esc))
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, err := escrowID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Caller  string `json:"caller"`
		Outcome string `json:"outcome"`
		Note    string `json:"note"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, arbitration.ErrInvalidVote)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	outcome, err := parseOutcome(req.Outcome)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.arbitration.Resolve(id, caller, outcome, req.Note); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved", "outcome": outcome.String()})
}

func (s *Server) handleRating(w http.ResponseWriter, r *http.Request) {
	id, err := escrowID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Caller string `json:"caller"`
		Rating uint8  `json:"rating"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, arbitration.ErrInvalidRating)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.arbitration.SubmitRating(id, caller, req.Rating); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rated"})
}
