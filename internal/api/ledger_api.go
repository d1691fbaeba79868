package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/tally-app/tally/internal/domain"
)

// handleLedgerStatus returns the normalized current period plus the
// fee-machine position.
func (s *Server) handleLedgerStatus(w http.ResponseWriter, r *http.Request) {
	p, err := s.ledger.CurrentPeriod()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"period":    p,
		"fee_state": p.State(s.clock.Now()),
	})
}

// handleLedgerHistory returns transactions, newest first. Scoped to the
// current period unless ?all=true; ?limit=N caps the page.
func (s *Server) handleLedgerHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)

	var (
		txs []domain.Transaction
		err error
	)
	if r.URL.Query().Get("all") == "true" {
		txs, err = s.ledger.AllHistory(limit)
	} else {
		txs, err = s.ledger.History(limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": txs})
}

func (s *Server) handleLedgerPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := s.ledger.Periods(queryInt(r, "limit", 12))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if periods == nil {
		periods = []domain.WeeklyPeriod{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"periods": periods})
}

// handlePayFee settles the pending accountability fee and restores the
// credit balance for the rest of the day.
func (s *Server) handlePayFee(w http.ResponseWriter, r *http.Request) {
	tx, err := s.ledger.PayFee()
	if errors.Is(err, domain.ErrNoFeePending) {
		writeError(w, http.StatusConflict, "no accountability fee is pending")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	unlocked, err := s.achievements.CheckAndUnlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transaction":  tx,
		"new_unlocked": achievementIDs(unlocked),
	})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
