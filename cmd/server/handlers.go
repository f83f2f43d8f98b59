package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"fintrack/internal/service"

	"go.uber.org/zap"
)

// defaultUserID is assumed when the request does not carry a user_id.
// Multi-tenancy is data-level only; there is no authentication layer.
const defaultUserID = 1

// APIHandler wires the service layer to the HTTP surface.
type APIHandler struct {
	transactions *service.TransactionService
	deposits     *service.DepositService
	portfolio    *service.PortfolioService
	history      *service.HistoryService
	logger       *zap.Logger
}

// NewAPIHandler creates the handler set.
func NewAPIHandler(
	transactions *service.TransactionService,
	deposits *service.DepositService,
	portfolio *service.PortfolioService,
	history *service.HistoryService,
	logger *zap.Logger,
) *APIHandler {
	return &APIHandler{
		transactions: transactions,
		deposits:     deposits,
		portfolio:    portfolio,
		history:      history,
		logger:       logger,
	}
}

// Routes registers every endpoint on a fresh mux.
func (h *APIHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/transactions", h.listTransactions)
	mux.HandleFunc("POST /api/transactions", h.createTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", h.updateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", h.deleteTransaction)

	mux.HandleFunc("GET /api/deposits", h.listDeposits)
	mux.HandleFunc("POST /api/deposits", h.createDeposit)
	mux.HandleFunc("POST /api/deposits/{id}/withdraw", h.withdrawDeposit)

	mux.HandleFunc("GET /api/holdings", h.holdings)
	mux.HandleFunc("GET /api/fixed-income", h.fixedIncome)
	mux.HandleFunc("GET /api/summary", h.summary)
	mux.HandleFunc("GET /api/allocation", h.allocation)
	mux.HandleFunc("GET /api/analysis", h.analysis)
	mux.HandleFunc("GET /api/history", h.historyChart)
	mux.HandleFunc("GET /api/daily-pnl", h.dailyPnL)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors to HTTP statuses. Validation rejections are
// client errors with the reason in the body; everything else is a 500 with a
// generic message so internals never leak.
func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrTransactionNotFound),
		errors.Is(err, service.ErrDepositNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransaction),
		errors.Is(err, service.ErrInsufficientQuantity),
		errors.Is(err, service.ErrWithdrawExceedsPrincipal):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func userID(r *http.Request) uint {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		return defaultUserID
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return defaultUserID
	}
	return uint(id)
}

func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func (h *APIHandler) listTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.transactions.List(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *APIHandler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var in service.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	tx, err := h.transactions.Create(r.Context(), userID(r), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *APIHandler) updateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid transaction id"})
		return
	}
	var in service.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	tx, err := h.transactions.Update(r.Context(), userID(r), id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *APIHandler) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid transaction id"})
		return
	}
	if err := h.transactions.Delete(r.Context(), userID(r), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) listDeposits(w http.ResponseWriter, r *http.Request) {
	deposits, err := h.deposits.List(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deposits)
}

func (h *APIHandler) createDeposit(w http.ResponseWriter, r *http.Request) {
	var in service.DepositInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	d, err := h.deposits.Create(r.Context(), userID(r), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *APIHandler) withdrawDeposit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid deposit id"})
		return
	}
	var in struct {
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	d, err := h.deposits.Withdraw(r.Context(), userID(r), id, in.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *APIHandler) holdings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.portfolio.Holdings(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, holdings)
}

func (h *APIHandler) fixedIncome(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.portfolio.FixedIncome(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, holdings)
}

func (h *APIHandler) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.portfolio.Summary(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *APIHandler) allocation(w http.ResponseWriter, r *http.Request) {
	items, err := h.portfolio.Allocation(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *APIHandler) analysis(w http.ResponseWriter, r *http.Request) {
	results, err := h.portfolio.TradeAnalysis(r.Context(), userID(r), r.URL.Query().Get("sort"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *APIHandler) historyChart(w http.ResponseWriter, r *http.Request) {
	points, err := h.history.GetHistoricalPortfolioData(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (h *APIHandler) dailyPnL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := time.Now().UTC()

	year := now.Year()
	if raw := q.Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid year"})
			return
		}
		year = y
	}
	month := int(now.Month())
	if raw := q.Get("month"); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid month"})
			return
		}
		month = m
	}

	results, err := h.history.GetDailyPnLForMonth(r.Context(), userID(r), year, month)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
