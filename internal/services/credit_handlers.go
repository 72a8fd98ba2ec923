package services

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/skillhub/backend/internal/middleware"
)

// SpendRequest represents a credit spend request
// @Description Spend credits on a catalog action
type SpendRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0" example:"30"`
	Reason string `json:"reason" validate:"required,max=200" example:"Unlock premium skill"`
}

// RefundRequest represents a credit refund request
// @Description Refund a prior spend
type RefundRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0" example:"30"`
	Reason string `json:"reason" validate:"required,max=200" example:"Refund: skill unavailable"`
}

// GetBalance returns the authenticated user's credit balance
// @Summary Get credit balance
// @Tags credits
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]int64
// @Failure 404 {object} ErrorResponse
// @Router /credits/balance [get]
func (s *CreditService) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	balance, err := s.GetBalance(r.Context(), userID)
	if err != nil {
		s.writeCreditError(w, userID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"balance": balance})
}

// SpendCredits debits the authenticated user's account
// @Summary Spend credits
// @Tags credits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SpendRequest true "Spend request"
// @Success 200 {object} map[string]int64
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} ErrorResponse "Insufficient credits"
// @Router /credits/spend [post]
func (s *CreditService) SpendCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req SpendRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.Debit(r.Context(), userID, req.Amount, req.Reason); err != nil {
		s.writeCreditError(w, userID, err)
		return
	}

	balance, err := s.GetBalance(r.Context(), userID)
	if err != nil {
		s.writeCreditError(w, userID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"balance": balance})
}

// RefundCredits reverses a prior spend
// @Summary Refund credits
// @Tags credits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RefundRequest true "Refund request"
// @Success 200 {object} map[string]int64
// @Failure 400 {object} ErrorResponse
// @Router /credits/refund [post]
func (s *CreditService) RefundCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req RefundRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.Refund(r.Context(), userID, req.Amount, req.Reason); err != nil {
		s.writeCreditError(w, userID, err)
		return
	}

	balance, err := s.GetBalance(r.Context(), userID)
	if err != nil {
		s.writeCreditError(w, userID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"balance": balance})
}

// ClaimDailyBonus grants the daily sign-in bonus
// @Summary Claim daily sign-in bonus
// @Tags credits
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]int64
// @Failure 409 {object} ErrorResponse "Already claimed today"
// @Router /credits/daily-bonus [post]
func (s *CreditService) ClaimDailyBonus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	granted, err := s.GrantDailyBonus(r.Context(), userID)
	if err != nil {
		s.writeCreditError(w, userID, err)
		return
	}

	balance, err := s.GetBalance(r.Context(), userID)
	if err != nil {
		s.writeCreditError(w, userID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"granted": granted, "balance": balance})
}

// GetTransactionHistory lists the user's ledger entries, newest first
// @Summary Get credit transaction history
// @Tags credits
// @Produce json
// @Security BearerAuth
// @Param type query string false "Filter by type (earn, spend, refund)"
// @Param start query string false "Range start (RFC 3339)"
// @Param end query string false "Range end (RFC 3339)"
// @Param limit query int false "Page size (default 50, max 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]any
// @Router /credits/transactions [get]
func (s *CreditService) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	filters := TransactionFilters{Type: r.URL.Query().Get("type")}
	if start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start")); err == nil {
		filters.StartDate = &start
	}
	if end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end")); err == nil {
		filters.EndDate = &end
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		filters.Limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
		filters.Offset = v
	}

	transactions, err := s.GetTransactions(r.Context(), userID, filters)
	if err != nil {
		s.writeCreditError(w, userID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"transactions": transactions})
}

// writeCreditError maps ledger outcomes onto HTTP statuses. Storage
// failures stay generic; business outcomes are surfaced verbatim.
func (s *CreditService) writeCreditError(w http.ResponseWriter, userID string, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, ErrAccountNotFound):
		SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	case errors.Is(err, ErrInsufficientCredits):
		SendErrorResponse(w, err.Error(), http.StatusPaymentRequired, nil)
	case errors.Is(err, ErrBonusAlreadyClaimed):
		SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
	default:
		log.Printf("[CREDITS] Operation failed for user %s: %v", userID, err)
		SendErrorResponse(w, "Credit operation failed", http.StatusInternalServerError, nil)
	}
}

// decodeJSONBody enforces the shared request body rules: bounded size,
// single JSON object, no unknown fields, validator tags.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dest); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	if err := sharedValidator.ValidateStruct(dest); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}
