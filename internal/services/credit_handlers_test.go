package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/skillhub/backend/internal/middleware"
	"github.com/skillhub/backend/internal/models"
)

func newHandlerTestService(t *testing.T) (*CreditService, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)

	return NewCreditService(db, NewCacheService(nil)), dbMock, func() { db.Close() }
}

func authedRequest(method, target string, body []byte, userID string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

func TestGetBalanceHandler(t *testing.T) {
	userID := "11111111-1111-1111-1111-111111111111"

	t.Run("returns the balance", func(t *testing.T) {
		service, dbMock, cleanup := newHandlerTestService(t)
		defer cleanup()

		dbMock.ExpectQuery("SELECT balance FROM credits WHERE user_id = \\$1").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(70))

		rec := httptest.NewRecorder()
		service.GetBalanceHandler(rec, authedRequest(http.MethodGet, "/api/v1/credits/balance", nil, userID))

		assert.Equal(t, http.StatusOK, rec.Code)

		var body map[string]int64
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, int64(70), body["balance"])
	})

	t.Run("missing auth context", func(t *testing.T) {
		service, _, cleanup := newHandlerTestService(t)
		defer cleanup()

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/credits/balance", nil)
		service.GetBalanceHandler(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown account maps to 404", func(t *testing.T) {
		service, dbMock, cleanup := newHandlerTestService(t)
		defer cleanup()

		dbMock.ExpectQuery("SELECT balance FROM credits WHERE user_id = \\$1").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}))

		rec := httptest.NewRecorder()
		service.GetBalanceHandler(rec, authedRequest(http.MethodGet, "/api/v1/credits/balance", nil, userID))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSpendCreditsHandler(t *testing.T) {
	userID := "11111111-1111-1111-1111-111111111111"
	creditID := "22222222-2222-2222-2222-222222222222"

	t.Run("successful spend returns the new balance", func(t *testing.T) {
		service, dbMock, cleanup := newHandlerTestService(t)
		defer cleanup()

		dbMock.ExpectBegin()
		dbMock.ExpectQuery("SELECT id, balance FROM credits WHERE user_id = \\$1 FOR UPDATE").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "balance"}).AddRow(creditID, 100))
		dbMock.ExpectExec("UPDATE credits SET balance = balance \\+ \\$1").
			WithArgs(int64(-30), creditID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectExec("INSERT INTO credit_transactions").
			WithArgs(creditID, int64(-30), models.TransactionSpend, "Unlock premium skill").
			WillReturnResult(sqlmock.NewResult(1, 1))
		dbMock.ExpectCommit()
		dbMock.ExpectQuery("SELECT balance FROM credits WHERE user_id = \\$1").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(70))

		body, _ := json.Marshal(SpendRequest{Amount: 30, Reason: "Unlock premium skill"})
		rec := httptest.NewRecorder()
		service.SpendCredits(rec, authedRequest(http.MethodPost, "/api/v1/credits/spend", body, userID))

		assert.Equal(t, http.StatusOK, rec.Code)

		var response map[string]int64
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, int64(70), response["balance"])
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("insufficient credits maps to 402", func(t *testing.T) {
		service, dbMock, cleanup := newHandlerTestService(t)
		defer cleanup()

		dbMock.ExpectBegin()
		dbMock.ExpectQuery("SELECT id, balance FROM credits WHERE user_id = \\$1 FOR UPDATE").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "balance"}).AddRow(creditID, 10))
		dbMock.ExpectRollback()

		body, _ := json.Marshal(SpendRequest{Amount: 30, Reason: "Unlock premium skill"})
		rec := httptest.NewRecorder()
		service.SpendCredits(rec, authedRequest(http.MethodPost, "/api/v1/credits/spend", body, userID))

		assert.Equal(t, http.StatusPaymentRequired, rec.Code)

		var response ErrorResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, "insufficient credits", response.Error)
	})

	t.Run("non-positive amount fails validation", func(t *testing.T) {
		service, dbMock, cleanup := newHandlerTestService(t)
		defer cleanup()

		body, _ := json.Marshal(map[string]any{"amount": -5, "reason": "nope"})
		rec := httptest.NewRecorder()
		service.SpendCredits(rec, authedRequest(http.MethodPost, "/api/v1/credits/spend", body, userID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		service, _, cleanup := newHandlerTestService(t)
		defer cleanup()

		body := []byte(`{"amount": 30, "reason": "ok", "extra": true}`)
		rec := httptest.NewRecorder()
		service.SpendCredits(rec, authedRequest(http.MethodPost, "/api/v1/credits/spend", body, userID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestClaimDailyBonusHandler(t *testing.T) {
	userID := "11111111-1111-1111-1111-111111111111"
	creditID := "22222222-2222-2222-2222-222222222222"

	t.Run("already claimed maps to 409", func(t *testing.T) {
		service, dbMock, cleanup := newHandlerTestService(t)
		defer cleanup()

		dbMock.ExpectBegin()
		dbMock.ExpectQuery("SELECT id, balance FROM credits WHERE user_id = \\$1 FOR UPDATE").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "balance"}).AddRow(creditID, 110))
		dbMock.ExpectQuery("SELECT EXISTS").
			WithArgs(creditID, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		dbMock.ExpectRollback()

		rec := httptest.NewRecorder()
		service.ClaimDailyBonus(rec, authedRequest(http.MethodPost, "/api/v1/credits/daily-bonus", nil, userID))

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("grant returns amount and new balance", func(t *testing.T) {
		service, dbMock, cleanup := newHandlerTestService(t)
		defer cleanup()

		dbMock.ExpectBegin()
		dbMock.ExpectQuery("SELECT id, balance FROM credits WHERE user_id = \\$1 FOR UPDATE").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "balance"}).AddRow(creditID, 100))
		dbMock.ExpectQuery("SELECT EXISTS").
			WithArgs(creditID, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		dbMock.ExpectExec("UPDATE credits SET balance = balance \\+ \\$1").
			WithArgs(int64(10), creditID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectExec("INSERT INTO credit_transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		dbMock.ExpectCommit()
		dbMock.ExpectQuery("SELECT balance FROM credits WHERE user_id = \\$1").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(110))

		rec := httptest.NewRecorder()
		service.ClaimDailyBonus(rec, authedRequest(http.MethodPost, "/api/v1/credits/daily-bonus", nil, userID))

		assert.Equal(t, http.StatusOK, rec.Code)

		var response map[string]int64
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, int64(10), response["granted"])
		assert.Equal(t, int64(110), response["balance"])
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}

func TestGetTransactionHistoryHandler(t *testing.T) {
	userID := "11111111-1111-1111-1111-111111111111"
	creditID := "22222222-2222-2222-2222-222222222222"

	service, dbMock, cleanup := newHandlerTestService(t)
	defer cleanup()

	dbMock.ExpectQuery("SELECT id FROM credits WHERE user_id = \\$1").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(creditID))
	dbMock.ExpectQuery("AND type = \\$2").
		WithArgs(creditID, "earn", 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "credit_id", "amount", "type", "reason", "created_at"}))

	rec := httptest.NewRecorder()
	service.GetTransactionHistory(rec,
		authedRequest(http.MethodGet, "/api/v1/credits/transactions?type=earn", nil, userID))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "transactions"))
	assert.NoError(t, dbMock.ExpectationsWereMet())
}
