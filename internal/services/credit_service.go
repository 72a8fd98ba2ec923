package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/skillhub/backend/internal/models"
)

// Ledger reason strings. GrantDailyBonus matches on DailyBonusReason, so
// it must stay stable across releases.
const (
	WelcomeBonusReason = "Welcome bonus"
	DailyBonusReason   = "Daily sign-in bonus"
)

var (
	ErrAccountNotFound     = errors.New("credit account not found")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrBonusAlreadyClaimed = errors.New("daily bonus already claimed today")
)

// CreditService is the only writer of credit balances and ledger rows.
// Every mutation updates the balance and appends the matching transaction
// inside a single database transaction, then deletes the cached balance.
type CreditService struct {
	db                *sql.DB
	cache             *CacheService
	welcomeCredits    int64
	dailyBonusCredits int64
}

func NewCreditService(db *sql.DB, cache *CacheService) *CreditService {
	viper.SetDefault("credits.welcome", 100)
	viper.SetDefault("credits.daily_bonus", 10)

	return &CreditService{
		db:                db,
		cache:             cache,
		welcomeCredits:    viper.GetInt64("credits.welcome"),
		dailyBonusCredits: viper.GetInt64("credits.daily_bonus"),
	}
}

// GetBalance returns the account balance, serving from cache when a
// fresh entry exists. Cache failures fall through to the database.
func (s *CreditService) GetBalance(ctx context.Context, userID string) (int64, error) {
	cacheKey := UserCreditsKey(userID)

	var cached int64
	found, err := s.cache.Get(ctx, cacheKey, &cached)
	if err != nil {
		log.Printf("[CREDITS] Balance cache read failed for user %s: %v", userID, err)
	} else if found {
		return cached, nil
	}

	var balance int64
	err = s.db.QueryRowContext(ctx, `SELECT balance FROM credits WHERE user_id = $1`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, err
	}

	if err := s.cache.Set(ctx, cacheKey, balance, UserCreditsTTL); err != nil {
		log.Printf("[CREDITS] Balance cache write failed for user %s: %v", userID, err)
	}

	return balance, nil
}

// HasEnoughCredits reports whether the balance covers amount. This is a
// cached pre-check; Debit re-verifies against the locked row.
func (s *CreditService) HasEnoughCredits(ctx context.Context, userID string, amount int64) (bool, error) {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// Credit adds amount to the account and appends an earn transaction.
func (s *CreditService) Credit(ctx context.Context, userID string, amount int64, reason string) error {
	return s.apply(ctx, userID, amount, models.TransactionEarn, reason)
}

// Refund adds amount back to the account and appends a refund
// transaction. There is no linkage to the debit being reversed; callers
// must not refund the same spend twice.
func (s *CreditService) Refund(ctx context.Context, userID string, amount int64, reason string) error {
	return s.apply(ctx, userID, amount, models.TransactionRefund, reason)
}

// Debit removes amount from the account and appends a spend transaction.
// The funds check runs against the locked row, so two concurrent debits
// cannot both pass it.
func (s *CreditService) Debit(ctx context.Context, userID string, amount int64, reason string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	creditID, balance, err := lockCredit(ctx, tx, userID)
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientCredits
	}

	if err := updateBalance(ctx, tx, creditID, -amount); err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, creditID, -amount, models.TransactionSpend, reason); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.invalidateBalance(ctx, userID)
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  amount,
		"type":    models.TransactionSpend,
		"reason":  reason,
	}).Info("Credits deducted")

	return nil
}

// GrantDailyBonus credits the configured daily bonus once per account
// per server-local calendar day and returns the amount granted. The
// already-claimed check runs under the same row lock as the write, and a
// partial unique index on (credit_id, bonus_day) backstops it against
// concurrent claims.
func (s *CreditService) GrantDailyBonus(ctx context.Context, userID string) (int64, error) {
	now := time.Now()
	bonusDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	creditID, _, err := lockCredit(ctx, tx, userID)
	if err != nil {
		return 0, err
	}

	var claimed bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM credit_transactions WHERE credit_id = $1 AND bonus_day = $2)`,
		creditID, bonusDay).Scan(&claimed)
	if err != nil {
		return 0, err
	}
	if claimed {
		return 0, ErrBonusAlreadyClaimed
	}

	if err := updateBalance(ctx, tx, creditID, s.dailyBonusCredits); err != nil {
		return 0, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO credit_transactions (credit_id, amount, type, reason, bonus_day) VALUES ($1, $2, $3, $4, $5)`,
		creditID, s.dailyBonusCredits, models.TransactionEarn, DailyBonusReason, bonusDay)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrBonusAlreadyClaimed
		}
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.invalidateBalance(ctx, userID)
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  s.dailyBonusCredits,
		"type":    models.TransactionEarn,
		"reason":  DailyBonusReason,
	}).Info("Daily bonus granted")

	return s.dailyBonusCredits, nil
}

// TransactionFilters narrows a transaction history query.
type TransactionFilters struct {
	Type      string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// GetTransactions returns the account's ledger entries, newest first.
// History is never cached; each call reads the store.
func (s *CreditService) GetTransactions(ctx context.Context, userID string, filters TransactionFilters) ([]models.CreditTransaction, error) {
	var creditID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM credits WHERE user_id = $1`, userID).Scan(&creditID)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	query := `SELECT id, credit_id, amount, type, reason, created_at FROM credit_transactions WHERE credit_id = $1`
	args := []any{creditID}

	if filters.Type != "" {
		args = append(args, filters.Type)
		query += ` AND type = $2`
	}
	if filters.StartDate != nil && filters.EndDate != nil {
		args = append(args, *filters.StartDate, *filters.EndDate)
		query += fmt.Sprintf(` AND created_at >= $%d AND created_at <= $%d`, len(args)-1, len(args))
	}

	limit := filters.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.CreditTransaction{}
	for rows.Next() {
		var t models.CreditTransaction
		if err := rows.Scan(&t.ID, &t.CreditID, &t.Amount, &t.Type, &t.Reason, &t.CreatedAt); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// CreateAccountTx creates the credit account for a new user inside the
// caller's transaction, seeding the welcome bonus and its ledger row.
// Returns the welcome amount granted.
func (s *CreditService) CreateAccountTx(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	creditID := uuid.NewString()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO credits (id, user_id, balance) VALUES ($1, $2, $3)`,
		creditID, userID, s.welcomeCredits)
	if err != nil {
		return 0, err
	}
	if s.welcomeCredits > 0 {
		if err := insertTransaction(ctx, tx, creditID, s.welcomeCredits, models.TransactionEarn, WelcomeBonusReason); err != nil {
			return 0, err
		}
	}
	return s.welcomeCredits, nil
}

// apply handles the shared credit/refund path: positive amount, earn or
// refund row, cache invalidation after commit.
func (s *CreditService) apply(ctx context.Context, userID string, amount int64, txType, reason string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	creditID, _, err := lockCredit(ctx, tx, userID)
	if err != nil {
		return err
	}
	if err := updateBalance(ctx, tx, creditID, amount); err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, creditID, amount, txType, reason); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.invalidateBalance(ctx, userID)
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  amount,
		"type":    txType,
		"reason":  reason,
	}).Info("Credits added")

	return nil
}

// invalidateBalance deletes the cached balance after a committed write.
// Writes never repopulate the cache; the next read does.
func (s *CreditService) invalidateBalance(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, UserCreditsKey(userID)); err != nil {
		log.Printf("[CREDITS] Balance cache invalidation failed for user %s: %v", userID, err)
	}
}

// lockCredit loads the account row under FOR UPDATE so the balance check
// and the write are serialized per account.
func lockCredit(ctx context.Context, tx *sql.Tx, userID string) (string, int64, error) {
	var creditID string
	var balance int64
	err := tx.QueryRowContext(ctx,
		`SELECT id, balance FROM credits WHERE user_id = $1 FOR UPDATE`,
		userID).Scan(&creditID, &balance)
	if err == sql.ErrNoRows {
		return "", 0, ErrAccountNotFound
	}
	if err != nil {
		return "", 0, err
	}
	return creditID, balance, nil
}

func updateBalance(ctx context.Context, tx *sql.Tx, creditID string, delta int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE credits SET balance = balance + $1, updated_at = NOW() WHERE id = $2`,
		delta, creditID)
	return err
}

func insertTransaction(ctx context.Context, tx *sql.Tx, creditID string, amount int64, txType, reason string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO credit_transactions (credit_id, amount, type, reason) VALUES ($1, $2, $3, $4)`,
		creditID, amount, txType, reason)
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
