// Package ledger is the credit metering core: atomic usage debits, the
// append-only transaction trail, threshold alerts, and periodic resets.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fixyhq/fixy/internal/models"
	"github.com/fixyhq/fixy/internal/notify"
	"github.com/fixyhq/fixy/internal/settings"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LedgerError wraps a metering failure. Callers already holding a produced
// reply must log it and continue; billing failures never retract a message.
type LedgerError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *LedgerError) Error() string { return fmt.Sprintf("ledger: %s: %v", e.Op, e.Err) }

// Unwrap returns the underlying cause.
func (e *LedgerError) Unwrap() error { return e.Err }

// ErrAccountNotFound indicates the user has no credit account row.
var ErrAccountNotFound = errors.New("credit account not found")

// Ledger owns every CreditAccount mutation. Debits are a single atomic
// increment plus transaction insert, never a read-modify-write.
type Ledger struct {
	db       *gorm.DB
	notifier notify.Notifier

	// syncThresholds makes threshold evaluation run inline instead of in a
	// background goroutine. Tests set it to observe alerts deterministically.
	syncThresholds bool
}

// New constructs a Ledger.
func New(db *gorm.DB, notifier notify.Notifier) *Ledger {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Ledger{db: db, notifier: notifier}
}

// OpenAccount creates the credit account for a new user.
func (l *Ledger) OpenAccount(ctx context.Context, userID uint64, limit float64, resetAt time.Time) error {
	account := models.CreditAccount{
		UserID:    userID,
		Limit:     limit,
		ResetDate: resetAt.UTC(),
	}
	if errCreate := l.db.WithContext(ctx).Create(&account).Error; errCreate != nil {
		return &LedgerError{Op: "open account", Err: errCreate}
	}
	return nil
}

// Account returns the user's credit account snapshot.
func (l *Ledger) Account(ctx context.Context, userID uint64) (models.CreditAccount, error) {
	var account models.CreditAccount
	errFind := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.CreditAccount{}, ErrAccountNotFound
		}
		return models.CreditAccount{}, &LedgerError{Op: "load account", Err: errFind}
	}
	return account, nil
}

// Transactions returns the user's most recent ledger entries, newest first.
func (l *Ledger) Transactions(ctx context.Context, userID uint64, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 {
		limit = settings.TransactionPageSize
	}
	var rows []models.CreditTransaction
	if errFind := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		return nil, &LedgerError{Op: "list transactions", Err: errFind}
	}
	return rows, nil
}

// Debit records usage: in one database transaction it increments the
// account's used amount via a SQL-side expression and appends a negative
// transaction row. Concurrent debits against the same account cannot lose
// updates. Threshold alerts are evaluated after commit, off the caller's path.
func (l *Ledger) Debit(ctx context.Context, userID uint64, amount float64, description string) error {
	if amount <= 0 {
		return &LedgerError{Op: "debit", Err: fmt.Errorf("non-positive amount %v", amount)}
	}

	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CreditAccount{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{
				"used":       gorm.Expr("used + ?", amount),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAccountNotFound
		}
		txn := models.CreditTransaction{
			UserID:      userID,
			Amount:      -amount,
			Description: description,
			CreatedAt:   time.Now().UTC(),
		}
		return tx.Create(&txn).Error
	})
	if errTx != nil {
		if errors.Is(errTx, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return &LedgerError{Op: "debit", Err: errTx}
	}

	if l.syncThresholds {
		l.checkThresholds(ctx, userID)
	} else {
		go l.checkThresholds(context.Background(), userID)
	}
	return nil
}

// TopUp raises the account limit and appends a positive transaction row.
func (l *Ledger) TopUp(ctx context.Context, userID uint64, amount float64, description string) error {
	if amount <= 0 {
		return &LedgerError{Op: "top up", Err: fmt.Errorf("non-positive amount %v", amount)}
	}
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CreditAccount{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{
				"limit_amount": gorm.Expr("limit_amount + ?", amount),
				"updated_at":   time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAccountNotFound
		}
		txn := models.CreditTransaction{
			UserID:      userID,
			Amount:      amount,
			Description: description,
			CreatedAt:   time.Now().UTC(),
		}
		return tx.Create(&txn).Error
	})
	if errTx != nil {
		if errors.Is(errTx, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return &LedgerError{Op: "top up", Err: errTx}
	}
	return nil
}

// checkThresholds emits the approaching/reached alerts. Each fires at most
// once per reset period: the notified flag is claimed with a guarded update,
// so concurrent debits cannot double-send.
func (l *Ledger) checkThresholds(ctx context.Context, userID uint64) {
	account, errAccount := l.Account(ctx, userID)
	if errAccount != nil {
		log.WithError(errAccount).Warn("ledger: threshold check failed")
		return
	}
	if account.Limit <= 0 {
		return
	}
	ratio := account.Used / account.Limit

	if ratio >= 1 && !account.NotifiedReached {
		res := l.db.WithContext(ctx).Model(&models.CreditAccount{}).
			Where("user_id = ? AND notified_reached = ?", userID, false).
			Update("notified_reached", true)
		if res.Error != nil {
			log.WithError(res.Error).Warn("ledger: claim reached flag failed")
			return
		}
		if res.RowsAffected == 1 {
			l.send(ctx, userID, notify.KindCreditReached, account)
		}
		return
	}

	if ratio >= settings.ApproachingThreshold && ratio < settings.ApproachingThresholdCeiling &&
		!account.NotifiedApproaching {
		res := l.db.WithContext(ctx).Model(&models.CreditAccount{}).
			Where("user_id = ? AND notified_approaching = ?", userID, false).
			Update("notified_approaching", true)
		if res.Error != nil {
			log.WithError(res.Error).Warn("ledger: claim approaching flag failed")
			return
		}
		if res.RowsAffected == 1 {
			l.send(ctx, userID, notify.KindCreditApproaching, account)
		}
	}
}

// send delivers a notification, logging failures instead of propagating them.
func (l *Ledger) send(ctx context.Context, userID uint64, kind notify.Kind, account models.CreditAccount) {
	params := map[string]any{
		"used":  account.Used,
		"limit": account.Limit,
	}
	if errNotify := l.notifier.Notify(ctx, userID, kind, params); errNotify != nil {
		log.WithError(errNotify).WithField("user_id", userID).Warn("ledger: notification failed")
	}
}

// ResetAll runs the periodic reset for active paid-plan users whose reset
// date has arrived. The reset_date guard makes a re-run within the same
// period a no-op, so the job is safe to fire twice.
func (l *Ledger) ResetAll(ctx context.Context, planLimits map[models.Plan]float64) error {
	now := time.Now().UTC()

	var users []models.User
	if errFind := l.db.WithContext(ctx).
		Where("plan IN ? AND is_active = ?", []models.Plan{models.PlanPro, models.PlanTeams}, true).
		Find(&users).Error; errFind != nil {
		return &LedgerError{Op: "reset: list users", Err: errFind}
	}

	for _, user := range users {
		limit, ok := planLimits[user.Plan]
		if !ok {
			continue
		}
		reset, errReset := l.resetOne(ctx, user.ID, limit, now)
		if errReset != nil {
			log.WithError(errReset).WithField("user_id", user.ID).Warn("ledger: reset failed")
			continue
		}
		if reset {
			l.send(ctx, user.ID, notify.KindCreditReset, models.CreditAccount{Limit: limit})
		}
	}
	return nil
}

// resetOne zeroes one account if its reset is due. Returns false when the
// account was already reset this period.
func (l *Ledger) resetOne(ctx context.Context, userID uint64, limit float64, now time.Time) (bool, error) {
	var didReset bool
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CreditAccount{}).
			Where("user_id = ? AND reset_date <= ?", userID, now).
			Updates(map[string]any{
				"used":                 0,
				"limit_amount":         limit,
				"reset_date":           now.AddDate(0, 1, 0),
				"notified_approaching": false,
				"notified_reached":     false,
				"updated_at":           now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		didReset = true
		txn := models.CreditTransaction{
			UserID:      userID,
			Amount:      0,
			Description: "Monthly credit reset",
			CreatedAt:   now,
		}
		return tx.Create(&txn).Error
	})
	if errTx != nil {
		return false, errTx
	}
	return didReset, nil
}
