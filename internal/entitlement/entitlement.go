// Package entitlement decides whether a user may invoke a model and whether
// the call is billed against the platform credit ledger. All plan and BYOK
// gating lives here; call sites consume the Decision instead of re-checking
// flags.
package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/fixyhq/fixy/internal/catalog"
	"github.com/fixyhq/fixy/internal/models"
	"github.com/fixyhq/fixy/internal/vault"
	"gorm.io/gorm"
)

// Reason identifies why an invocation was denied.
type Reason string

// Denial reasons surfaced to clients.
const (
	// ReasonRequiresElitePlan means the model is gated to Elite/Teams plans.
	ReasonRequiresElitePlan Reason = "requires_elite_plan"
	// ReasonRequiresBYOK means the model needs a user-supplied provider key.
	ReasonRequiresBYOK Reason = "requires_byok"
	// ReasonCreditLimitReached means the user's credit allowance is exhausted.
	ReasonCreditLimitReached Reason = "credit_limit_reached"
)

// Decision is the outcome of an authorization check. When Allowed is false,
// Reason carries the first failing rule. RequiresCredit marks whether a
// successful reply must be debited from the platform ledger.
type Decision struct {
	Allowed        bool
	RequiresCredit bool
	Reason         Reason
}

// ErrUserNotFound indicates the user or their credit account is missing.
var ErrUserNotFound = errors.New("entitlement: user not found")

// Evaluator authorizes model invocations from a single consistent snapshot of
// the user's plan, BYOK holdings, and credit balance. The check-then-debit
// race is bounded by the ledger's atomic increment, not by locking here.
type Evaluator struct {
	db    *gorm.DB
	vault *vault.Vault
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(db *gorm.DB, v *vault.Vault) *Evaluator {
	return &Evaluator{db: db, vault: v}
}

// Authorize applies the gating rules in order; the first failing rule wins.
// RequiresBYOK is a hard gate: even non-elite models that prefer user keys
// are denied without one.
func (e *Evaluator) Authorize(ctx context.Context, userID uint64, model catalog.Model) (Decision, error) {
	var user models.User
	errUser := e.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", userID, true).
		First(&user).Error
	if errUser != nil {
		if errors.Is(errUser, gorm.ErrRecordNotFound) {
			return Decision{}, ErrUserNotFound
		}
		return Decision{}, fmt.Errorf("entitlement: load user: %w", errUser)
	}

	if model.RequiresElite && !user.Plan.IsEliteOrTeams() {
		return Decision{Reason: ReasonRequiresElitePlan}, nil
	}

	hasBYOK, errBYOK := e.vault.HasActiveBYOK(ctx, userID, model.Provider)
	if errBYOK != nil {
		return Decision{}, errBYOK
	}
	if model.RequiresBYOK && !hasBYOK {
		return Decision{Reason: ReasonRequiresBYOK}, nil
	}

	byokBilled := hasBYOK &&
		(user.Plan == models.PlanElite || (user.Plan == models.PlanTeams && model.RequiresElite))
	if !byokBilled {
		var account models.CreditAccount
		errAccount := e.db.WithContext(ctx).
			Where("user_id = ?", userID).
			First(&account).Error
		if errAccount != nil {
			if errors.Is(errAccount, gorm.ErrRecordNotFound) {
				return Decision{}, ErrUserNotFound
			}
			return Decision{}, fmt.Errorf("entitlement: load credit account: %w", errAccount)
		}
		if account.Used >= account.Limit {
			return Decision{Reason: ReasonCreditLimitReached}, nil
		}
	}

	return Decision{Allowed: true, RequiresCredit: !byokBilled}, nil
}

// ModelAvailability pairs a catalog model with its availability for one user.
type ModelAvailability struct {
	catalog.Model
	Available bool   `json:"available"`
	Reason    Reason `json:"reason,omitempty"`
}

// Availability reports plan/BYOK availability for every catalog model. Credit
// balance is deliberately excluded so the list stays stable within a period.
func (e *Evaluator) Availability(ctx context.Context, userID uint64) ([]ModelAvailability, error) {
	var user models.User
	errUser := e.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", userID, true).
		First(&user).Error
	if errUser != nil {
		if errors.Is(errUser, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("entitlement: load user: %w", errUser)
	}

	var rows []models.BYOKCredential
	if errFind := e.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("entitlement: list byok: %w", errFind)
	}
	byokProviders := make(map[string]bool, len(rows))
	for _, row := range rows {
		byokProviders[row.Provider] = true
	}

	out := make([]ModelAvailability, 0, len(catalog.List()))
	for _, model := range catalog.List() {
		entry := ModelAvailability{Model: model, Available: true}
		switch {
		case model.RequiresElite && !user.Plan.IsEliteOrTeams():
			entry.Available = false
			entry.Reason = ReasonRequiresElitePlan
		case model.RequiresBYOK && !byokProviders[model.Provider]:
			entry.Available = false
			entry.Reason = ReasonRequiresBYOK
		}
		out = append(out, entry)
	}
	return out, nil
}
