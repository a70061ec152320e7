package handlers

import (
	"errors"
	"net/http"

	"github.com/fixyhq/fixy/internal/ledger"
	"github.com/fixyhq/fixy/internal/models"
	"github.com/fixyhq/fixy/internal/settings"

	"github.com/gin-gonic/gin"
)

// CreditHandler serves the user's credit balance and recent activity.
type CreditHandler struct {
	ledger *ledger.Ledger
}

// NewCreditHandler constructs a credit handler.
func NewCreditHandler(l *ledger.Ledger) *CreditHandler {
	return &CreditHandler{ledger: l}
}

// transactionBody shapes a credit transaction for API responses.
func transactionBody(txn models.CreditTransaction) gin.H {
	return gin.H{
		"id":          txn.ID,
		"amount":      txn.Amount,
		"description": txn.Description,
		"created_at":  txn.CreatedAt,
	}
}

// Get returns the account balance and the most recent transactions.
func (h *CreditHandler) Get(c *gin.Context) {
	userID := CurrentUserID(c)

	account, errAccount := h.ledger.Account(c.Request.Context(), userID)
	if errAccount != nil {
		if errors.Is(errAccount, ledger.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "credit account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load credits"})
		return
	}

	transactions, errTxns := h.ledger.Transactions(c.Request.Context(), userID, settings.TransactionPageSize)
	if errTxns != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load credits"})
		return
	}

	bodies := make([]gin.H, 0, len(transactions))
	for _, txn := range transactions {
		bodies = append(bodies, transactionBody(txn))
	}
	c.JSON(http.StatusOK, gin.H{
		"credits": gin.H{
			"used":       account.Used,
			"limit":      account.Limit,
			"remaining":  account.Limit - account.Used,
			"reset_date": account.ResetDate,
		},
		"transactions": bodies,
	})
}
