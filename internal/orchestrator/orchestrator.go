// Package orchestrator drives agent replies from trigger to delivery. A reply
// moves through authorization, context assembly, the provider call, message
// persistence, and billing. The provider call happens off the request path;
// the sender's message is never held up by a slow upstream.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fixyhq/fixy/internal/catalog"
	"github.com/fixyhq/fixy/internal/chatcontext"
	"github.com/fixyhq/fixy/internal/entitlement"
	"github.com/fixyhq/fixy/internal/gateway"
	"github.com/fixyhq/fixy/internal/ledger"
	"github.com/fixyhq/fixy/internal/models"
	"github.com/fixyhq/fixy/internal/realtime"
	"github.com/fixyhq/fixy/internal/settings"
	"github.com/fixyhq/fixy/internal/vault"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Failure reasons surfaced on ai-failed events beyond the entitlement ones.
const (
	ReasonAgentNotFound   = "agent_not_found"
	ReasonModelNotFound   = "model_not_found"
	ReasonCredentialError = "credentials_unavailable"
	ReasonProviderError   = "provider_error"
	ReasonProviderTimeout = "provider_timeout"
	ReasonInternalError   = "internal_error"
)

const (
	// maxProviderAttempts bounds retries of retryable provider failures.
	maxProviderAttempts = 3
	retryBaseDelay      = 500 * time.Millisecond
)

// Orchestrator coordinates the components that produce an agent reply.
type Orchestrator struct {
	db        *gorm.DB
	evaluator *entitlement.Evaluator
	vault     *vault.Vault
	builder   *chatcontext.Builder
	gateway   *gateway.Gateway
	ledger    *ledger.Ledger
	publisher realtime.Publisher

	timeout    time.Duration
	windowSize int
	sleep      func(context.Context, time.Duration) error // overridden in tests
}

// New constructs an Orchestrator. A zero timeout falls back to the default
// provider timeout.
func New(db *gorm.DB, evaluator *entitlement.Evaluator, v *vault.Vault, builder *chatcontext.Builder, gw *gateway.Gateway, l *ledger.Ledger, publisher realtime.Publisher, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = settings.DefaultProviderTimeout
	}
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &Orchestrator{
		db:         db,
		evaluator:  evaluator,
		vault:      v,
		builder:    builder,
		gateway:    gw,
		ledger:     l,
		publisher:  publisher,
		timeout:    timeout,
		windowSize: settings.DefaultContextWindow,
		sleep:      sleepContext,
	}
}

// sleepContext waits out the delay unless the context ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Dispatch starts a reply in the background. The caller's request returns
// while the provider call runs. The reply deadline is applied inside Respond,
// around the provider call only.
func (o *Orchestrator) Dispatch(chatroomID, agentID, userID uint64) {
	go func() {
		if errRun := o.Respond(context.Background(), chatroomID, agentID, userID); errRun != nil {
			log.WithError(errRun).WithFields(log.Fields{
				"chatroom_id": chatroomID,
				"agent_id":    agentID,
			}).Warn("orchestrator: agent reply failed")
		}
	}()
}

// Respond generates one agent reply. On any failure after the thinking event
// it publishes a single ai-failed event; no partial message and no debit are
// left behind.
func (o *Orchestrator) Respond(ctx context.Context, chatroomID, agentID, userID uint64) error {
	agent, model, errLoad := o.loadAgent(ctx, chatroomID, agentID)
	if errLoad != nil {
		reason := ReasonAgentNotFound
		if errors.Is(errLoad, errUnknownModel) {
			reason = ReasonModelNotFound
		}
		o.publishFailed(ctx, chatroomID, agentID, reason)
		return errLoad
	}

	o.publishRoom(ctx, chatroomID, agentID, realtime.NewEvent(realtime.EventAIThinking))

	decision, errAuth := o.evaluator.Authorize(ctx, userID, model)
	if errAuth != nil {
		o.publishFailed(ctx, chatroomID, agentID, ReasonInternalError)
		return fmt.Errorf("authorize: %w", errAuth)
	}
	if !decision.Allowed {
		o.publishFailed(ctx, chatroomID, agentID, string(decision.Reason))
		return nil
	}

	cred, errCred := o.vault.Resolve(ctx, userID, model.Provider)
	if errCred != nil {
		o.publishFailed(ctx, chatroomID, agentID, ReasonCredentialError)
		return fmt.Errorf("resolve credential: %w", errCred)
	}

	history, errHistory := o.builder.Build(ctx, chatroomID, o.windowSize)
	if errHistory != nil {
		o.publishFailed(ctx, chatroomID, agentID, ReasonInternalError)
		return fmt.Errorf("build context: %w", errHistory)
	}

	// The reply deadline bounds the provider call only. Everything after it,
	// the terminal event included, must still run once the deadline has passed.
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	content, errComplete := o.complete(callCtx, model, agent, history, cred.APIKey)
	cancel()
	if errComplete != nil {
		reason := ReasonProviderError
		if errors.Is(errComplete, context.DeadlineExceeded) {
			reason = ReasonProviderTimeout
		}
		o.publishFailed(ctx, chatroomID, agentID, reason)
		return fmt.Errorf("provider call: %w", errComplete)
	}

	cost := 0.0
	if decision.RequiresCredit {
		cost = model.CreditCost
	}
	message := models.Message{
		ChatroomID:  chatroomID,
		AgentID:     &agent.ID,
		Content:     content,
		IsAI:        true,
		CreditsUsed: cost,
	}
	// The content exists; persist and bill it even if the caller's context
	// expired while the provider was answering.
	deliverCtx := context.WithoutCancel(ctx)
	errCreate := o.db.WithContext(deliverCtx).Transaction(func(tx *gorm.DB) error {
		if errMsg := tx.Create(&message).Error; errMsg != nil {
			return errMsg
		}
		return tx.Model(&models.Chatroom{}).
			Where("id = ?", chatroomID).
			UpdateColumn("updated_at", time.Now().UTC()).Error
	})
	if errCreate != nil {
		o.publishFailed(ctx, chatroomID, agentID, ReasonInternalError)
		return fmt.Errorf("persist reply: %w", errCreate)
	}

	// The reply is already persisted; a billing failure must not destroy it.
	if decision.RequiresCredit {
		description := fmt.Sprintf("AI response (%s)", model.ID)
		if errDebit := o.ledger.Debit(deliverCtx, userID, cost, description); errDebit != nil {
			log.WithError(errDebit).WithFields(log.Fields{
				"user_id":    userID,
				"message_id": message.ID,
			}).Error("orchestrator: debit failed after reply persisted")
		}
	}

	event := realtime.NewEvent(realtime.EventNewMessage)
	event.Message = realtime.MessageBody(message)
	o.publishRoom(ctx, chatroomID, agentID, event)
	return nil
}

var errUnknownModel = errors.New("agent references unknown model")

// loadAgent fetches an active agent scoped to the room and resolves its model.
func (o *Orchestrator) loadAgent(ctx context.Context, chatroomID, agentID uint64) (models.Agent, catalog.Model, error) {
	var agent models.Agent
	errFind := o.db.WithContext(ctx).
		Where("id = ? AND chatroom_id = ? AND is_active = ?", agentID, chatroomID, true).
		First(&agent).Error
	if errFind != nil {
		return models.Agent{}, catalog.Model{}, fmt.Errorf("load agent %d: %w", agentID, errFind)
	}
	model, ok := catalog.Lookup(agent.ModelID)
	if !ok {
		return models.Agent{}, catalog.Model{}, errUnknownModel
	}
	return agent, model, nil
}

// complete calls the provider, retrying retryable failures with a linear
// backoff until the attempt budget or the deadline runs out.
func (o *Orchestrator) complete(ctx context.Context, model catalog.Model, agent models.Agent, history []gateway.Message, apiKey string) (string, error) {
	var cfg models.AgentConfig
	if len(agent.Config) > 0 {
		if errDecode := json.Unmarshal(agent.Config, &cfg); errDecode != nil {
			log.WithError(errDecode).WithField("agent_id", agent.ID).Warn("orchestrator: invalid agent config, using defaults")
		}
	}
	req := gateway.Request{
		ModelID:      model.ID,
		SystemPrompt: cfg.SystemPrompt,
		Messages:     history,
		APIKey:       apiKey,
	}
	if cfg.Temperature != nil {
		req.Temperature = *cfg.Temperature
	}
	if cfg.MaxTokens != nil {
		req.MaxTokens = *cfg.MaxTokens
	}

	var lastErr error
	for attempt := 1; attempt <= maxProviderAttempts; attempt++ {
		content, errCall := o.gateway.Complete(ctx, model.Provider, req)
		if errCall == nil {
			return content, nil
		}
		lastErr = errCall

		var provErr *gateway.ProviderError
		if !errors.As(errCall, &provErr) || !provErr.Retryable {
			return "", errCall
		}
		if attempt == maxProviderAttempts {
			break
		}
		delay := retryBaseDelay * time.Duration(attempt)
		log.WithError(errCall).WithFields(log.Fields{
			"provider": model.Provider,
			"attempt":  attempt,
		}).Warn("orchestrator: retrying provider call")
		if errWait := o.sleep(ctx, delay); errWait != nil {
			return "", errWait
		}
	}
	return "", lastErr
}

func (o *Orchestrator) publishFailed(ctx context.Context, chatroomID, agentID uint64, reason string) {
	event := realtime.NewEvent(realtime.EventAIFailed)
	event.Reason = reason
	o.publishRoom(ctx, chatroomID, agentID, event)
}

func (o *Orchestrator) publishRoom(ctx context.Context, chatroomID, agentID uint64, event realtime.Event) {
	event.ChatroomID = chatroomID
	event.AgentID = agentID
	// An expired reply deadline must not swallow the event; the room would be
	// left with a thinking indicator and no terminal ai-failed.
	if errPub := o.publisher.PublishRoom(context.WithoutCancel(ctx), chatroomID, event); errPub != nil {
		log.WithError(errPub).WithField("chatroom_id", chatroomID).Warn("orchestrator: event publish failed")
	}
}
