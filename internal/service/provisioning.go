package service

import (
	"context"
	"errors"
	"fmt"

	"shoe-market/internal/domain"
	"shoe-market/internal/metrics"
	"shoe-market/internal/notification"
	"shoe-market/internal/repository"

	"go.uber.org/zap"
)

const phoneInUseMessage = "This phone number is already in use."

// WelcomeRenderer renders the welcome message for a freshly created account.
type WelcomeRenderer interface {
	Render(username, firstName, email string) (notification.Message, error)
}

// ProvisioningPipeline runs the account creation side effects in order:
// the account and its profile are stored together, then the welcome email is
// handed to dispatch. Only the first step can fail the caller.
type ProvisioningPipeline struct {
	accountRepo repository.AccountRepository
	welcome     WelcomeRenderer
	dispatch    notification.DispatchFunc
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewProvisioningPipeline(
	accountRepo repository.AccountRepository,
	welcome WelcomeRenderer,
	dispatch notification.DispatchFunc,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ProvisioningPipeline {
	return &ProvisioningPipeline{
		accountRepo: accountRepo,
		welcome:     welcome,
		dispatch:    dispatch,
		metrics:     m,
		logger:      logger.Named("provisioning"),
	}
}

// Provision persists account and profile atomically and schedules the welcome email.
// A phone number already held by another profile fails the whole signup.
func (p *ProvisioningPipeline) Provision(ctx context.Context, account *domain.Account, profile *domain.Profile) error {
	if err := p.accountRepo.CreateWithProfile(ctx, account, profile); err != nil {
		switch {
		case errors.Is(err, repository.ErrPhoneNumberTaken):
			return NewValidationError("phone_number", phoneInUseMessage)
		case errors.Is(err, repository.ErrAccountAlreadyExists):
			return fmt.Errorf("%w: %v", ErrConflict, err)
		default:
			return fmt.Errorf("failed to create account: %w", err)
		}
	}

	if p.metrics != nil {
		p.metrics.AccountsProvisionedTotal.Inc()
	}
	p.logger.Info("Account provisioned",
		zap.String("account_id", account.ID.String()),
		zap.String("username", account.Username),
	)

	p.notify(account)
	return nil
}

func (p *ProvisioningPipeline) notify(account *domain.Account) {
	if p.dispatch == nil || p.welcome == nil {
		return
	}

	msg, err := p.welcome.Render(account.Username, account.FirstName, account.Email)
	if err != nil {
		p.logger.Error("Failed to render welcome email",
			zap.String("account_id", account.ID.String()),
			zap.Error(err),
		)
		return
	}

	p.dispatch(msg)
}
