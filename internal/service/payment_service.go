package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-market-backend/internal/gateway"
	"github.com/ignatzorin/freelance-market-backend/internal/goroutine"
	"github.com/ignatzorin/freelance-market-backend/internal/logger"
	"github.com/ignatzorin/freelance-market-backend/internal/models"
	"github.com/ignatzorin/freelance-market-backend/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-market-backend/internal/repository"
)

// PaymentRepository описывает взаимодействие сервиса с платёжным реестром.
type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	GetReleasableByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	BackfillCharge(ctx context.Context, id uuid.UUID, chargeID, currency string) error
	ClaimPayout(ctx context.Context, id uuid.UUID) (bool, error)
	ReleasePayoutClaim(ctx context.Context, id uuid.UUID) error
	FinishTransfer(ctx context.Context, id uuid.UUID, transferID string) error
}

// OrderReader описывает доступ платёжного сервиса к заказам.
type OrderReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	SetPaymentStatus(ctx context.Context, orderID uuid.UUID, paymentStatus string) error
}

// UserDirectory описывает доступ к пользователям и их подключённым счетам.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetStripeAccountID(ctx context.Context, userID uuid.UUID, accountID string) error
}

// PaymentGateway — граница с внешним платёжным процессором.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*gateway.PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, paymentIntentID string) (*gateway.PaymentIntent, error)
	RetrievePaymentIntentCharge(ctx context.Context, paymentIntentID string) (*gateway.Charge, error)
	RetrieveCharge(ctx context.Context, chargeID string) (*gateway.Charge, error)
	CreateTransfer(ctx context.Context, amountCents int64, currency, destinationAccountID, sourceChargeID string, metadata map[string]string) (*gateway.Transfer, error)
	CreateConnectedAccount(ctx context.Context, email string) (*gateway.Account, error)
	CreateAccountOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (*gateway.AccountLink, error)
	RetrieveAccount(ctx context.Context, accountID string) (*gateway.Account, error)
}

// PaymentServiceConfig — бизнес-константы платёжного сервиса.
type PaymentServiceConfig struct {
	FeePercent        int64
	Currency          string
	ConnectRefreshURL string
	ConnectReturnURL  string
}

// PaymentService отвечает за создание платежей и выплату средств фрилансеру.
type PaymentService struct {
	payments PaymentRepository
	orders   OrderReader
	users    UserDirectory
	gateway  PaymentGateway
	notifier Notifier
	cfg      PaymentServiceConfig
}

// NewPaymentService создаёт платёжный сервис.
func NewPaymentService(payments PaymentRepository, orders OrderReader, users UserDirectory, gw PaymentGateway, notifier Notifier, cfg PaymentServiceConfig) *PaymentService {
	return &PaymentService{
		payments: payments,
		orders:   orders,
		users:    users,
		gateway:  gw,
		notifier: notifier,
		cfg:      cfg,
	}
}

// PaymentIntentResult — данные для подтверждения платежа на клиенте.
type PaymentIntentResult struct {
	PaymentID    uuid.UUID `json:"payment_id"`
	ClientSecret string    `json:"client_secret"`
}

// InitiatePayment создаёт платёж по заказу. Операция идемпотентна:
// по уже оплаченному заказу возвращается ошибка «уже оплачен», по заказу с
// живым pending-платежом — client secret существующего намерения, без
// создания дубликата.
func (s *PaymentService) InitiatePayment(ctx context.Context, orderID, callerID uuid.UUID) (*PaymentIntentResult, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, err
	}
	if order.ClientID != callerID {
		return nil, apperror.ErrForbidden
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "отменённый заказ нельзя оплатить")
	}

	existing, err := s.payments.GetActiveByOrderID(ctx, orderID)
	if err != nil && !errors.Is(err, repository.ErrPaymentNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.Status != models.PaymentStatusPending {
			return nil, apperror.ErrAlreadyPaid
		}
		// Повторный запрос оплаты: переотдаём существующее намерение.
		intent, err := s.gateway.RetrievePaymentIntent(ctx, existing.StripePaymentIntentID)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "не удалось получить существующее намерение платежа")
		}
		return &PaymentIntentResult{PaymentID: existing.ID, ClientSecret: intent.ClientSecret}, nil
	}

	platformFee, freelancerAmount := models.SplitAmount(order.PriceCents, s.cfg.FeePercent)

	intent, err := s.gateway.CreatePaymentIntent(ctx, order.PriceCents, s.cfg.Currency, map[string]string{
		"order_id":      order.ID.String(),
		"service_id":    order.ServiceID.String(),
		"client_id":     order.ClientID.String(),
		"freelancer_id": order.FreelancerID.String(),
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "не удалось создать намерение платежа")
	}

	payment := &models.Payment{
		OrderID:               order.ID,
		AmountCents:           order.PriceCents,
		PlatformFeeCents:      platformFee,
		FreelancerAmountCents: freelancerAmount,
		Status:                models.PaymentStatusPending,
		PayoutStatus:          models.PayoutStatusPending,
		StripePaymentIntentID: intent.ID,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	if err := s.orders.SetPaymentStatus(ctx, order.ID, models.OrderPaymentStatusPending); err != nil {
		logger.WithComponent("payment-service").Errorf("не удалось обновить статус оплаты заказа %s: %v", order.ID, err)
	}

	return &PaymentIntentResult{PaymentID: payment.ID, ClientSecret: intent.ClientSecret}, nil
}

// GetPayment возвращает запись реестра по идентификатору.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil, apperror.ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}

// ReleasePayment выплачивает долю фрилансера с конкретного charge. Единый
// код для ручной выплаты администратором и авто-выплаты по таймеру.
//
// Защита от двойного перевода: перед обращением к шлюзу выполняется
// compare-and-swap по payout_status (succeeded/pending → completed), поэтому
// из двух конкурентных вызовов перевод запросит ровно один, второй получит
// ошибку недопустимого состояния. При сбое шлюза захват снимается и запись
// остаётся в исходном состоянии — выплату можно повторить.
func (s *PaymentService) ReleasePayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil, apperror.ErrPaymentNotFound
		}
		return nil, err
	}

	if p.Status != models.PaymentStatusSucceeded || p.PayoutStatus != models.PayoutStatusPending {
		return nil, apperror.ErrPaymentNotEligible
	}

	order, err := s.orders.GetByID(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	freelancer, err := s.users.GetByID(ctx, order.FreelancerID)
	if err != nil {
		return nil, err
	}
	if freelancer.StripeAccountID == nil || *freelancer.StripeAccountID == "" {
		return nil, apperror.ErrNoPayoutAccount
	}

	// Шаг 1: получаем charge. Без известного charge перевод невозможен,
	// сумма перевода считается от фактически списанной суммы.
	charge, err := s.resolveCharge(ctx, p)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "не удалось определить charge платежа")
	}

	// Шаг 2: доля пересчитывается от суммы charge, а не от записанной в
	// реестре — на случай расхождения фактического списания со снапшотом.
	_, transferAmount := models.SplitAmount(charge.AmountCents, s.cfg.FeePercent)

	claimed, err := s.payments.ClaimPayout(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, apperror.ErrPaymentNotEligible
	}

	transfer, err := s.gateway.CreateTransfer(ctx, transferAmount, charge.Currency, *freelancer.StripeAccountID, charge.ID, map[string]string{
		"order_id":   order.ID.String(),
		"payment_id": p.ID.String(),
	})
	if err != nil {
		if releaseErr := s.payments.ReleasePayoutClaim(ctx, p.ID); releaseErr != nil {
			logger.WithComponent("payment-service").Errorf("не удалось снять захват выплаты %s: %v", p.ID, releaseErr)
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "перевод средств не выполнен")
	}

	if err := s.payments.FinishTransfer(ctx, p.ID, transfer.ID); err != nil {
		// Перевод уже случился; потерять его идентификатор нельзя.
		logger.WithComponent("payment-service").Errorf("перевод %s выполнен, но не записан для платежа %s: %v", transfer.ID, p.ID, err)
		return nil, err
	}

	s.notifyFreelancerAsync(order.FreelancerID, "payment_released", map[string]interface{}{
		"order_id":     order.ID,
		"payment_id":   p.ID,
		"amount_cents": transferAmount,
	})

	released, err := s.payments.GetByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return released, nil
}

// resolveCharge возвращает charge платежа: сохранённый, либо полученный от
// шлюза с дозаполнением реестра.
func (s *PaymentService) resolveCharge(ctx context.Context, p *models.Payment) (*gateway.Charge, error) {
	if p.StripeChargeID != nil && *p.StripeChargeID != "" {
		return s.gateway.RetrieveCharge(ctx, *p.StripeChargeID)
	}

	charge, err := s.gateway.RetrievePaymentIntentCharge(ctx, p.StripePaymentIntentID)
	if err != nil {
		return nil, err
	}
	if err := s.payments.BackfillCharge(ctx, p.ID, charge.ID, charge.Currency); err != nil {
		return nil, err
	}
	return charge, nil
}

// CreateConnectAccount создаёт подключённый счёт фрилансера (если его ещё
// нет) и возвращает ссылку на онбординг.
func (s *PaymentService) CreateConnectAccount(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", apperror.ErrUserNotFound
		}
		return "", err
	}

	accountID := ""
	if user.StripeAccountID != nil && *user.StripeAccountID != "" {
		accountID = *user.StripeAccountID
	} else {
		account, err := s.gateway.CreateConnectedAccount(ctx, user.Email)
		if err != nil {
			return "", apperror.Wrap(err, apperror.ErrCodeGateway, "не удалось создать подключённый счёт")
		}
		if err := s.users.SetStripeAccountID(ctx, user.ID, account.ID); err != nil {
			return "", err
		}
		accountID = account.ID
	}

	link, err := s.gateway.CreateAccountOnboardingLink(ctx, accountID, s.cfg.ConnectRefreshURL, s.cfg.ConnectReturnURL)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeGateway, "не удалось создать ссылку онбординга")
	}

	return link.URL, nil
}

// AccountStatusResult — состояние подключённого счёта фрилансера.
type AccountStatusResult struct {
	Connected        bool `json:"connected"`
	ChargesEnabled   bool `json:"charges_enabled"`
	PayoutsEnabled   bool `json:"payouts_enabled"`
	DetailsSubmitted bool `json:"details_submitted"`
}

// AccountStatus возвращает состояние подключённого счёта фрилансера.
func (s *PaymentService) AccountStatus(ctx context.Context, userID uuid.UUID) (*AccountStatusResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}
	if user.StripeAccountID == nil || *user.StripeAccountID == "" {
		return &AccountStatusResult{Connected: false}, nil
	}

	account, err := s.gateway.RetrieveAccount(ctx, *user.StripeAccountID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "не удалось получить состояние счёта")
	}

	return &AccountStatusResult{
		Connected:        true,
		ChargesEnabled:   account.ChargesEnabled,
		PayoutsEnabled:   account.PayoutsEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
	}, nil
}

// notifyFreelancerAsync отправляет уведомление, не блокируя запрос.
func (s *PaymentService) notifyFreelancerAsync(userID uuid.UUID, event string, data interface{}) {
	if s.notifier == nil {
		return
	}
	goroutine.SafeGo(func() {
		if err := s.notifier.PublishToUser(userID, event, data); err != nil {
			logger.WithComponent("payment-service").Warnf("не удалось отправить уведомление %s пользователю %s: %v", event, userID, err)
		}
	})
}
