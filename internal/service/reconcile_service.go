package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-market-backend/internal/gateway"
	"github.com/ignatzorin/freelance-market-backend/internal/goroutine"
	"github.com/ignatzorin/freelance-market-backend/internal/logger"
	"github.com/ignatzorin/freelance-market-backend/internal/models"
	"github.com/ignatzorin/freelance-market-backend/internal/repository"
)

// ReconcilePaymentRepository — доступ реконсилиации к платёжному реестру.
type ReconcilePaymentRepository interface {
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Payment, error)
	MarkSucceeded(ctx context.Context, id uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (bool, error)
	BackfillCharge(ctx context.Context, id uuid.UUID, chargeID, currency string) error
}

// ReconcileUserRepository — доступ реконсилиации к пользователям.
type ReconcileUserRepository interface {
	GetByStripeAccountID(ctx context.Context, accountID string) (*models.User, error)
	EnablePayouts(ctx context.Context, userID uuid.UUID) (bool, error)
}

// ChargeResolver — часть шлюза, нужная для дозаполнения charge.
type ChargeResolver interface {
	RetrievePaymentIntentCharge(ctx context.Context, paymentIntentID string) (*gateway.Charge, error)
}

// ReconcileService применяет асинхронные события платёжного шлюза к реестру
// и заказам. Вебхук — единственный источник истины о состоянии платежа:
// клиентское «оплата прошла» трактуется только как повод опрашивать сервер.
// Шлюз доставляет события как минимум один раз и в произвольном порядке,
// поэтому каждый обработчик идемпотентен и не откатывает поздние статусы.
type ReconcileService struct {
	payments ReconcilePaymentRepository
	orders   OrderReader
	users    ReconcileUserRepository
	charges  ChargeResolver
	notifier Notifier
}

// NewReconcileService создаёт сервис реконсилиации.
func NewReconcileService(payments ReconcilePaymentRepository, orders OrderReader, users ReconcileUserRepository, charges ChargeResolver, notifier Notifier) *ReconcileService {
	return &ReconcileService{
		payments: payments,
		orders:   orders,
		users:    users,
		charges:  charges,
		notifier: notifier,
	}
}

type paymentIntentEvent struct {
	ID string `json:"id"`
}

type chargeEvent struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	Currency      string `json:"currency"`
}

type accountEvent struct {
	ID             string `json:"id"`
	ChargesEnabled bool   `json:"charges_enabled"`
	PayoutsEnabled bool   `json:"payouts_enabled"`
}

// HandleEvent применяет одно событие шлюза. Возврат ошибки означает, что
// шлюз повторит доставку; события с неизвестным или потерянным контекстом
// подтверждаются без ошибки — бесконечный ретрай по ним бессмыслен.
func (s *ReconcileService) HandleEvent(ctx context.Context, ev *gateway.Event) error {
	switch ev.Type {
	case gateway.EventPaymentIntentSucceeded:
		return s.handleCaptureSucceeded(ctx, ev)
	case gateway.EventPaymentIntentFailed:
		return s.handleCaptureFailed(ctx, ev)
	case gateway.EventChargeSucceeded:
		return s.handleChargeCreated(ctx, ev)
	case gateway.EventAccountUpdated:
		return s.handleAccountUpdated(ctx, ev)
	default:
		logger.WithComponent("reconciler").Infof("событие %s типа %s не обрабатывается, подтверждаем", ev.ID, ev.Type)
		return nil
	}
}

// handleCaptureSucceeded отмечает платёж подтверждённым и заказ оплаченным.
func (s *ReconcileService) handleCaptureSucceeded(ctx context.Context, ev *gateway.Event) error {
	var intent paymentIntentEvent
	if err := json.Unmarshal(ev.Data, &intent); err != nil {
		return fmt.Errorf("reconciler: разбор события %s %w", ev.ID, err)
	}

	p, err := s.payments.GetByPaymentIntentID(ctx, intent.ID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			logger.WithComponent("reconciler").Warnf("событие %s ссылается на неизвестный payment intent %s, подтверждаем", ev.ID, intent.ID)
			return nil
		}
		return err
	}

	transitioned, err := s.payments.MarkSucceeded(ctx, p.ID)
	if err != nil {
		return err
	}

	// Дозаполнение charge — best-effort: его сбой не мешает зафиксировать
	// успешное списание, charge дозаполнится событием charge.succeeded
	// или при выплате.
	if p.StripeChargeID == nil {
		if charge, err := s.charges.RetrievePaymentIntentCharge(ctx, intent.ID); err != nil {
			logger.WithComponent("reconciler").Warnf("не удалось дозаполнить charge платежа %s: %v", p.ID, err)
		} else if err := s.payments.BackfillCharge(ctx, p.ID, charge.ID, charge.Currency); err != nil {
			logger.WithComponent("reconciler").Warnf("не удалось сохранить charge платежа %s: %v", p.ID, err)
		}
	}

	// Заказ становится оплаченным только при живом платеже. Опоздавший
	// успех после уже зафиксированного неуспеха — no-op: реестр статус не
	// менял, и заказ с неоплачиваемым платежом помечать оплаченным нельзя.
	confirmed := transitioned ||
		p.Status == models.PaymentStatusSucceeded ||
		p.Status == models.PaymentStatusTransferred
	if confirmed {
		if err := s.orders.SetPaymentStatus(ctx, p.OrderID, models.OrderPaymentStatusPaid); err != nil {
			return err
		}
	}

	if transitioned {
		order, err := s.orders.GetByID(ctx, p.OrderID)
		if err != nil {
			logger.WithComponent("reconciler").Errorf("платёж %s подтверждён, но заказ %s не прочитан: %v", p.ID, p.OrderID, err)
			return nil
		}
		s.notifyAsync(order.FreelancerID, "payment_received", map[string]interface{}{
			"order_id":     order.ID,
			"payment_id":   p.ID,
			"amount_cents": p.AmountCents,
		})
	}

	return nil
}

// handleCaptureFailed отмечает платёж неуспешным; заказ остаётся неоплаченным.
func (s *ReconcileService) handleCaptureFailed(ctx context.Context, ev *gateway.Event) error {
	var intent paymentIntentEvent
	if err := json.Unmarshal(ev.Data, &intent); err != nil {
		return fmt.Errorf("reconciler: разбор события %s %w", ev.ID, err)
	}

	p, err := s.payments.GetByPaymentIntentID(ctx, intent.ID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			logger.WithComponent("reconciler").Warnf("событие %s ссылается на неизвестный payment intent %s, подтверждаем", ev.ID, intent.ID)
			return nil
		}
		return err
	}

	transitioned, err := s.payments.MarkFailed(ctx, p.ID)
	if err != nil {
		return err
	}
	if transitioned {
		// Возвращаем заказ в unpaid: клиент может запросить оплату заново.
		if err := s.orders.SetPaymentStatus(ctx, p.OrderID, models.OrderPaymentStatusUnpaid); err != nil {
			return err
		}
	}

	return nil
}

// handleChargeCreated дозаполняет charge и валюту. Событие может прийти и
// до, и после payment_intent.succeeded — уже записанные значения не трогаем.
func (s *ReconcileService) handleChargeCreated(ctx context.Context, ev *gateway.Event) error {
	var charge chargeEvent
	if err := json.Unmarshal(ev.Data, &charge); err != nil {
		return fmt.Errorf("reconciler: разбор события %s %w", ev.ID, err)
	}
	if charge.PaymentIntent == "" {
		logger.WithComponent("reconciler").Warnf("событие %s без payment intent, подтверждаем", ev.ID)
		return nil
	}

	p, err := s.payments.GetByPaymentIntentID(ctx, charge.PaymentIntent)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			logger.WithComponent("reconciler").Warnf("событие %s ссылается на неизвестный payment intent %s, подтверждаем", ev.ID, charge.PaymentIntent)
			return nil
		}
		return err
	}

	return s.payments.BackfillCharge(ctx, p.ID, charge.ID, charge.Currency)
}

// handleAccountUpdated включает выплаты фрилансеру, когда его счёт готов
// принимать и списания, и выплаты. Повторное событие — no-op.
func (s *ReconcileService) handleAccountUpdated(ctx context.Context, ev *gateway.Event) error {
	var account accountEvent
	if err := json.Unmarshal(ev.Data, &account); err != nil {
		return fmt.Errorf("reconciler: разбор события %s %w", ev.ID, err)
	}

	if !account.ChargesEnabled || !account.PayoutsEnabled {
		return nil
	}

	user, err := s.users.GetByStripeAccountID(ctx, account.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logger.WithComponent("reconciler").Warnf("событие %s ссылается на неизвестный счёт %s, подтверждаем", ev.ID, account.ID)
			return nil
		}
		return err
	}

	flipped, err := s.users.EnablePayouts(ctx, user.ID)
	if err != nil {
		return err
	}
	if flipped {
		s.notifyAsync(user.ID, "payout_account_ready", map[string]interface{}{
			"account_id": account.ID,
		})
	}

	return nil
}

// notifyAsync отправляет уведомление, не блокируя обработку события.
func (s *ReconcileService) notifyAsync(userID uuid.UUID, event string, data interface{}) {
	if s.notifier == nil {
		return
	}
	goroutine.SafeGo(func() {
		if err := s.notifier.PublishToUser(userID, event, data); err != nil {
			logger.WithComponent("reconciler").Warnf("не удалось отправить уведомление %s пользователю %s: %v", event, userID, err)
		}
	})
}
