package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment — запись платёжного реестра по заказу: сколько списано с клиента,
// как сумма делится между платформой и фрилансером и в каком состоянии
// находятся списание (Status) и выплата (PayoutStatus). Две оси независимы:
// выплата может перейти в completed только при Status == succeeded.
// Записи никогда не удаляются.
type Payment struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	OrderID               uuid.UUID  `db:"order_id" json:"order_id"`
	AmountCents           int64      `db:"amount_cents" json:"amount_cents"`
	PlatformFeeCents      int64      `db:"platform_fee_cents" json:"platform_fee_cents"`
	FreelancerAmountCents int64      `db:"freelancer_amount_cents" json:"freelancer_amount_cents"`
	Status                string     `db:"status" json:"status"`
	PayoutStatus          string     `db:"payout_status" json:"payout_status"`
	StripePaymentIntentID string     `db:"stripe_payment_intent_id" json:"stripe_payment_intent_id"`
	StripeChargeID        *string    `db:"stripe_charge_id" json:"stripe_charge_id,omitempty"`
	StripeTransferID      *string    `db:"stripe_transfer_id" json:"stripe_transfer_id,omitempty"`
	Currency              *string    `db:"currency" json:"currency,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
	TransferredAt         *time.Time `db:"transferred_at" json:"transferred_at,omitempty"`
}

// SplitAmount делит сумму в минорных единицах на комиссию платформы и долю
// фрилансера. Вся денежная арифметика целочисленная: комиссия округляется
// до ближайшей минорной единицы (ровно половина — вверх), доля фрилансера —
// остаток, поэтому fee + freelancer == amount всегда.
func SplitAmount(amountCents int64, feePercent int64) (platformFee, freelancerAmount int64) {
	platformFee = (amountCents*feePercent + 50) / 100
	freelancerAmount = amountCents - platformFee
	return platformFee, freelancerAmount
}

// ReleaseJob — отложенная задача на выплату средств фрилансеру.
// Хранится в базе, чтобы перезапуск процесса между завершением заказа и
// срабатыванием таймера не терял авто-выплату. Ключ — платёж: повторное
// планирование по тому же платежу невозможно.
type ReleaseJob struct {
	PaymentID uuid.UUID  `db:"payment_id" json:"payment_id"`
	OrderID   uuid.UUID  `db:"order_id" json:"order_id"`
	DueAt     time.Time  `db:"due_at" json:"due_at"`
	Status    string     `db:"status" json:"status"`
	Attempts  int        `db:"attempts" json:"attempts"`
	LastError *string    `db:"last_error" json:"last_error,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}
