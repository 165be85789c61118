package gateway

import "encoding/json"

// Типы — узкая проекция объектов платёжного шлюза: ровно те поля, которые
// нужны реестру платежей и реконсилиации. Полные структуры SDK наружу из
// этого пакета не выходят.

// PaymentIntent — созданное намерение платежа.
type PaymentIntent struct {
	ID           string
	ClientSecret string
}

// Charge — фактическое списание средств клиента.
type Charge struct {
	ID              string
	AmountCents     int64
	Currency        string
	PaymentIntentID string
}

// Transfer — перевод средств на подключённый счёт фрилансера.
type Transfer struct {
	ID string
}

// Account — подключённый счёт фрилансера.
type Account struct {
	ID               string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

// AccountLink — одноразовая ссылка на онбординг счёта.
type AccountLink struct {
	URL string
}

// Event — проверенное вебхук-событие шлюза.
type Event struct {
	ID   string
	Type string
	Data json.RawMessage
}

// Типы событий, которые обрабатывает реконсилиация. Остальные
// подтверждаются без обработки.
const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
	EventChargeSucceeded        = "charge.succeeded"
	EventAccountUpdated         = "account.updated"
)
