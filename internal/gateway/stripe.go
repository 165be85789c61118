package gateway

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeGateway — адаптер к Stripe поверх официального SDK.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway создаёт адаптер с заданным секретным ключом.
func NewStripeGateway(secretKey string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api}
}

// CreatePaymentIntent создаёт намерение платежа на сумму в минорных единицах.
// Метаданные прокидываются как есть: для шлюза это непрозрачные ярлыки.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("gateway: создание payment intent %w", err)
	}

	return &PaymentIntent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// RetrievePaymentIntent возвращает намерение платежа вместе с client secret.
// Используется идемпотентным повтором создания платежа: существующее
// намерение переотдаётся клиенту вместо создания дубликата.
func (g *StripeGateway) RetrievePaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(paymentIntentID, params)
	if err != nil {
		return nil, fmt.Errorf("gateway: получение payment intent %s %w", paymentIntentID, err)
	}

	return &PaymentIntent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// RetrievePaymentIntentCharge возвращает итоговый charge намерения платежа.
// Если списания ещё не было, возвращается ошибка.
func (g *StripeGateway) RetrievePaymentIntentCharge(ctx context.Context, paymentIntentID string) (*Charge, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")

	pi, err := g.api.PaymentIntents.Get(paymentIntentID, params)
	if err != nil {
		return nil, fmt.Errorf("gateway: получение payment intent %s %w", paymentIntentID, err)
	}
	if pi.LatestCharge == nil {
		return nil, fmt.Errorf("gateway: у payment intent %s нет charge", paymentIntentID)
	}

	return &Charge{
		ID:              pi.LatestCharge.ID,
		AmountCents:     pi.LatestCharge.Amount,
		Currency:        string(pi.LatestCharge.Currency),
		PaymentIntentID: pi.ID,
	}, nil
}

// RetrieveCharge возвращает charge по идентификатору.
func (g *StripeGateway) RetrieveCharge(ctx context.Context, chargeID string) (*Charge, error) {
	params := &stripe.ChargeParams{}
	params.Context = ctx

	ch, err := g.api.Charges.Get(chargeID, params)
	if err != nil {
		return nil, fmt.Errorf("gateway: получение charge %s %w", chargeID, err)
	}

	charge := &Charge{
		ID:          ch.ID,
		AmountCents: ch.Amount,
		Currency:    string(ch.Currency),
	}
	if ch.PaymentIntent != nil {
		charge.PaymentIntentID = ch.PaymentIntent.ID
	}
	return charge, nil
}

// CreateTransfer переводит средства на подключённый счёт, источником служит
// конкретный charge — перевод нельзя выполнить без известного charge.
func (g *StripeGateway) CreateTransfer(ctx context.Context, amountCents int64, currency, destinationAccountID, sourceChargeID string, metadata map[string]string) (*Transfer, error) {
	params := &stripe.TransferParams{
		Amount:            stripe.Int64(amountCents),
		Currency:          stripe.String(currency),
		Destination:       stripe.String(destinationAccountID),
		SourceTransaction: stripe.String(sourceChargeID),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	tr, err := g.api.Transfers.New(params)
	if err != nil {
		return nil, fmt.Errorf("gateway: создание перевода %w", err)
	}

	return &Transfer{ID: tr.ID}, nil
}

// CreateConnectedAccount создаёт Express-счёт для выплат фрилансеру.
func (g *StripeGateway) CreateConnectedAccount(ctx context.Context, email string) (*Account, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	params.Context = ctx

	acc, err := g.api.Accounts.New(params)
	if err != nil {
		return nil, fmt.Errorf("gateway: создание подключённого счёта %w", err)
	}

	return accountFromStripe(acc), nil
}

// CreateAccountOnboardingLink создаёт ссылку на онбординг счёта.
func (g *StripeGateway) CreateAccountOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (*AccountLink, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx

	link, err := g.api.AccountLinks.New(params)
	if err != nil {
		return nil, fmt.Errorf("gateway: создание ссылки онбординга %w", err)
	}

	return &AccountLink{URL: link.URL}, nil
}

// RetrieveAccount возвращает состояние подключённого счёта.
func (g *StripeGateway) RetrieveAccount(ctx context.Context, accountID string) (*Account, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	acc, err := g.api.Accounts.GetByID(accountID, params)
	if err != nil {
		return nil, fmt.Errorf("gateway: получение счёта %s %w", accountID, err)
	}

	return accountFromStripe(acc), nil
}

func accountFromStripe(acc *stripe.Account) *Account {
	return &Account{
		ID:               acc.ID,
		ChargesEnabled:   acc.ChargesEnabled,
		PayoutsEnabled:   acc.PayoutsEnabled,
		DetailsSubmitted: acc.DetailsSubmitted,
	}
}
