package dto

// ErrorResponse — стандартный формат ошибки API.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SuccessResponse — стандартный формат успешного ответа с сообщением.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PaymentIntentResponse — ответ на создание намерения платежа.
type PaymentIntentResponse struct {
	PaymentID    string `json:"payment_id"`
	ClientSecret string `json:"client_secret"`
}

// ConnectAccountResponse — ответ на создание подключённого счёта:
// ссылка, по которой фрилансер проходит онбординг.
type ConnectAccountResponse struct {
	OnboardingURL string `json:"onboarding_url"`
}

// AccountStatusResponse — состояние подключённого счёта фрилансера.
type AccountStatusResponse struct {
	Connected        bool `json:"connected"`
	ChargesEnabled   bool `json:"charges_enabled"`
	PayoutsEnabled   bool `json:"payouts_enabled"`
	DetailsSubmitted bool `json:"details_submitted"`
}
