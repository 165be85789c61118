package gateway

import (
	"fmt"

	"github.com/stripe/stripe-go/v82/webhook"
)

// VerifyEvent проверяет подпись вебхука и возвращает событие.
// Невалидная подпись — единственный случай, когда обработчик вебхуков
// обязан ответить ошибкой, а не подтверждением.
func VerifyEvent(payload []byte, signatureHeader, secret string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: подпись вебхука не прошла проверку: %w", err)
	}

	return &Event{
		ID:   ev.ID,
		Type: string(ev.Type),
		Data: ev.Data.Raw,
	}, nil
}
