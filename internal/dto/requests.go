package dto

// CreateOrderRequest — тело POST /api/orders.
type CreateOrderRequest struct {
	ServiceID    string `json:"service_id" binding:"required"`
	Requirements string `json:"requirements" binding:"required"`
}

// UpdateOrderStatusRequest — тело PATCH /api/orders/:orderId/status.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SendMessageRequest — тело POST /api/orders/:orderId/messages.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// CreatePaymentIntentRequest — тело POST /api/payments/create-payment-intent.
type CreatePaymentIntentRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}
