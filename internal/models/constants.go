package models

// OrderStatus константы статусов заказов
const (
	OrderStatusPending    = "pending"
	OrderStatusAccepted   = "accepted"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// PaymentStatus заказа — независимая от Status ось
const (
	OrderPaymentStatusUnpaid   = "unpaid"
	OrderPaymentStatusPending  = "pending"
	OrderPaymentStatusPaid     = "paid"
	OrderPaymentStatusRefunded = "refunded"
)

// Статусы записи платёжного реестра
const (
	PaymentStatusPending     = "pending"
	PaymentStatusSucceeded   = "succeeded"
	PaymentStatusFailed      = "failed"
	PaymentStatusTransferred = "transferred"
)

// Статусы выплаты фрилансеру
const (
	PayoutStatusPending   = "pending"
	PayoutStatusCompleted = "completed"
)

// Статусы отложенной задачи на выплату
const (
	ReleaseJobStatusPending = "pending"
	ReleaseJobStatusDone    = "done"
	ReleaseJobStatusFailed  = "failed"
)

// Роли пользователей
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
	RoleAdmin      = "admin"
)

// ValidOrderStatuses список валидных статусов заказов
var ValidOrderStatuses = map[string]struct{}{
	OrderStatusPending:    {},
	OrderStatusAccepted:   {},
	OrderStatusInProgress: {},
	OrderStatusCompleted:  {},
	OrderStatusCancelled:  {},
}

// OrderStatusTransitions задаёт допустимые переходы статусов заказа.
// Отмена возможна только из pending и accepted: из in_progress работа уже
// идёт, и заказ доводится до completed либо решается вне этого контура.
var OrderStatusTransitions = map[string]map[string]struct{}{
	OrderStatusPending: {
		OrderStatusAccepted:  {},
		OrderStatusCancelled: {},
	},
	OrderStatusAccepted: {
		OrderStatusInProgress: {},
		OrderStatusCancelled:  {},
	},
	OrderStatusInProgress: {
		OrderStatusCompleted: {},
	},
}

// IsValidOrderTransition проверяет допустимость перехода статуса заказа.
func IsValidOrderTransition(from, to string) bool {
	next, ok := OrderStatusTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}
