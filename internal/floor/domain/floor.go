package domain

// CashSummary describes the state of a staff member's cash drawer over a window.
type CashSummary struct {
	OpeningFloatCents int64 `json:"opening_float_cents"`
	CurrentFloatCents int64 `json:"current_float_cents"`
	TransactionCount  int   `json:"transaction_count"`
}

// Metrics are the performance counters accumulated over one shift's window.
type Metrics struct {
	OrdersHandled     int
	RevenueCents      int64
	TablesServed      int
	AvgServiceSeconds int
	ErrorCount        int
}

// Cash movement kinds recorded by the order/payment screens.
const (
	CashKindOpeningFloat = "opening_float"
	CashKindSale         = "sale"
	CashKindRefund       = "refund"
	CashKindPayout       = "payout"
)

// Order statuses relevant to handover snapshots and shift metrics.
const (
	OrderStatusPending = "pending"
	OrderStatusClosed  = "closed"
	OrderStatusVoided  = "voided"
)
