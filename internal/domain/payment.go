package domain

// PaymentResult is the provider's verdict on a single charge attempt.
// TransactionID is set only when Succeeded is true; Reason only when false.
type PaymentResult struct {
	Succeeded     bool
	TransactionID string
	Reason        string
}
