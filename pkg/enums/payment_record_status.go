package enums

import "fmt"

// PaymentRecordStatus tracks the outcome captured in the billing history.
type PaymentRecordStatus string

const (
	PaymentRecordStatusPaid   PaymentRecordStatus = "paid"
	PaymentRecordStatusFailed PaymentRecordStatus = "failed"
)

var validPaymentRecordStatuses = []PaymentRecordStatus{
	PaymentRecordStatusPaid,
	PaymentRecordStatusFailed,
}

// String implements fmt.Stringer.
func (s PaymentRecordStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s PaymentRecordStatus) IsValid() bool {
	for _, candidate := range validPaymentRecordStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePaymentRecordStatus converts raw input into a PaymentRecordStatus.
func ParsePaymentRecordStatus(value string) (PaymentRecordStatus, error) {
	for _, candidate := range validPaymentRecordStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment record status %q", value)
}
