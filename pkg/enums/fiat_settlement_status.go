package enums

import "fmt"

// FiatSettlementStatus distinguishes real bank-rail deposits from the
// simulated-success fallback used when the rail is unreachable.
type FiatSettlementStatus string

const (
	FiatSettlementStatusPending            FiatSettlementStatus = "pending"
	FiatSettlementStatusCompleted          FiatSettlementStatus = "completed"
	FiatSettlementStatusCompletedSimulated FiatSettlementStatus = "completed_simulated"
	FiatSettlementStatusFailed             FiatSettlementStatus = "failed"
)

var validFiatSettlementStatuses = []FiatSettlementStatus{
	FiatSettlementStatusPending,
	FiatSettlementStatusCompleted,
	FiatSettlementStatusCompletedSimulated,
	FiatSettlementStatusFailed,
}

// String implements fmt.Stringer.
func (s FiatSettlementStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known FiatSettlementStatus.
func (s FiatSettlementStatus) IsValid() bool {
	for _, candidate := range validFiatSettlementStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsCompleted reports whether funds are considered delivered, simulated or not.
func (s FiatSettlementStatus) IsCompleted() bool {
	return s == FiatSettlementStatusCompleted || s == FiatSettlementStatusCompletedSimulated
}

// ParseFiatSettlementStatus converts raw input into a FiatSettlementStatus.
func ParseFiatSettlementStatus(value string) (FiatSettlementStatus, error) {
	for _, candidate := range validFiatSettlementStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fiat settlement status %q", value)
}
