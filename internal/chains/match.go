package chains

import (
	"fmt"
	"math/big"

	"github.com/atlaspay-io/atlaspay-backend/internal/chains/simnet"
)

// matchSimnetPayment reports a match once the cumulative simulated transfers
// to the tracking handle cover the expected amount. Overpayment still
// matches; the full received total is returned as evidence. Confirmations
// are the minimum across contributing transfers so a match never overstates
// finality.
func matchSimnetPayment(store *simnet.Store, handle string, expected *big.Int) (*PaymentMatch, error) {
	if store == nil {
		return nil, fmt.Errorf("simnet store required")
	}
	if handle == "" {
		return nil, fmt.Errorf("tracking handle is required")
	}
	if expected == nil || expected.Sign() <= 0 {
		return nil, fmt.Errorf("expected amount must be positive")
	}

	payments := store.PaymentsFor(handle)
	if len(payments) == 0 {
		return nil, nil
	}

	total := new(big.Int)
	minConf := payments[0].Confirmations
	last := payments[0]
	for _, p := range payments {
		total.Add(total, p.Amount)
		if p.Confirmations < minConf {
			minConf = p.Confirmations
		}
		if p.ReceivedAt.After(last.ReceivedAt) {
			last = p
		}
	}
	if total.Cmp(expected) < 0 {
		return nil, nil
	}
	return &PaymentMatch{
		TxRef:         last.TxRef,
		Amount:        total,
		Confirmations: minConf,
		DetectedAt:    last.ReceivedAt,
	}, nil
}
