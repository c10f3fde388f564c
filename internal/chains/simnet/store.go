package simnet

import (
	"fmt"
	"math/big"
	"sync"
	"time"
)

// Payment is one simulated inbound transfer to a tracked address.
type Payment struct {
	TxRef         string
	Amount        *big.Int
	Confirmations int
	ReceivedAt    time.Time
}

// Store is the in-memory stand-in for the three chain networks. Payments are
// write-once per (address, tx ref) so replays of the same simulated transfer
// are rejected rather than double counted.
type Store struct {
	mu       sync.RWMutex
	payments map[string][]Payment
}

// NewStore builds an empty simulated network.
func NewStore() *Store {
	return &Store{payments: make(map[string][]Payment)}
}

// RegisterPayment records a simulated transfer to the address.
func (s *Store) RegisterPayment(address string, payment Payment) error {
	if address == "" {
		return fmt.Errorf("address is required")
	}
	if payment.TxRef == "" {
		return fmt.Errorf("tx ref is required")
	}
	if payment.Amount == nil || payment.Amount.Sign() <= 0 {
		return fmt.Errorf("payment amount must be positive")
	}
	if payment.ReceivedAt.IsZero() {
		payment.ReceivedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.payments[address] {
		if existing.TxRef == payment.TxRef {
			return fmt.Errorf("payment %s already registered for address", payment.TxRef)
		}
	}
	// Copy the amount so callers cannot mutate stored state.
	stored := payment
	stored.Amount = new(big.Int).Set(payment.Amount)
	s.payments[address] = append(s.payments[address], stored)
	return nil
}

// PaymentsFor returns all simulated transfers recorded for the address.
func (s *Store) PaymentsFor(address string) []Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recorded := s.payments[address]
	out := make([]Payment, len(recorded))
	for i, p := range recorded {
		out[i] = p
		out[i].Amount = new(big.Int).Set(p.Amount)
	}
	return out
}

// TotalFor sums all simulated transfers to the address.
func (s *Store) TotalFor(address string) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := new(big.Int)
	for _, p := range s.payments[address] {
		total.Add(total, p.Amount)
	}
	return total
}

// Reset clears all recorded payments.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = make(map[string][]Payment)
}
