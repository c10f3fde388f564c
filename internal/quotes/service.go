package quotes

import (
	"context"
	"fmt"
	"time"

	"github.com/atlaspay-io/atlaspay-backend/internal/chains"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	"github.com/atlaspay-io/atlaspay-backend/pkg/logger"
	"github.com/atlaspay-io/atlaspay-backend/pkg/types"
)

// Service locks rate snapshots for invoices and answers validity questions
// about existing locks.
type Service interface {
	Create(ctx context.Context, paymentOptions []enums.Chain) (types.LockedQuote, error)
	Ensure(ctx context.Context, quote types.LockedQuote, paymentOptions []enums.Chain) (types.LockedQuote, bool, error)
	IsValid(quote types.LockedQuote) bool
	SecondsRemaining(quote types.LockedQuote) int64
}

type service struct {
	registry *chains.Registry
	ttl      time.Duration
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires a quote service over the chain registry's rate source.
func NewService(registry *chains.Registry, ttl time.Duration, logg *logger.Logger) (Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("chain registry required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("quote ttl must be positive")
	}
	return &service{registry: registry, ttl: ttl, logg: logg, now: time.Now}, nil
}

// Create snapshots the current USD rate for every asset a payer could use,
// plus USD itself, and stamps the lock window.
func (s *service) Create(ctx context.Context, paymentOptions []enums.Chain) (types.LockedQuote, error) {
	if len(paymentOptions) == 0 {
		return types.LockedQuote{}, fmt.Errorf("at least one payment option required")
	}

	rates := make(map[string]string, len(paymentOptions)+1)
	for _, chain := range paymentOptions {
		adapter, err := s.registry.Adapter(chain)
		if err != nil {
			return types.LockedQuote{}, err
		}
		asset := adapter.NativeAsset()
		rate, err := s.registry.Rates().USDRate(asset)
		if err != nil {
			return types.LockedQuote{}, err
		}
		rates[asset.String()] = rate.String()
	}
	rate, err := s.registry.Rates().USDRate(enums.AssetUSD)
	if err != nil {
		return types.LockedQuote{}, err
	}
	rates[enums.AssetUSD.String()] = rate.String()

	lockedAt := s.now()
	quote := types.LockedQuote{
		Rates:     rates,
		LockedAt:  lockedAt,
		ExpiresAt: lockedAt.Add(s.ttl),
	}

	if s.logg != nil {
		fields := map[string]any{
			"assets":     len(rates),
			"expires_at": quote.ExpiresAt,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "quote locked")
	}
	return quote, nil
}

// Ensure returns the quote unchanged while its lock window is still open and
// re-locks it from current rates once it has expired. The bool reports
// whether a new quote was created.
func (s *service) Ensure(ctx context.Context, quote types.LockedQuote, paymentOptions []enums.Chain) (types.LockedQuote, bool, error) {
	if !quote.IsZero() && quote.IsValidAt(s.now()) {
		return quote, false, nil
	}
	fresh, err := s.Create(ctx, paymentOptions)
	if err != nil {
		return types.LockedQuote{}, false, err
	}
	return fresh, true, nil
}

func (s *service) IsValid(quote types.LockedQuote) bool {
	return quote.IsValidAt(s.now())
}

func (s *service) SecondsRemaining(quote types.LockedQuote) int64 {
	return quote.SecondsRemaining(s.now())
}
