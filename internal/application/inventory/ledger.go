package inventory

import (
	"bytes"
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Reservation is a quantity of one product held for an order
type Reservation struct {
	ProductID uuid.UUID
	Quantity  int
}

// LedgerConfig configures a Ledger
type LedgerConfig struct {
	Policy catalog.ReactivationPolicy
	Logger *zap.Logger
}

// Ledger is the only writer of product stock. Every method takes the product
// repository of the caller's transaction, so stock moves commit or roll back
// together with the order rows.
type Ledger struct {
	policy catalog.ReactivationPolicy
	logger *zap.Logger
}

// NewLedger creates a new Ledger
func NewLedger(cfg LedgerConfig) *Ledger {
	if cfg.Policy == "" {
		cfg.Policy = catalog.DefaultReactivationPolicy
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Ledger{policy: cfg.Policy, logger: cfg.Logger}
}

// Policy returns the configured reactivation policy
func (l *Ledger) Policy() catalog.ReactivationPolicy {
	return l.policy
}

// Reserve decrements stock under a row lock
func (l *Ledger) Reserve(ctx context.Context, products catalog.ProductRepository, productID uuid.UUID, qty int) (*catalog.Product, error) {
	if qty < 1 {
		return nil, shared.NewValidationError("quantity", "Quantity must be at least 1")
	}
	product, err := products.FindByIDForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := product.Decrement(qty); err != nil {
		return nil, err
	}
	if err := products.Save(ctx, product); err != nil {
		return nil, err
	}
	if product.AutoDeactivated && product.Quantity == 0 {
		l.logger.Info("product sold out and deactivated",
			zap.String("product_id", productID.String()))
	}
	return product, nil
}

// Release increments stock and applies the reactivation policy. A product
// that no longer exists is skipped.
func (l *Ledger) Release(ctx context.Context, products catalog.ProductRepository, productID uuid.UUID, qty int) error {
	if qty < 1 {
		return shared.NewValidationError("quantity", "Quantity must be at least 1")
	}
	product, err := products.FindByIDForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			l.logger.Warn("release skipped for missing product",
				zap.String("product_id", productID.String()),
				zap.Int("quantity", qty))
			return nil
		}
		return err
	}
	if err := product.Restock(qty, l.policy); err != nil {
		return err
	}
	return products.Save(ctx, product)
}

// ReserveAll reserves every line, locking rows in ascending product id order
// so concurrent multi-line checkouts cannot deadlock. The first failure
// aborts; the caller's transaction discards earlier decrements.
func (l *Ledger) ReserveAll(ctx context.Context, products catalog.ProductRepository, lines []Reservation) error {
	for _, r := range Normalize(lines) {
		if _, err := l.Reserve(ctx, products, r.ProductID, r.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseAll releases every line in ascending product id order
func (l *Ledger) ReleaseAll(ctx context.Context, products catalog.ProductRepository, lines []Reservation) error {
	for _, r := range Normalize(lines) {
		if err := l.Release(ctx, products, r.ProductID, r.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Normalize merges lines for the same product and sorts by product id
func Normalize(lines []Reservation) []Reservation {
	merged := make(map[uuid.UUID]int, len(lines))
	for _, r := range lines {
		merged[r.ProductID] += r.Quantity
	}
	out := make([]Reservation, 0, len(merged))
	for id, qty := range merged {
		out = append(out, Reservation{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ProductID[:], out[j].ProductID[:]) < 0
	})
	return out
}
