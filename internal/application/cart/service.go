package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// DraftLine is one priced, stock-checked cart line
type DraftLine struct {
	ProductID uuid.UUID
	Name      shared.Translations
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	// Available is the product stock at pricing time
	Available int
}

// Draft is the priced cart that checkout turns into an order
type Draft struct {
	UserID uuid.UUID
	Lines  []DraftLine
	Total  decimal.Decimal
}

// IsEmpty reports whether the draft has no lines
func (d *Draft) IsEmpty() bool {
	return len(d.Lines) == 0
}

// ServiceConfig configures a Service
type ServiceConfig struct {
	Carts    cart.Repository
	Products catalog.ProductRepository
	Logger   *zap.Logger
}

// Service manages cart lines and prices carts for checkout
type Service struct {
	carts    cart.Repository
	products catalog.ProductRepository
	logger   *zap.Logger
}

// NewService creates a new cart Service
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{carts: cfg.Carts, products: cfg.Products, logger: cfg.Logger}
}

// PriceCart prices the user's cart and fails if any line exceeds stock
func (s *Service) PriceCart(ctx context.Context, userID uuid.UUID) (*Draft, error) {
	return PriceCart(ctx, s.carts, s.products, userID)
}

// PriceCart prices a cart using the given repositories, which may be bound
// to a transaction. It fails with ErrEmptyCart when there are no lines and
// with ErrInsufficientStock naming the first product that cannot be served.
func PriceCart(ctx context.Context, carts cart.Repository, products catalog.ProductRepository, userID uuid.UUID) (*Draft, error) {
	draft, err := price(ctx, carts, products, userID)
	if err != nil {
		return nil, err
	}
	if draft.IsEmpty() {
		return nil, shared.ErrEmptyCart
	}
	for _, line := range draft.Lines {
		if line.Quantity > line.Available {
			return nil, shared.NewInsufficientStockError(line.Name.Get(shared.DefaultLocale))
		}
	}
	return draft, nil
}

// List returns the priced cart without failing on stock shortfalls
func (s *Service) List(ctx context.Context, userID uuid.UUID) (*Draft, error) {
	return price(ctx, s.carts, s.products, userID)
}

func price(ctx context.Context, carts cart.Repository, products catalog.ProductRepository, userID uuid.UUID) (*Draft, error) {
	lines, err := carts.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	draft := &Draft{UserID: userID, Total: decimal.Zero}
	if len(lines) == 0 {
		return draft, nil
	}

	ids := make([]uuid.UUID, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	found, err := products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*catalog.Product, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}

	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, shared.ErrNotFound.WithMessage("Product in cart no longer exists").WithField(l.ProductID.String())
		}
		available := p.Quantity
		if !p.IsActive() {
			available = 0
		}
		unit := p.EffectivePrice()
		lineTotal := valueobject.LineTotal(unit, l.Quantity)
		draft.Lines = append(draft.Lines, DraftLine{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  l.Quantity,
			UnitPrice: unit,
			LineTotal: lineTotal,
			Available: available,
		})
		draft.Total = draft.Total.Add(lineTotal)
	}
	return draft, nil
}

// AddItem adds qty of a product, merging into an existing line
func (s *Service) AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*cart.Line, error) {
	if qty < 1 {
		return nil, shared.NewValidationError("quantity", "Quantity must be at least 1")
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive() {
		return nil, shared.ErrInvalidInput.WithMessage("Product is not available").WithField(product.DisplayName())
	}

	line, err := s.carts.FindLine(ctx, userID, productID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		line = nil
	case err != nil:
		return nil, err
	}

	total := qty
	if line != nil {
		total += line.Quantity
	}
	if !product.HasStock(total) {
		return nil, shared.NewInsufficientStockError(product.DisplayName())
	}

	if line == nil {
		line, err = cart.NewLine(userID, productID, qty)
		if err != nil {
			return nil, err
		}
	} else if err := line.SetQuantity(total); err != nil {
		return nil, err
	}

	if err := s.carts.Save(ctx, line); err != nil {
		return nil, err
	}
	s.logger.Debug("cart line saved",
		zap.String("user_id", userID.String()),
		zap.String("product_id", productID.String()),
		zap.Int("quantity", line.Quantity))
	return line, nil
}

// UpdateItem replaces the quantity of an existing line
func (s *Service) UpdateItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*cart.Line, error) {
	if qty < 1 {
		return nil, shared.NewValidationError("quantity", "Quantity must be at least 1")
	}
	line, err := s.carts.FindLine(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.HasStock(qty) {
		return nil, shared.NewInsufficientStockError(product.DisplayName())
	}
	if err := line.SetQuantity(qty); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, line); err != nil {
		return nil, err
	}
	return line, nil
}

// RemoveItem deletes a line
func (s *Service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	return s.carts.Delete(ctx, userID, productID)
}

// Clear empties the user's cart
func (s *Service) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.carts.DeleteByUser(ctx, userID)
}
