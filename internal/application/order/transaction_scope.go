package order

import (
	"context"

	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/order"
)

// TransactionScope runs a function inside one database transaction.
// If the function returns an error, the transaction is rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides repositories that share one transaction.
// Checkout, reconciliation transitions and admin actions touch orders, stock
// and carts through these so they commit or roll back together.
type TransactionalRepositories interface {
	Products() catalog.ProductRepository
	Orders() order.Repository
	Carts() cart.Repository
}
