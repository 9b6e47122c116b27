// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: Base persistence models (BaseModel, AggregateModel)
//   - catalog.go: products, including stock and the auto-deactivation marker
//   - cart.go: cart_items
//   - order.go: orders and order_items, with provider correlation ids on the order row
package models

// All returns every model, in dependency order, for AutoMigrate in tests
func All() []any {
	return []any{&ProductModel{}, &CartItemModel{}, &OrderModel{}, &OrderItemModel{}}
}
