package models

import (
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
)

// ProductModel is the persistence model for the Product domain entity.
type ProductModel struct {
	AggregateModel
	Name            shared.Translations   `gorm:"type:jsonb;not null"`
	Description     shared.Translations   `gorm:"type:jsonb"`
	Price           decimal.Decimal       `gorm:"type:decimal(10,2);not null"`
	DiscountedPrice *decimal.Decimal      `gorm:"type:decimal(10,2)"`
	Quantity        int                   `gorm:"not null;default:0"`
	Status          catalog.ProductStatus `gorm:"type:varchar(20);not null;default:'active';index"`
	AutoDeactivated bool                  `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Name:              m.Name,
		Description:       m.Description,
		Price:             m.Price,
		DiscountedPrice:   m.DiscountedPrice,
		Quantity:          m.Quantity,
		Status:            m.Status,
		AutoDeactivated:   m.AutoDeactivated,
	}
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.Name = p.Name
	m.Description = p.Description
	m.Price = p.Price
	m.DiscountedPrice = p.DiscountedPrice
	m.Quantity = p.Quantity
	m.Status = p.Status
	m.AutoDeactivated = p.AutoDeactivated
}

// ProductModelFromDomain creates a new persistence model from a domain Product entity.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}
