package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// OrderModel is the persistence model for the Order aggregate root.
// Payment correlation ids live on the order row.
type OrderModel struct {
	AggregateModel
	OrderNumber           string                  `gorm:"type:varchar(32);not null;uniqueIndex"`
	UserID                uuid.UUID               `gorm:"type:uuid;not null;index"`
	Status                order.FulfillmentStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	PaymentStatus         order.PaymentStatus     `gorm:"type:varchar(20);not null;index"`
	PaymentMethod         order.PaymentMethod     `gorm:"type:varchar(20);not null"`
	StripePaymentIntentID *string                 `gorm:"type:varchar(255);uniqueIndex"`
	PayPalPaymentID       *string                 `gorm:"column:paypal_payment_id;type:varchar(255);uniqueIndex"`
	CaptureRef            string                  `gorm:"type:varchar(255)"`
	RefundID              string                  `gorm:"type:varchar(255)"`
	TotalAmount           decimal.Decimal         `gorm:"type:decimal(10,2);not null"`
	City                  string                  `gorm:"type:varchar(255);not null"`
	Address               string                  `gorm:"type:varchar(255);not null"`
	BuildingNumber        string                  `gorm:"type:varchar(50);not null"`
	Notes                 string                  `gorm:"type:text"`
	Items                 []OrderItemModel        `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		BaseAggregateRoot: m.ToAggregateRoot(),
		OrderNumber:       m.OrderNumber,
		UserID:            m.UserID,
		Status:            m.Status,
		PaymentStatus:     m.PaymentStatus,
		PaymentMethod:     m.PaymentMethod,
		PaymentIntentID:   derefString(m.StripePaymentIntentID),
		PayPalPaymentID:   derefString(m.PayPalPaymentID),
		CaptureRef:        m.CaptureRef,
		RefundID:          m.RefundID,
		TotalAmount:       m.TotalAmount,
		DeliveryAddress:   valueobject.RestoreDeliveryAddress(m.City, m.Address, m.BuildingNumber),
		Notes:             m.Notes,
	}
	o.Items = make([]order.Item, len(m.Items))
	for i := range m.Items {
		o.Items[i] = *m.Items[i].ToDomain()
	}
	return o
}

// FromDomain populates the persistence model from a domain Order. Items are
// only copied when withItems is set; they are written once at creation.
func (m *OrderModel) FromDomain(o *order.Order, withItems bool) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.OrderNumber = o.OrderNumber
	m.UserID = o.UserID
	m.Status = o.Status
	m.PaymentStatus = o.PaymentStatus
	m.PaymentMethod = o.PaymentMethod
	m.StripePaymentIntentID = nilIfEmpty(o.PaymentIntentID)
	m.PayPalPaymentID = nilIfEmpty(o.PayPalPaymentID)
	m.CaptureRef = o.CaptureRef
	m.RefundID = o.RefundID
	m.TotalAmount = o.TotalAmount
	m.City = o.DeliveryAddress.City()
	m.Address = o.DeliveryAddress.Address()
	m.BuildingNumber = o.DeliveryAddress.BuildingNumber()
	m.Notes = o.Notes
	m.Items = nil
	if withItems {
		m.Items = make([]OrderItemModel, len(o.Items))
		for i := range o.Items {
			m.Items[i] = *OrderItemModelFromDomain(&o.Items[i])
		}
	}
}

// OrderModelFromDomain creates a new persistence model including items
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o, true)
	return m
}

// OrderItemModel is the persistence model for an order line
type OrderItemModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity  int             `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	LineTotal decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	CreatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the persistence model to a domain order item
func (m *OrderItemModel) ToDomain() *order.Item {
	return &order.Item{
		ID:        m.ID,
		OrderID:   m.OrderID,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		Price:     m.Price,
		LineTotal: m.LineTotal,
		CreatedAt: m.CreatedAt,
	}
}

// OrderItemModelFromDomain creates a new persistence model from an order item
func OrderItemModelFromDomain(i *order.Item) *OrderItemModel {
	return &OrderItemModel{
		ID:        i.ID,
		OrderID:   i.OrderID,
		ProductID: i.ProductID,
		Quantity:  i.Quantity,
		Price:     i.Price,
		LineTotal: i.LineTotal,
		CreatedAt: i.CreatedAt,
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
