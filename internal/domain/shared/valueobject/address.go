package valueobject

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Field limits for a delivery address
const (
	MaxCityLength           = 255
	MaxAddressLength        = 255
	MaxBuildingNumberLength = 50
)

// DeliveryAddress is the shipping destination captured at checkout.
// It is immutable once attached to an order.
type DeliveryAddress struct {
	city           string
	address        string
	buildingNumber string
}

// NewDeliveryAddress trims and validates all three fields; each is required.
func NewDeliveryAddress(city, address, buildingNumber string) (DeliveryAddress, error) {
	city = strings.TrimSpace(city)
	address = strings.TrimSpace(address)
	buildingNumber = strings.TrimSpace(buildingNumber)

	if err := validateField("city", city, MaxCityLength); err != nil {
		return DeliveryAddress{}, err
	}
	if err := validateField("address", address, MaxAddressLength); err != nil {
		return DeliveryAddress{}, err
	}
	if err := validateField("building_number", buildingNumber, MaxBuildingNumberLength); err != nil {
		return DeliveryAddress{}, err
	}

	return DeliveryAddress{
		city:           city,
		address:        address,
		buildingNumber: buildingNumber,
	}, nil
}

// RestoreDeliveryAddress rebuilds an address from storage without validation
func RestoreDeliveryAddress(city, address, buildingNumber string) DeliveryAddress {
	return DeliveryAddress{city: city, address: address, buildingNumber: buildingNumber}
}

func (a DeliveryAddress) City() string           { return a.city }
func (a DeliveryAddress) Address() string        { return a.address }
func (a DeliveryAddress) BuildingNumber() string { return a.buildingNumber }

// IsEmpty reports whether no field is set
func (a DeliveryAddress) IsEmpty() bool {
	return a.city == "" && a.address == "" && a.buildingNumber == ""
}

// String returns a single-line rendering, building number first
func (a DeliveryAddress) String() string {
	if a.IsEmpty() {
		return ""
	}
	return fmt.Sprintf("%s %s, %s", a.buildingNumber, a.address, a.city)
}

// FieldError names the address field that failed validation
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validateField(name, value string, max int) error {
	if value == "" {
		return &FieldError{Field: name, Message: "is required"}
	}
	if utf8.RuneCountInString(value) > max {
		return &FieldError{Field: name, Message: fmt.Sprintf("cannot exceed %d characters", max)}
	}
	return nil
}
