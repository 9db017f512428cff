package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Load is a freight shipment posted to the load board.
type Load struct {
	LoadID            string           `json:"load_id"`
	Origin            string           `json:"origin"`
	Destination       string           `json:"destination"`
	PickupAt          time.Time        `json:"pickup_datetime"`
	DeliveryAt        time.Time        `json:"delivery_datetime"`
	EquipmentType     string           `json:"equipment_type"`
	LoadboardRate     decimal.Decimal  `json:"loadboard_rate"`
	Notes             string           `json:"notes,omitempty"`
	Weight            int              `json:"weight,omitempty"`
	CommodityType     string           `json:"commodity_type"`
	NumOfPieces       int              `json:"num_of_pieces,omitempty"`
	Miles             int              `json:"miles,omitempty"`
	Dimensions        string           `json:"dimensions,omitempty"`
	IsAvailable       bool             `json:"is_available"`
	AssignedCarrierMC string           `json:"assigned_carrier_mc,omitempty"`
	FinalRate         *decimal.Decimal `json:"final_rate,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// LoadMatch narrows a load search to what a calling carrier can actually run.
type LoadMatch struct {
	EquipmentTypes   []string        `json:"equipment_types,omitempty"`
	MaxWeight        int             `json:"max_weight,omitempty"`
	MinRate          decimal.Decimal `json:"min_rate,omitempty"`
	MaxRate          decimal.Decimal `json:"max_rate,omitempty"`
	PickupWithinDays int             `json:"pickup_date_range,omitempty"`
}
