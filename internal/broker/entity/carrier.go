package entity

import "time"

// Carrier is a trucking company known to the brokerage, keyed by its MC
// number. Verification fields mirror what the FMCSA lookup returns; nothing
// beyond pass/fail status is modeled.
type Carrier struct {
	MCNumber        string     `json:"mc_number"`
	CompanyName     string     `json:"company_name"`
	DOTNumber       string     `json:"dot_number,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	Email           string     `json:"email,omitempty"`
	Address         string     `json:"address,omitempty"`
	IsVerified      bool       `json:"is_verified"`
	FMCSAStatus     string     `json:"fmcsa_status,omitempty"`
	LastVerifiedAt  *time.Time `json:"last_verified_at,omitempty"`
	TotalLoads      int        `json:"total_loads"`
	SuccessfulLoads int        `json:"successful_loads"`
	EquipmentTypes  []string   `json:"equipment_types,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastContactAt   *time.Time `json:"last_contact_at,omitempty"`
}
