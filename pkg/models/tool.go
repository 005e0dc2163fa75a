package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tool is an inventory item that can be lent out
type Tool struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	QuantityTotal     int       `json:"quantity_total"`
	QuantityAvailable int       `json:"quantity_available"`
	WeightValue       *float64  `json:"weight_value"`
	WeightUnit        string    `json:"weight_unit"`
	Width             *float64  `json:"width"`
	Height            *float64  `json:"height"`
	Area              *float64  `json:"area"`
	Diameter          *string   `json:"diameter"`
	Type              *string   `json:"type"`
	Condition         *string   `json:"condition"`
	ImageURL          *string   `json:"image_url"`
	IconsURL          *string   `json:"icons_url"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// StockStatus describes the available quantity in the wording used by the frontend
func (t Tool) StockStatus() string {
	qty := t.QuantityAvailable
	switch {
	case qty <= 0:
		return "brak w magazynie"
	case qty == 1:
		return "w magazynie 1 sztuka"
	case qty%10 >= 2 && qty%10 <= 4 && (qty < 12 || qty > 14):
		return fmt.Sprintf("w magazynie %d sztuki", qty)
	}
	return fmt.Sprintf("w magazynie %d sztuk", qty)
}

// Loaned returns how many items are currently out on loan
func (t Tool) Loaned() int {
	return t.QuantityTotal - t.QuantityAvailable
}

// MarshalJSON adds the computed status to the serialized tool
func (t Tool) MarshalJSON() ([]byte, error) {
	type plain Tool
	return json.Marshal(struct {
		plain
		Status string `json:"status"`
	}{
		plain:  plain(t),
		Status: t.StockStatus(),
	})
}

// ToolCreate is the payload for creating a tool
type ToolCreate struct {
	Name          string   `json:"name"`
	QuantityTotal *int     `json:"quantity_total"`
	WeightValue   *float64 `json:"weight_value"`
	WeightUnit    string   `json:"weight_unit"`
	Width         *float64 `json:"width"`
	Height        *float64 `json:"height"`
	Area          *float64 `json:"area"`
	Diameter      *string  `json:"diameter"`
	Type          *string  `json:"type"`
	Status        *string  `json:"status"`
	Condition     *string  `json:"condition"`
	ImageURL      *string  `json:"image_url"`
	IconsURL      *string  `json:"icons_url"`
}

// ToolUpdate holds the optional fields of a tool update.
// Status is accepted for compatibility and ignored.
type ToolUpdate struct {
	Name          *string  `json:"name"`
	QuantityTotal *int     `json:"quantity_total"`
	WeightValue   *float64 `json:"weight_value"`
	WeightUnit    *string  `json:"weight_unit"`
	Width         *float64 `json:"width"`
	Height        *float64 `json:"height"`
	Area          *float64 `json:"area"`
	Diameter      *string  `json:"diameter"`
	Type          *string  `json:"type"`
	Status        *string  `json:"status"`
	Condition     *string  `json:"condition"`
	ImageURL      *string  `json:"image_url"`
	IconsURL      *string  `json:"icons_url"`
}

// ToolLoan records one item of a tool lent to a user
type ToolLoan struct {
	ID         int64      `json:"id"`
	ToolID     int64      `json:"tool_id"`
	UserID     uuid.UUID  `json:"user_id"`
	LoanDate   time.Time  `json:"loan_date"`
	ReturnDate *time.Time `json:"return_date"`
	Returned   bool       `json:"returned"`
}

// ToolWeight is a manual weight measurement of a tool
type ToolWeight struct {
	ID          int64      `json:"id"`
	ToolID      int64      `json:"tool_id"`
	WeightValue float64    `json:"weight_value"`
	MeasuredAt  time.Time  `json:"measured_at"`
	MeasuredBy  *uuid.UUID `json:"measured_by"`
}

// UnreturnedLoanDetail joins an open loan with the tool dimensions used for recognition
type UnreturnedLoanDetail struct {
	ToolID int64    `json:"tool_id"`
	LoanID int64    `json:"loan_id"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
	Area   *float64 `json:"area"`
	Mass   *float64 `json:"mass"`
}
