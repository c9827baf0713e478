package models

import (
	"fmt"
	"strings"
)

// ItemKey identifies a vehicle model-year in the price history and listing tables
type ItemKey struct {
	Make  string `json:"make" form:"make" validate:"required"`
	Model string `json:"model" form:"model" validate:"required"`
	Year  int    `json:"year" form:"year" validate:"required,gte=1900,lte=2100"`
}

// Normalize lower-cases and trims make and model so lookups match the stored form
func (k ItemKey) Normalize() ItemKey {
	return ItemKey{
		Make:  strings.ToLower(strings.TrimSpace(k.Make)),
		Model: strings.ToLower(strings.TrimSpace(k.Model)),
		Year:  k.Year,
	}
}

func (k ItemKey) String() string {
	n := k.Normalize()
	return fmt.Sprintf("%s|%s|%d", n.Make, n.Model, n.Year)
}

// VehicleQuery is an item plus the listing attributes a buyer asks about
type VehicleQuery struct {
	ItemKey
	Mileage   int    `json:"mileage" form:"mileage" validate:"gte=0"`
	Condition string `json:"condition" form:"condition" validate:"required"`
	Region    string `json:"region" form:"region" validate:"required"`
}

// Normalize returns a copy with every string attribute lower-cased and trimmed
func (q VehicleQuery) Normalize() VehicleQuery {
	return VehicleQuery{
		ItemKey:   q.ItemKey.Normalize(),
		Mileage:   q.Mileage,
		Condition: strings.ToLower(strings.TrimSpace(q.Condition)),
		Region:    strings.ToLower(strings.TrimSpace(q.Region)),
	}
}

// Question renders the natural-language prompt handed to the orchestrator
func (q VehicleQuery) Question() string {
	return fmt.Sprintf("Should I buy a %d %s %s with %s miles in %s condition in %s?",
		q.Year, q.Make, q.Model, GroupThousands(q.Mileage), q.Condition, q.Region)
}

// GroupThousands formats n with comma thousand separators.
func GroupThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + GroupThousands(-n)
	}
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
