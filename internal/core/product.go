package core

import (
	"errors"
	"strings"
)

const (
	DefaultProductName = "Product"
	DefaultPer         = "100g"
)

var ErrEmptyProductName = errors.New("empty product name")

// Product is a saved catalog item. Nutrients are per reference amount Per,
// which is expected to be 100g.
type Product struct {
	ID      string  `json:"id"`
	Name    string  `json:"product"`
	Kcal    float64 `json:"kcal"`
	Carbs   float64 `json:"carbs"`
	Protein float64 `json:"protein"`
	Fat     float64 `json:"fat"`
	Per     string  `json:"per"`
}

// Profile returns the per-reference nutrient values.
func (p Product) Profile() Nutrients {
	return Nutrients{Calories: p.Kcal, Carbs: p.Carbs, Protein: p.Protein, Fat: p.Fat}.Sanitize()
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyProductName
	}
	n := Nutrients{Calories: p.Kcal, Carbs: p.Carbs, Protein: p.Protein, Fat: p.Fat}
	if n != n.Sanitize() {
		return &ValidationError{Field: "nutrients", Reason: "must be non-negative numbers"}
	}
	return nil
}

// PerHundred reports whether a reference-amount descriptor means 100 g or
// 100 ml. An empty descriptor counts as 100 g.
func PerHundred(per string) bool {
	s := strings.ToLower(strings.Join(strings.Fields(per), ""))
	switch s {
	case "", "100g", "100gr", "100ml", "100grams", "100gramos":
		return true
	}
	return false
}

// SameProductName compares catalog names ignoring case and outer spaces.
func SameProductName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
