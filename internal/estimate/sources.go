// Package estimate turns the output of food-estimation sources into
// canonical ledger entries.
package estimate

import (
	"context"
	"encoding/base64"
	"strings"

	"kcal/internal/core"
)

// Provenance tags recorded in FoodEntry.Brand.
const (
	SourceAI            = "AI"
	SourceOpenFoodFacts = "OpenFoodFacts"
	SourceDefault       = "Default profile"
	SourceLabel         = "Scanned label"
	SourceSaved         = "Saved product"
	SourceManual        = "Manual"
)

type (
	// FoodItem is one food identified in free text. Grams is either the
	// amount the user stated or a typical-portion estimate; zero means
	// unknown.
	FoodItem struct {
		Name   string  `json:"name"`
		NameEN string  `json:"name_en,omitempty"`
		Grams  float64 `json:"grams"`
	}

	Interpretation struct {
		Items []FoodItem `json:"items"`
	}

	// NutrientProfile holds per-100g values for a named food.
	NutrientProfile struct {
		Name    string         `json:"name"`
		Per100g core.Nutrients `json:"per_100g"`
	}

	// LabelScan is one parsed nutrition panel. Values are at the reference
	// amount Per, expected to be "100g".
	LabelScan struct {
		Product string  `json:"product"`
		Per     string  `json:"per"`
		Kcal    float64 `json:"kcal"`
		Carbs   float64 `json:"carbs"`
		Protein float64 `json:"protein"`
		Fat     float64 `json:"fat"`
	}

	// FoodMatch is a structured database hit, per 100g.
	FoodMatch struct {
		Name    string         `json:"name"`
		Brand   string         `json:"brand"`
		Per100g core.Nutrients `json:"per_100g"`
	}

	// Image is an encoded photo of a nutrition label.
	Image struct {
		Data      []byte
		MediaType string
	}
)

// Collaborator contracts. Implementations validate their payloads before
// returning, so callers never re-check optional fields.
type (
	Interpreter interface {
		InterpretFoods(ctx context.Context, text string) (Interpretation, error)
	}

	// NutrientLookup resolves names to per-100g profiles. Results may be
	// partial; missing foods are simply absent.
	NutrientLookup interface {
		LookupNutrients(ctx context.Context, names []string) ([]NutrientProfile, error)
	}

	LabelScanner interface {
		ScanLabel(ctx context.Context, img Image) (LabelScan, error)
	}

	// FoodFinder returns nil, nil when nothing matches.
	FoodFinder interface {
		FoodLookupByName(ctx context.Context, term string) (*FoodMatch, error)
	}
)

// DataURL encodes the image for transports that take inline data URLs.
func (img Image) DataURL() string {
	mt := img.MediaType
	if mt == "" {
		mt = "image/jpeg"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Profile returns the scan's per-reference values.
func (s LabelScan) Profile() core.Nutrients {
	return core.Nutrients{Calories: s.Kcal, Carbs: s.Carbs, Protein: s.Protein, Fat: s.Fat}.Sanitize()
}

// PerHundred reports whether the panel's reference amount is 100 g/ml.
// Scaling always assumes it is; callers may warn when it is not.
func (s LabelScan) PerHundred() bool { return core.PerHundred(s.Per) }

// Validate rejects scans that carry no usable nutrition data.
func (s LabelScan) Validate() error {
	n := core.Nutrients{Calories: s.Kcal, Carbs: s.Carbs, Protein: s.Protein, Fat: s.Fat}
	if n != n.Sanitize() {
		return core.ScanError("label values must be non-negative numbers", nil)
	}
	if n == (core.Nutrients{}) {
		return core.ScanError("no nutrition values found on label", nil)
	}
	return nil
}

// ProductName returns the scanned name or a placeholder.
func (s LabelScan) ProductName() string {
	if name := strings.TrimSpace(s.Product); name != "" {
		return name
	}
	return "Scanned product"
}

// AsProduct converts the scan into a catalog item.
func (s LabelScan) AsProduct() core.Product {
	per := strings.TrimSpace(s.Per)
	if per == "" {
		per = core.DefaultPer
	}
	return core.Product{
		Name:    strings.TrimSpace(s.Product),
		Kcal:    s.Kcal,
		Carbs:   s.Carbs,
		Protein: s.Protein,
		Fat:     s.Fat,
		Per:     per,
	}
}
