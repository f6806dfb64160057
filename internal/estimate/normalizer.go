package estimate

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"kcal/internal/core"
)

// DefaultProfile stands in for any food whose nutrients could not be found.
var DefaultProfile = core.Nutrients{Calories: 100, Carbs: 15, Protein: 5, Fat: 3}

var ErrNoItems = errors.New("no food items to combine")

// ResolvedItem is a food item scaled to its grams.
type ResolvedItem struct {
	Name      string         `json:"name"`
	Grams     float64        `json:"grams"`
	Nutrients core.Nutrients `json:"nutrients"`
	Source    string         `json:"source"`
}

// Resolve scales a per-100g profile to the item's grams. Missing grams fall
// back to a 100 g portion.
func Resolve(item FoodItem, per100g core.Nutrients, source string) ResolvedItem {
	g := item.Grams
	if math.IsNaN(g) || math.IsInf(g, 0) || g <= 0 {
		g = core.DefaultPortionGrams
	}
	return ResolvedItem{
		Name:      strings.TrimSpace(item.Name),
		Grams:     g,
		Nutrients: scale(per100g, g),
		Source:    source,
	}
}

// Composite folds the items of one utterance into a single entry: labels
// "name (Xg)" joined with " + ", summed nutrients and grams, and the
// distinct sources joined in first-seen order.
func Composite(items []ResolvedItem) (core.FoodEntry, error) {
	if len(items) == 0 {
		return core.FoodEntry{}, ErrNoItems
	}
	labels := make([]string, 0, len(items))
	var sources []string
	seen := map[string]bool{}
	var totals core.Nutrients
	var grams float64
	for _, it := range items {
		labels = append(labels, fmt.Sprintf("%s (%sg)", it.Name, core.FormatGrams(it.Grams)))
		if !seen[it.Source] {
			seen[it.Source] = true
			sources = append(sources, it.Source)
		}
		totals = totals.Add(it.Nutrients)
		grams += it.Grams
	}
	return core.FoodEntry{
		Label:     strings.Join(labels, " + "),
		Nutrients: totals.Rounded(),
		Brand:     strings.Join(sources, " + "),
		Quantity:  grams,
	}, nil
}

// FromLabel scales a scanned panel to the consumed grams. The panel is
// treated as per 100 g regardless of its stated reference amount.
func FromLabel(scan LabelScan, grams float64) (core.FoodEntry, error) {
	if err := core.ValidateGrams(grams); err != nil {
		return core.FoodEntry{}, err
	}
	return core.FoodEntry{
		Label:     fmt.Sprintf("%s (%sg)", scan.ProductName(), core.FormatGrams(grams)),
		Nutrients: scale(scan.Profile(), grams),
		Brand:     SourceLabel,
		Quantity:  grams,
	}, nil
}

// FromProduct scales a saved catalog item to the consumed grams.
func FromProduct(p core.Product, grams float64) (core.FoodEntry, error) {
	if err := core.ValidateGrams(grams); err != nil {
		return core.FoodEntry{}, err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = core.DefaultProductName
	}
	return core.FoodEntry{
		Label:     fmt.Sprintf("%s (%sg)", name, core.FormatGrams(grams)),
		Nutrients: scale(p.Profile(), grams),
		Brand:     SourceSaved,
		Quantity:  grams,
	}, nil
}

// ManualInput carries final, already-scaled values typed by the user.
// Nil macros count as zero; label and calories are required.
type ManualInput struct {
	Label    string   `json:"label"`
	Brand    string   `json:"brand,omitempty"`
	Quantity float64  `json:"quantity,omitempty"`
	Calories *float64 `json:"calories"`
	Carbs    *float64 `json:"carbs,omitempty"`
	Protein  *float64 `json:"protein,omitempty"`
	Fat      *float64 `json:"fat,omitempty"`
}

// FromManual passes manual values through after validation.
func FromManual(in ManualInput) (core.FoodEntry, error) {
	label := strings.TrimSpace(in.Label)
	if label == "" {
		return core.FoodEntry{}, &core.ValidationError{Field: "label", Reason: "required"}
	}
	if in.Calories == nil {
		return core.FoodEntry{}, &core.ValidationError{Field: "calories", Reason: "required"}
	}
	brand := strings.TrimSpace(in.Brand)
	if brand == "" {
		brand = SourceManual
	}
	e := core.FoodEntry{
		Label: label,
		Nutrients: core.Nutrients{
			Calories: *in.Calories,
			Carbs:    deref(in.Carbs),
			Protein:  deref(in.Protein),
			Fat:      deref(in.Fat),
		},
		Brand:    brand,
		Quantity: in.Quantity,
	}
	if err := e.Validate(); err != nil {
		return core.FoodEntry{}, err
	}
	return e, nil
}

func scale(per100g core.Nutrients, grams float64) core.Nutrients {
	return per100g.Sanitize().Scale(grams / 100).Rounded()
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
