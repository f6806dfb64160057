package openfoodfacts

import (
	"math"
	"strconv"
	"strings"

	"kcal/internal/core"
)

// product is the subset of a search hit we read.
type product struct {
	ProductName string         `json:"product_name"`
	Brands      string         `json:"brands"`
	ServingSize string         `json:"serving_size"`
	Nutriments  map[string]any `json:"nutriments"`
}

type searchResponse struct {
	Count    int       `json:"count"`
	Products []product `json:"products"`
}

// hasKcal100g reports whether energy per 100g is present.
func (p product) hasKcal100g() bool {
	_, ok := extractFloat(p.Nutriments, "energy-kcal_100g")
	return ok
}

// kcal100g prefers energy-kcal_100g, then energy-kcal, then energy-kj_100g
// converted at 4.184 kJ/kcal.
func (p product) kcal100g() float64 {
	if v, ok := extractFloat(p.Nutriments, "energy-kcal_100g"); ok {
		return bounded(v, 10000)
	}
	if v, ok := extractFloat(p.Nutriments, "energy-kcal"); ok {
		return bounded(v, 10000)
	}
	if v, ok := extractFloat(p.Nutriments, "energy-kj_100g"); ok {
		return bounded(v/4.184, 10000)
	}
	return 0
}

func (p product) per100g() core.Nutrients {
	macro := func(key string) float64 {
		v, _ := extractFloat(p.Nutriments, key)
		return bounded(v, 100)
	}
	return core.Nutrients{
		Calories: p.kcal100g(),
		Carbs:    macro("carbohydrates_100g"),
		Protein:  macro("proteins_100g"),
		Fat:      macro("fat_100g"),
	}
}

// bounded returns v when it lies in [0, max], otherwise 0.
func bounded(v, max float64) float64 {
	if math.IsNaN(v) || v < 0 || v > max {
		return 0
	}
	return v
}

// extractFloat coerces a nutriments value to float64.
func extractFloat(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(x), ",", "."), 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}
