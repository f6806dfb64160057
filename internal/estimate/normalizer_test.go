package estimate

import (
	"errors"
	"testing"

	"kcal/internal/core"
)

func TestCompositeRiceAndChicken(t *testing.T) {
	rice := core.Nutrients{Calories: 130, Carbs: 28, Protein: 2.7, Fat: 0.3}
	chicken := core.Nutrients{Calories: 165, Carbs: 0, Protein: 31, Fat: 3.6}
	items := []ResolvedItem{
		Resolve(FoodItem{Name: "arroz", Grams: 80}, rice, SourceAI),
		Resolve(FoodItem{Name: "pollo", Grams: 150}, chicken, SourceAI),
	}

	e, err := Composite(items)
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	// 104 + 247.5 rounded per item (104 + 248).
	if e.Calories != 352 {
		t.Errorf("Calories = %v, want 352", e.Calories)
	}
	if e.Carbs != 22.4 || e.Protein != 48.7 || e.Fat != 5.6 {
		t.Errorf("macros = %+v", e.Nutrients)
	}
	if e.Label != "arroz (80g) + pollo (150g)" {
		t.Errorf("Label = %q", e.Label)
	}
	if e.Brand != "AI" {
		t.Errorf("Brand = %q", e.Brand)
	}
	if e.Quantity != 230 {
		t.Errorf("Quantity = %v", e.Quantity)
	}
}

func TestResolveDefaultsGrams(t *testing.T) {
	it := Resolve(FoodItem{Name: "pan"}, core.Nutrients{Calories: 265, Carbs: 49, Protein: 9, Fat: 3.2}, SourceAI)
	if it.Grams != 100 || it.Nutrients.Calories != 265 {
		t.Fatalf("Resolve() = %+v", it)
	}
}

func TestCompositeDistinctSources(t *testing.T) {
	items := []ResolvedItem{
		Resolve(FoodItem{Name: "a", Grams: 50}, DefaultProfile, SourceAI),
		Resolve(FoodItem{Name: "b", Grams: 50}, DefaultProfile, SourceDefault),
		Resolve(FoodItem{Name: "c", Grams: 50}, DefaultProfile, SourceAI),
	}
	e, _ := Composite(items)
	if e.Brand != "AI + Default profile" {
		t.Fatalf("Brand = %q", e.Brand)
	}
	if e.Calories != 150 {
		t.Fatalf("Calories = %v", e.Calories)
	}
}

func TestCompositeEmpty(t *testing.T) {
	if _, err := Composite(nil); !errors.Is(err, ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", err)
	}
}

func TestFromLabel(t *testing.T) {
	scan := LabelScan{Product: "Granola", Per: "100g", Kcal: 450, Carbs: 60, Protein: 10, Fat: 18}
	e, err := FromLabel(scan, 45)
	if err != nil {
		t.Fatalf("FromLabel: %v", err)
	}
	if e.Calories != 203 || e.Carbs != 27 || e.Protein != 4.5 || e.Fat != 8.1 {
		t.Errorf("nutrients = %+v", e.Nutrients)
	}
	if e.Label != "Granola (45g)" || e.Brand != SourceLabel || e.Quantity != 45 {
		t.Errorf("entry = %+v", e)
	}

	for _, g := range []float64{0, -10} {
		if _, err := FromLabel(scan, g); !errors.Is(err, core.ErrValidation) {
			t.Errorf("grams %v: expected validation error, got %v", g, err)
		}
	}
}

func TestFromLabelNonHundredBasisStillPer100g(t *testing.T) {
	scan := LabelScan{Product: "Cookie", Per: "per serving 30g", Kcal: 150}
	e, err := FromLabel(scan, 200)
	if err != nil {
		t.Fatal(err)
	}
	if e.Calories != 300 {
		t.Fatalf("Calories = %v, want 300", e.Calories)
	}
	if scan.PerHundred() {
		t.Fatal("PerHundred() = true for a serving basis")
	}
}

func TestFromProduct(t *testing.T) {
	p := core.Product{Name: "Hummus", Kcal: 166, Carbs: 14.3, Protein: 7.9, Fat: 9.6, Per: "100g"}
	e, err := FromProduct(p, 60)
	if err != nil {
		t.Fatalf("FromProduct: %v", err)
	}
	if e.Calories != 100 || e.Carbs != 8.6 || e.Protein != 4.7 || e.Fat != 5.8 {
		t.Errorf("nutrients = %+v", e.Nutrients)
	}
	if e.Brand != SourceSaved || e.Label != "Hummus (60g)" {
		t.Errorf("entry = %+v", e)
	}
}

func TestFromManual(t *testing.T) {
	kcal, fat := 250.0, 12.0
	e, err := FromManual(ManualInput{Label: " Sandwich ", Calories: &kcal, Fat: &fat})
	if err != nil {
		t.Fatalf("FromManual: %v", err)
	}
	if e.Label != "Sandwich" || e.Calories != 250 || e.Fat != 12 || e.Carbs != 0 || e.Brand != SourceManual {
		t.Fatalf("entry = %+v", e)
	}

	neg := -1.0
	bads := []ManualInput{
		{Label: "", Calories: &kcal},
		{Label: "x"},
		{Label: "x", Calories: &neg},
	}
	for i, in := range bads {
		if _, err := FromManual(in); err == nil {
			t.Errorf("case %d expected error", i)
		}
	}
}

func TestLabelScanValidate(t *testing.T) {
	if err := (LabelScan{Product: "x"}).Validate(); !errors.Is(err, core.ErrScan) {
		t.Fatalf("empty scan: expected ErrScan, got %v", err)
	}
	if err := (LabelScan{Kcal: 10}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}
