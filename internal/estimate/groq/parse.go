package groq

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"kcal/internal/core"
	"kcal/internal/estimate"
)

var ErrNoJSON = errors.New("no JSON object in model output")

// extractJSON returns the text between the first '{' and the last '}'.
// Models often wrap the object in prose or code fences.
func extractJSON(content string) (string, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return content[start : end+1], nil
}

// number accepts JSON numbers and numeric strings. Anything else, null
// included, leaves it unset.
type number struct {
	v   float64
	set bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	*n = number{}
	if string(b) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = number{v: f, set: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		s = strings.TrimSpace(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "g"))
		if f, err := parseFloat(s); err == nil {
			*n = number{v: f, set: true}
		}
	}
	return nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

// known reports whether the field carried a usable non-negative value.
func (n number) known() bool {
	return n.set && !math.IsNaN(n.v) && !math.IsInf(n.v, 0) && n.v >= 0
}

func (n number) value() float64 {
	if !n.known() {
		return 0
	}
	return n.v
}

func parseInterpretation(content string) (estimate.Interpretation, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return estimate.Interpretation{}, err
	}
	var payload struct {
		Items []struct {
			Name   string `json:"name"`
			NameES string `json:"food_es"`
			Food   string `json:"food"`
			NameEN string `json:"name_en"`
			FoodEN string `json:"food_en"`
			Grams  number `json:"grams"`
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return estimate.Interpretation{}, fmt.Errorf("decode items: %w", err)
	}
	out := estimate.Interpretation{Items: make([]estimate.FoodItem, 0, len(payload.Items))}
	for _, it := range payload.Items {
		name := firstNonEmpty(it.Name, it.NameES, it.Food)
		if strings.TrimSpace(name) == "" {
			continue
		}
		out.Items = append(out.Items, estimate.FoodItem{
			Name:   strings.TrimSpace(name),
			NameEN: strings.TrimSpace(firstNonEmpty(it.NameEN, it.FoodEN)),
			Grams:  it.Grams.value(),
		})
	}
	return out, nil
}

func parseNutrients(content string) ([]estimate.NutrientProfile, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Foods []struct {
			Name    string `json:"name"`
			Kcal    number `json:"kcal"`
			Carbs   number `json:"carbs"`
			Protein number `json:"protein"`
			Fat     number `json:"fat"`
		} `json:"foods"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode foods: %w", err)
	}
	out := make([]estimate.NutrientProfile, 0, len(payload.Foods))
	for _, f := range payload.Foods {
		// A food without a single usable value is no answer; leaving it out
		// lets the caller fall back for that item.
		if !f.Kcal.known() && !f.Carbs.known() && !f.Protein.known() && !f.Fat.known() {
			continue
		}
		out = append(out, estimate.NutrientProfile{
			Name: strings.TrimSpace(f.Name),
			Per100g: core.Nutrients{
				Calories: f.Kcal.value(),
				Carbs:    f.Carbs.value(),
				Protein:  f.Protein.value(),
				Fat:      f.Fat.value(),
			},
		})
	}
	return out, nil
}

func parseLabel(content string) (estimate.LabelScan, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return estimate.LabelScan{}, err
	}
	var payload struct {
		Product string `json:"product"`
		Per     string `json:"per"`
		Kcal    number `json:"kcal"`
		Carbs   number `json:"carbs"`
		Protein number `json:"protein"`
		Fat     number `json:"fat"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return estimate.LabelScan{}, fmt.Errorf("decode label: %w", err)
	}
	scan := estimate.LabelScan{
		Product: strings.TrimSpace(payload.Product),
		Per:     strings.TrimSpace(payload.Per),
		Kcal:    payload.Kcal.value(),
		Carbs:   payload.Carbs.value(),
		Protein: payload.Protein.value(),
		Fat:     payload.Fat.value(),
	}
	if scan.Per == "" {
		scan.Per = core.DefaultPer
	}
	return scan, scan.Validate()
}
