package core

import "math"

// Totals sums the nutrients of entries. Missing fields decode as zero, so
// the sum never needs to inspect individual entries for presence.
func Totals(entries []FoodEntry) Nutrients {
	var t Nutrients
	for _, e := range entries {
		t = t.Add(e.Nutrients)
	}
	return t
}

func (n Nutrients) Add(o Nutrients) Nutrients {
	return Nutrients{
		Calories: n.Calories + o.Calories,
		Carbs:    n.Carbs + o.Carbs,
		Protein:  n.Protein + o.Protein,
		Fat:      n.Fat + o.Fat,
	}
}

// Scale multiplies every field by ratio without rounding.
func (n Nutrients) Scale(ratio float64) Nutrients {
	return Nutrients{
		Calories: n.Calories * ratio,
		Carbs:    n.Carbs * ratio,
		Protein:  n.Protein * ratio,
		Fat:      n.Fat * ratio,
	}
}

// Rounded rounds calories to a whole number and macros to one decimal.
func (n Nutrients) Rounded() Nutrients {
	return Nutrients{
		Calories: math.Round(n.Calories),
		Carbs:    RoundMacro(n.Carbs),
		Protein:  RoundMacro(n.Protein),
		Fat:      RoundMacro(n.Fat),
	}
}

// RoundMacro rounds grams to one decimal place.
func RoundMacro(v float64) float64 { return math.Round(v*10) / 10 }

// PercentOfGoal returns round(total/goal*100) bounded to 0..100. A
// non-positive goal yields 0.
func PercentOfGoal(total, goal float64) int {
	if goal <= 0 || math.IsNaN(total) || math.IsNaN(goal) {
		return 0
	}
	p := math.Round(total / goal * 100)
	switch {
	case p > 100:
		return 100
	case p < 0:
		return 0
	}
	return int(p)
}

// CategoryTotals returns one subtotal per category in fixed order.
func (d DayRecord) CategoryTotals() []CategoryTotal {
	out := make([]CategoryTotal, 0, len(Categories))
	for _, c := range Categories {
		entries := d.Entries(c)
		out = append(out, CategoryTotal{Category: c, Totals: Totals(entries), Count: len(entries)})
	}
	return out
}
