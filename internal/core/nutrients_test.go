package core

import (
	"math"
	"testing"
)

func TestTotalsAdditivity(t *testing.T) {
	d := NewDayRecord()
	_ = d.Add(Breakfast, FoodEntry{Label: "a", Nutrients: Nutrients{Calories: 100, Carbs: 10.5, Protein: 2, Fat: 1}})
	_ = d.Add(Lunch, FoodEntry{Label: "b", Nutrients: Nutrients{Calories: 350, Carbs: 40, Protein: 20.2, Fat: 9}})
	_ = d.Add(Lunch, FoodEntry{Label: "c"})
	_ = d.Add(Other, FoodEntry{Label: "d", Nutrients: Nutrients{Calories: 80, Fat: 8}})

	all := Totals(d.All())
	var sum Nutrients
	for _, ct := range d.CategoryTotals() {
		sum = sum.Add(ct.Totals)
	}
	if !closeTo(all, sum) {
		t.Fatalf("totals(all) = %+v, sum of categories = %+v", all, sum)
	}
	if all.Calories != 530 {
		t.Fatalf("Calories = %v, want 530", all.Calories)
	}
}

func TestTotalsEmpty(t *testing.T) {
	if got := Totals(nil); got != (Nutrients{}) {
		t.Fatalf("Totals(nil) = %+v", got)
	}
}

func TestPercentOfGoal(t *testing.T) {
	cases := []struct {
		total, goal float64
		want        int
	}{
		{0, 2000, 0},
		{1000, 2000, 50},
		{1999, 2000, 100},
		{2000, 2000, 100},
		{5000, 2000, 100},
		{12.4, 100, 12},
		{12.5, 100, 13},
		{10, 0, 0},
	}
	for _, tc := range cases {
		if got := PercentOfGoal(tc.total, tc.goal); got != tc.want {
			t.Errorf("PercentOfGoal(%v, %v) = %d, want %d", tc.total, tc.goal, got, tc.want)
		}
	}
}

func TestPercentOfGoalMonotonic(t *testing.T) {
	prev := -1
	for total := 0.0; total <= 3000; total += 7.3 {
		p := PercentOfGoal(total, 2000)
		if p < prev {
			t.Fatalf("not monotonic at %v: %d < %d", total, p, prev)
		}
		if p > 100 {
			t.Fatalf("exceeds cap at %v: %d", total, p)
		}
		prev = p
	}
}

func TestNutrientsRounded(t *testing.T) {
	n := Nutrients{Calories: 247.5, Carbs: 0.04, Protein: 46.56, Fat: 5.449}.Rounded()
	want := Nutrients{Calories: 248, Carbs: 0, Protein: 46.6, Fat: 5.4}
	if !closeTo(n, want) {
		t.Fatalf("Rounded() = %+v, want %+v", n, want)
	}
}

func closeTo(a, b Nutrients) bool {
	const eps = 1e-9
	return math.Abs(a.Calories-b.Calories) < eps &&
		math.Abs(a.Carbs-b.Carbs) < eps &&
		math.Abs(a.Protein-b.Protein) < eps &&
		math.Abs(a.Fat-b.Fat) < eps
}
