package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Goals are the daily nutrition targets.
type Goals struct {
	Calories int `json:"calories"`
	Carbs    int `json:"carbs"`
	Protein  int `json:"protein"`
	Fat      int `json:"fat"`
}

// GoalsInput is raw user input for a goals update. Each field is parsed
// independently.
type GoalsInput struct {
	Calories string `json:"calories"`
	Carbs    string `json:"carbs"`
	Protein  string `json:"protein"`
	Fat      string `json:"fat"`
}

var ErrInvalidGoals = errors.New("invalid goals")

func DefaultGoals() Goals {
	return Goals{Calories: 2000, Carbs: 250, Protein: 100, Fat: 65}
}

func (g Goals) Validate() error {
	if g.Calories <= 0 || g.Carbs <= 0 || g.Protein <= 0 || g.Fat <= 0 {
		return ErrInvalidGoals
	}
	return nil
}

// Normalize fills non-positive fields from the defaults.
func (g Goals) Normalize() Goals {
	d := DefaultGoals()
	if g.Calories <= 0 {
		g.Calories = d.Calories
	}
	if g.Carbs <= 0 {
		g.Carbs = d.Carbs
	}
	if g.Protein <= 0 {
		g.Protein = d.Protein
	}
	if g.Fat <= 0 {
		g.Fat = d.Fat
	}
	return g
}

// Apply parses in against g. A field that is empty, non-numeric, not
// positive or larger than maxGoal keeps its current value; an update is
// never rejected.
func (g Goals) Apply(in GoalsInput) Goals {
	return Goals{
		Calories: parseGoalField(in.Calories, g.Calories),
		Carbs:    parseGoalField(in.Carbs, g.Carbs),
		Protein:  parseGoalField(in.Protein, g.Protein),
		Fat:      parseGoalField(in.Fat, g.Fat),
	}
}

// Progress computes goal-relative percentages for totals.
func (g Goals) Progress(t Nutrients) Progress {
	return Progress{
		Calories: PercentOfGoal(t.Calories, float64(g.Calories)),
		Carbs:    PercentOfGoal(t.Carbs, float64(g.Carbs)),
		Protein:  PercentOfGoal(t.Protein, float64(g.Protein)),
		Fat:      PercentOfGoal(t.Fat, float64(g.Fat)),
	}
}

// maxGoal caps a single target so the conversion to int stays exact on
// every platform.
const maxGoal = math.MaxInt32

// parseGoalField reads an integer target, truncating any fractional part.
func parseGoalField(s string, prior int) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return prior
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v > maxGoal {
		return prior
	}
	n := int(math.Trunc(v))
	if n <= 0 {
		return prior
	}
	return n
}
