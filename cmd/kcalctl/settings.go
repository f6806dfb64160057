package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kcal/internal/core"
)

func (a *app) goalsCmd() *cobra.Command {
	var in core.GoalsInput
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Show or update the daily targets",
		Long: `Without flags the current targets are printed. Each flag is applied on
its own; a value that is not a positive number keeps the stored target.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			goals := a.journal.Goals()
			if in != (core.GoalsInput{}) {
				var err error
				if goals, err = a.journal.UpdateGoals(cmd.Context(), in); err != nil {
					return err
				}
			}
			return a.emit(goals, func(w io.Writer) {
				fmt.Fprintf(w, "Calories %d kcal\nCarbs    %d g\nProtein  %d g\nFat      %d g\n",
					goals.Calories, goals.Carbs, goals.Protein, goals.Fat)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Calories, "calories", "", "daily calories")
	f.StringVar(&in.Carbs, "carbs", "", "daily carbohydrates in grams")
	f.StringVar(&in.Protein, "protein", "", "daily protein in grams")
	f.StringVar(&in.Fat, "fat", "", "daily fat in grams")
	return cmd
}

func (a *app) calendarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calendar [year month]",
		Short: "Show a month with the days that have entries",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected no arguments or <year> <month>, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, _ := a.journal.Today().Date()
			if len(args) == 2 {
				y, err := strconv.Atoi(args[0])
				if err != nil || y < 1 || y > 9999 {
					return fmt.Errorf("invalid year %q", args[0])
				}
				m, err := strconv.Atoi(args[1])
				if err != nil || m < 1 || m > 12 {
					return fmt.Errorf("invalid month %q", args[1])
				}
				year, month = y, time.Month(m)
			}
			view, err := a.journal.Month(year, month)
			if err != nil {
				return err
			}
			return a.emit(view, func(w io.Writer) { printMonth(w, view) })
		},
	}
}

// printMonth draws a Sunday-first grid. Days with entries are marked with
// '*', today with brackets.
func printMonth(w io.Writer, view core.MonthView) {
	fmt.Fprintf(w, "%s %d\n", time.Month(view.Month), view.Year)
	fmt.Fprintln(w, " Su   Mo   Tu   We   Th   Fr   Sa")

	var b strings.Builder
	b.WriteString(strings.Repeat("     ", view.Weekday))
	col := view.Weekday
	for _, c := range view.Days {
		mark := " "
		if c.HasData {
			mark = "*"
		}
		if c.Today {
			fmt.Fprintf(&b, "[%2d]%s", c.Day, mark)
		} else {
			fmt.Fprintf(&b, " %2d%s ", c.Day, mark)
		}
		col++
		if col == 7 {
			fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
			b.Reset()
			col = 0
		}
	}
	if b.Len() > 0 {
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}

	fmt.Fprintf(w, "\n%d days logged, %s\n", view.Logged, formatKcal(view.Totals.Calories))
	for _, c := range view.Days {
		if c.HasData {
			fmt.Fprintf(w, "  %s  %s\n", c.Date, formatKcal(c.Calories))
		}
	}
}
