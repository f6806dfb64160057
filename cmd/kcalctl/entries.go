package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"kcal/internal/core"
	"kcal/internal/estimate"
	applog "kcal/internal/log"
	"kcal/internal/services"
)

func (a *app) dayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "day [date]",
		Short: "Show the entries and totals of a day (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.dateArg(args, 0)
			if err != nil {
				return err
			}
			view, err := a.journal.Day(key)
			if err != nil {
				return err
			}
			return a.emit(view, func(w io.Writer) { printDay(w, view) })
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	var (
		date, category, label, brand, productID string
		kcal, carbs, protein, fat              float64
		grams                                  string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Log a manual entry or grams of a saved product",
		Example: `  kcalctl add --category lunch --label "Pasta al pomodoro" --kcal 520 --carbs 95
  kcalctl add --category breakfast --product <id> --grams 40g`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := a.journal.Today()
			if date != "" {
				var err error
				if key, err = core.ParseDateKey(date); err != nil {
					return err
				}
			}
			c, err := core.ParseCategory(category)
			if err != nil {
				return err
			}
			d, err := a.journal.OpenDialog(dialogSlot, key, c)
			if err != nil {
				return err
			}

			var logged services.Logged
			source := estimate.SourceManual
			if productID != "" {
				g, err := core.ParseGrams(grams)
				if err != nil {
					return err
				}
				source = estimate.SourceSaved
				logged, err = a.journal.LogSavedProduct(cmd.Context(), d, productID, g)
				if err != nil {
					return err
				}
			} else {
				in := estimate.ManualInput{Label: label, Brand: brand}
				flags := cmd.Flags()
				if flags.Changed("kcal") {
					in.Calories = &kcal
				}
				if flags.Changed("carbs") {
					in.Carbs = &carbs
				}
				if flags.Changed("protein") {
					in.Protein = &protein
				}
				if flags.Changed("fat") {
					in.Fat = &fat
				}
				if grams != "" {
					if in.Quantity, err = core.ParseGrams(grams); err != nil {
						return err
					}
				}
				if logged, err = a.journal.LogManual(cmd.Context(), d, in); err != nil {
					return err
				}
			}

			applog.NewStructuredLogger(a.logger).LogEntryLogged(cmd.Context(),
				logged.Date.String(), logged.Category.String(), logged.Entry.ID.String(),
				logged.Entry.Label, logged.Entry.Calories, source)

			return a.emit(logged, func(w io.Writer) {
				fmt.Fprintf(w, "Logged %s to %s on %s: %s\n",
					logged.Entry.Label, logged.Category, logged.Date, formatNutrients(logged.Entry.Nutrients))
				fmt.Fprintf(w, "Day total: %s\n", formatNutrients(logged.Day.Totals.Rounded()))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&date, "date", "", "day to log to, YYYY-MM-DD (default today)")
	f.StringVarP(&category, "category", "c", string(core.Other), "breakfast, lunch, dinner or other")
	f.StringVarP(&label, "label", "l", "", "food description")
	f.StringVar(&brand, "brand", "", "brand or source (default Manual)")
	f.Float64Var(&kcal, "kcal", 0, "calories")
	f.Float64Var(&carbs, "carbs", 0, "carbohydrates in grams")
	f.Float64Var(&protein, "protein", 0, "protein in grams")
	f.Float64Var(&fat, "fat", 0, "fat in grams")
	f.StringVarP(&grams, "grams", "g", "", "consumed amount, e.g. 150 or 150g")
	f.StringVarP(&productID, "product", "p", "", "saved product id; nutrients are scaled to --grams")
	cmd.MarkFlagsMutuallyExclusive("product", "label")
	return cmd
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <date> (<entry-id> | <category> <index>)",
		Short: "Delete an entry by id or by its position in a category",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := core.ParseDateKey(args[0])
			if err != nil {
				return err
			}
			var removed core.FoodEntry
			if len(args) == 2 {
				removed, err = a.journal.DeleteEntry(cmd.Context(), key, core.EntryID(args[1]))
			} else {
				c, cerr := core.ParseCategory(args[1])
				if cerr != nil {
					return cerr
				}
				index, ierr := strconv.Atoi(args[2])
				if ierr != nil || index < 0 {
					return fmt.Errorf("invalid index %q", args[2])
				}
				removed, err = a.journal.DeleteAt(cmd.Context(), key, c, index)
			}
			if err != nil {
				return err
			}
			return a.emit(removed, func(w io.Writer) {
				fmt.Fprintf(w, "Removed %s (%s) from %s\n", removed.Label, formatKcal(removed.Calories), key)
			})
		},
	}
}

func printDay(w io.Writer, view services.DayView) {
	s := view.Summary
	fmt.Fprintf(w, "%s  %s  (%d entries)\n", s.Date, formatNutrients(s.Totals.Rounded()), s.EntryCount)
	fmt.Fprintf(w, "Goals: %d%% kcal  %d%% carbs  %d%% protein  %d%% fat\n",
		s.Progress.Calories, s.Progress.Carbs, s.Progress.Protein, s.Progress.Fat)
	for _, ct := range s.Categories {
		fmt.Fprintf(w, "\n%s  %s\n", title(ct.Category), formatKcal(ct.Totals.Calories))
		for i, e := range view.Record.Entries(ct.Category) {
			fmt.Fprintf(w, "  [%d] %-40s %8s  %s\n", i, e.Label, formatKcal(e.Calories), e.ID)
		}
	}
}

func formatKcal(v float64) string {
	return strconv.FormatFloat(core.Nutrients{Calories: v}.Rounded().Calories, 'f', 0, 64) + " kcal"
}

func formatNutrients(n core.Nutrients) string {
	return fmt.Sprintf("%s  C %.1fg  P %.1fg  F %.1fg", formatKcal(n.Calories), n.Carbs, n.Protein, n.Fat)
}

func title(c core.Category) string {
	s := c.String()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
