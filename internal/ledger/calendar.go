package ledger

import (
	"time"

	"kcal/internal/core"
)

// DayReader is the read side of the ledger. Both *Store and core.Ledger
// satisfy it.
type DayReader interface {
	Day(key core.DateKey) core.DayRecord
}

// Summarize builds the day view from one record.
func Summarize(key core.DateKey, day core.DayRecord, goals core.Goals) core.DaySummary {
	totals := core.Totals(day.All())
	return core.DaySummary{
		Date:       key,
		Totals:     totals,
		EntryCount: day.Len(),
		HasData:    day.HasData(),
		Categories: day.CategoryTotals(),
		Progress:   goals.Progress(totals),
	}
}

// Summary reads the day for key and summarizes it.
func Summary(r DayReader, key core.DateKey, goals core.Goals) core.DaySummary {
	return Summarize(key, r.Day(key), goals)
}

// HasData reports whether any category of the day holds an entry.
func HasData(r DayReader, key core.DateKey) bool {
	return r.Day(key).HasData()
}

// Month builds the calendar grid for year/month. Today comes from cal and
// selected marks the currently viewed day.
func Month(r DayReader, cal core.Calendar, year int, month time.Month, selected core.DateKey) core.MonthView {
	today := cal.Today()
	keys := core.MonthKeys(year, month)
	view := core.MonthView{
		Year:    year,
		Month:   int(month),
		Weekday: int(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()),
		Days:    make([]core.DayCell, 0, len(keys)),
	}
	for i, k := range keys {
		day := r.Day(k)
		totals := core.Totals(day.All())
		cell := core.DayCell{
			Date:     k,
			Day:      i + 1,
			HasData:  day.HasData(),
			Calories: totals.Calories,
			Today:    k == today,
			Selected: k == selected,
		}
		if cell.HasData {
			view.Logged++
			view.Totals = view.Totals.Add(totals)
		}
		view.Days = append(view.Days, cell)
	}
	return view
}
