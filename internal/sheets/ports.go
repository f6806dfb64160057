package sheets

import (
	"context"

	"kcal/internal/core"
)

// Ports for outbound adapters.
type (
	// DiaryWriter upserts the row for one day.
	DiaryWriter interface {
		WriteDay(ctx context.Context, row DiaryRow) (rowRef string, err error)
	}

	// DiaryLister returns every day row currently in the diary.
	DiaryLister interface {
		ListDays(ctx context.Context) ([]DiaryRow, error)
	}

	Diary interface {
		DiaryWriter
		DiaryLister
	}
)

// DiaryHeader is the first row of the diary sheet.
var DiaryHeader = []any{"Date", "Calories", "Carbs", "Protein", "Fat", "Entries"}

// DiaryRow is the exported shape of one day.
type DiaryRow struct {
	Date     core.DateKey `json:"date"`
	Calories int          `json:"calories"`
	Carbs    float64      `json:"carbs"`
	Protein  float64      `json:"protein"`
	Fat      float64      `json:"fat"`
	Entries  int          `json:"entries"`
}

// RowFromSummary rounds the day totals the way the day view displays them.
func RowFromSummary(s core.DaySummary) DiaryRow {
	t := s.Totals.Rounded()
	return DiaryRow{
		Date:     s.Date,
		Calories: int(t.Calories),
		Carbs:    t.Carbs,
		Protein:  t.Protein,
		Fat:      t.Fat,
		Entries:  s.EntryCount,
	}
}

// Values returns the row in column order.
func (r DiaryRow) Values() []any {
	return []any{string(r.Date), r.Calories, r.Carbs, r.Protein, r.Fat, r.Entries}
}
