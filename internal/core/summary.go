package core

// CategoryTotal is the subtotal of one meal category.
type CategoryTotal struct {
	Category Category  `json:"category"`
	Totals   Nutrients `json:"totals"`
	Count    int       `json:"count"`
}

// Progress holds goal-relative percentages, each 0..100.
type Progress struct {
	Calories int `json:"calories"`
	Carbs    int `json:"carbs"`
	Protein  int `json:"protein"`
	Fat      int `json:"fat"`
}

// DaySummary is the read-side view of one day.
type DaySummary struct {
	Date       DateKey         `json:"date"`
	Totals     Nutrients       `json:"totals"`
	EntryCount int             `json:"entry_count"`
	HasData    bool            `json:"has_data"`
	Categories []CategoryTotal `json:"categories"`
	Progress   Progress        `json:"progress"`
}

// DayCell is one calendar grid cell.
type DayCell struct {
	Date     DateKey `json:"date"`
	Day      int     `json:"day"`
	HasData  bool    `json:"has_data"`
	Calories float64 `json:"calories"`
	Today    bool    `json:"today"`
	Selected bool    `json:"selected"`
}

// MonthView is a compact calendar for a specific year+month.
type MonthView struct {
	Year    int       `json:"year"`
	Month   int       `json:"month"`         // 1-12
	Weekday int       `json:"first_weekday"` // weekday of day 1, Sunday = 0
	Days    []DayCell `json:"days"`
	Totals  Nutrients `json:"totals"`
	Logged  int       `json:"logged_days"`
}
