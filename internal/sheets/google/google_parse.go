package google

import (
	"fmt"
	"strconv"
	"strings"

	"kcal/internal/core"
	"kcal/internal/sheets"
)

// parseDiary converts a values matrix (as returned by Sheets API) into day
// rows. Header and malformed rows are skipped.
func parseDiary(values [][]any) []sheets.DiaryRow {
	var out []sheets.DiaryRow
	for _, raw := range values {
		cols := toStrings(raw)
		if len(cols) < 2 {
			continue
		}
		key, err := core.ParseDateKey(cols[0])
		if err != nil {
			continue
		}
		kcal, ok := parseNumber(cols[1])
		if !ok {
			continue
		}
		row := sheets.DiaryRow{Date: key, Calories: int(kcal)}
		row.Carbs, _ = parseNumber(safeGet(cols, 2))
		row.Protein, _ = parseNumber(safeGet(cols, 3))
		row.Fat, _ = parseNumber(safeGet(cols, 4))
		if n, ok := parseNumber(safeGet(cols, 5)); ok {
			row.Entries = int(n)
		}
		out = append(out, row)
	}
	return out
}

// findDateRow returns the 1-based sheet row holding date in column A, or 0.
func findDateRow(values [][]any, date string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == date {
			return i + 1
		}
	}
	return 0
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseNumber accepts sheet-formatted numbers, including a decimal comma.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
