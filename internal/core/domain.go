package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	Breakfast Category = "breakfast"
	Lunch     Category = "lunch"
	Dinner    Category = "dinner"
	Other     Category = "other"
)

// UnknownQuantity marks an entry whose consumed amount was not recorded.
const UnknownQuantity = 0

// Categories lists the meal buckets in display and summation order.
var Categories = []Category{Breakfast, Lunch, Dinner, Other}

type (
	Category string

	Nutrients struct {
		Calories float64 `json:"calories"`
		Carbs    float64 `json:"carbs"`
		Protein  float64 `json:"protein"`
		Fat      float64 `json:"fat"`
	}

	// FoodEntry is one logged food or composite meal. Nutrient values are
	// already scaled to the logged quantity.
	FoodEntry struct {
		ID    EntryID `json:"id"`
		Label string  `json:"label"`
		Nutrients
		Brand    string  `json:"brand,omitempty"`
		Quantity float64 `json:"quantity,omitempty"` // grams or ml, UnknownQuantity when not recorded
	}

	DayRecord struct {
		Breakfast []FoodEntry `json:"breakfast"`
		Lunch     []FoodEntry `json:"lunch"`
		Dinner    []FoodEntry `json:"dinner"`
		Other     []FoodEntry `json:"other"`
	}

	// Ledger maps a calendar day to its categorized entries.
	Ledger map[DateKey]DayRecord
)

var (
	ErrInvalidCategory = errors.New("invalid category")
	ErrEmptyLabel      = errors.New("empty label")
	ErrEntryNotFound   = errors.New("entry not found")
	ErrIndexOutOfRange = errors.New("entry index out of range")
)

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

func (c Category) Valid() bool {
	switch c {
	case Breakfast, Lunch, Dinner, Other:
		return true
	}
	return false
}

func (c Category) String() string { return string(c) }

// NewDayRecord returns a record with all four categories present and empty.
func NewDayRecord() DayRecord {
	return DayRecord{
		Breakfast: []FoodEntry{},
		Lunch:     []FoodEntry{},
		Dinner:    []FoodEntry{},
		Other:     []FoodEntry{},
	}
}

func (d *DayRecord) bucket(c Category) *[]FoodEntry {
	switch c {
	case Breakfast:
		return &d.Breakfast
	case Lunch:
		return &d.Lunch
	case Dinner:
		return &d.Dinner
	case Other:
		return &d.Other
	}
	return nil
}

// Entries returns the entries of one category in insertion order.
func (d DayRecord) Entries(c Category) []FoodEntry {
	b := d.bucket(c)
	if b == nil {
		return nil
	}
	return *b
}

// All flattens the record as breakfast, lunch, dinner, other.
func (d DayRecord) All() []FoodEntry {
	out := make([]FoodEntry, 0, d.Len())
	for _, c := range Categories {
		out = append(out, d.Entries(c)...)
	}
	return out
}

func (d DayRecord) Len() int {
	return len(d.Breakfast) + len(d.Lunch) + len(d.Dinner) + len(d.Other)
}

// HasData reports whether any category holds an entry.
func (d DayRecord) HasData() bool { return d.Len() > 0 }

// Clone returns a deep copy with every category non-nil.
func (d DayRecord) Clone() DayRecord {
	out := NewDayRecord()
	for _, c := range Categories {
		src := d.Entries(c)
		dst := out.bucket(c)
		*dst = append(*dst, src...)
	}
	return out
}

// Add appends e to category c.
func (d *DayRecord) Add(c Category, e FoodEntry) error {
	b := d.bucket(c)
	if b == nil {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, c)
	}
	*b = append(*b, e)
	return nil
}

// RemoveAt deletes the entry at index i of category c. Later entries shift
// down by one and keep their relative order.
func (d *DayRecord) RemoveAt(c Category, i int) (FoodEntry, error) {
	b := d.bucket(c)
	if b == nil {
		return FoodEntry{}, fmt.Errorf("%w: %q", ErrInvalidCategory, c)
	}
	if i < 0 || i >= len(*b) {
		return FoodEntry{}, fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, c, i)
	}
	removed := (*b)[i]
	next := make([]FoodEntry, 0, len(*b)-1)
	next = append(next, (*b)[:i]...)
	next = append(next, (*b)[i+1:]...)
	*b = next
	return removed, nil
}

// Find locates an entry by id.
func (d DayRecord) Find(id EntryID) (Category, int, bool) {
	for _, c := range Categories {
		for i, e := range d.Entries(c) {
			if e.ID == id {
				return c, i, true
			}
		}
	}
	return "", -1, false
}

// RemoveByID deletes the entry with the given id from whichever category holds it.
func (d *DayRecord) RemoveByID(id EntryID) (Category, FoodEntry, error) {
	c, i, ok := d.Find(id)
	if !ok {
		return "", FoodEntry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	e, err := d.RemoveAt(c, i)
	return c, e, err
}

// Sanitize replaces NaN, infinite or negative nutrient values with zero.
func (n Nutrients) Sanitize() Nutrients {
	return Nutrients{
		Calories: nonNegative(n.Calories),
		Carbs:    nonNegative(n.Carbs),
		Protein:  nonNegative(n.Protein),
		Fat:      nonNegative(n.Fat),
	}
}

func (e FoodEntry) Validate() error {
	if strings.TrimSpace(e.Label) == "" {
		return ErrEmptyLabel
	}
	if len(e.Label) > 500 {
		return errors.New("label too long (max 500 characters)")
	}
	fields := []struct {
		name string
		v    float64
	}{
		{"calories", e.Calories}, {"carbs", e.Carbs}, {"protein", e.Protein}, {"fat", e.Fat},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return &ValidationError{Field: f.name, Reason: "must be a non-negative number"}
		}
	}
	if e.Quantity < 0 || math.IsNaN(e.Quantity) {
		return &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	return nil
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Day returns a copy of the record for k, or an empty record. It never
// inserts into l.
func (l Ledger) Day(k DateKey) DayRecord {
	if d, ok := l[k]; ok {
		return d.Clone()
	}
	return NewDayRecord()
}

// Clone deep-copies the ledger.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, d := range l {
		out[k] = d.Clone()
	}
	return out
}
