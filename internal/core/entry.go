package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// EntryID identifies a FoodEntry within the ledger. Older documents used a
// millisecond timestamp number, which decodes to its decimal string.
type EntryID string

// NewEntryID returns a fresh random identifier.
func NewEntryID() EntryID { return EntryID(uuid.NewString()) }

const legacyIDPrefix = "legacy-"

// LegacyEntryID derives a stable id for an entry that was stored without one.
// The id depends only on position, so two unrelated documents can derive the
// same one.
func LegacyEntryID(key DateKey, c Category, index int) EntryID {
	return EntryID(fmt.Sprintf("%s%s-%s-%d", legacyIDPrefix, key, c, index))
}

// Derived reports whether id came from LegacyEntryID.
func (id EntryID) Derived() bool { return strings.HasPrefix(string(id), legacyIDPrefix) }

func (id EntryID) String() string { return string(id) }

func (id *EntryID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*id = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = EntryID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("entry id: %w", err)
		}
		*id = EntryID(n.String())
	}
	return nil
}

// looseFloat accepts numbers, numeric strings (dot or comma decimal), null
// and anything else as zero.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		*f = 0
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
		if err != nil {
			v = 0
		}
		*f = looseFloat(v)
	default:
		var v float64
		if err := json.Unmarshal(b, &v); err != nil {
			v = 0
		}
		*f = looseFloat(v)
	}
	return nil
}

// UnmarshalJSON tolerates missing, null and malformed numeric fields so one
// bad value never invalidates the surrounding document.
func (e *FoodEntry) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID       EntryID    `json:"id"`
		Label    string     `json:"label"`
		Calories looseFloat `json:"calories"`
		Carbs    looseFloat `json:"carbs"`
		Protein  looseFloat `json:"protein"`
		Fat      looseFloat `json:"fat"`
		Brand    string     `json:"brand"`
		Quantity looseFloat `json:"quantity"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = FoodEntry{
		ID:    raw.ID,
		Label: raw.Label,
		Nutrients: Nutrients{
			Calories: float64(raw.Calories),
			Carbs:    float64(raw.Carbs),
			Protein:  float64(raw.Protein),
			Fat:      float64(raw.Fat),
		}.Sanitize(),
		Brand:    raw.Brand,
		Quantity: nonNegative(float64(raw.Quantity)),
	}
	return nil
}
