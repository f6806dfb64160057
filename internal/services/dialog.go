package services

import (
	"fmt"
	"time"

	"kcal/internal/core"
)

// Dialog identifies one opening of an add-food dialog. Results that
// arrive after the dialog's generation has moved on are discarded.
type Dialog struct {
	Slot       string        `json:"slot"`
	Generation uint64        `json:"generation"`
	Date       core.DateKey  `json:"date"`
	Category   core.Category `json:"category"`
}

// maxDialogSlots bounds the open dialogs a journal tracks. Opening one more
// evicts the slot opened longest ago.
const maxDialogSlots = 1024

// A slot exists only while its dialog is open. Generations come from one
// journal-wide counter, so a deleted and reopened slot never revives an
// older Dialog.
type dialogSlot struct {
	generation uint64
	date       core.DateKey
	category   core.Category
}

// OpenDialog opens the dialog in slot for a day and category. Reopening an
// already open dialog for the same target keeps its generation, so
// overlapping submissions from it stay valid.
func (j *Journal) OpenDialog(slot string, key core.DateKey, c core.Category) (Dialog, error) {
	if !key.Valid() {
		return Dialog{}, fmt.Errorf("%w: %q", core.ErrInvalidDateKey, key)
	}
	if !c.Valid() {
		return Dialog{}, fmt.Errorf("%w: %q", core.ErrInvalidCategory, c)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return Dialog{}, ErrClosed
	}
	s, ok := j.dialogs[slot]
	if !ok {
		if len(j.dialogs) >= maxDialogSlots {
			j.evictOldestLocked()
		}
		s = &dialogSlot{}
		j.dialogs[slot] = s
	}
	if !ok || s.date != key || s.category != c {
		j.generation++
		s.generation = j.generation
		s.date = key
		s.category = c
	}
	return Dialog{Slot: slot, Generation: s.generation, Date: key, Category: c}, nil
}

func (j *Journal) evictOldestLocked() {
	oldest := ""
	var gen uint64
	for slot, s := range j.dialogs {
		if oldest == "" || s.generation < gen {
			oldest, gen = slot, s.generation
		}
	}
	if oldest != "" {
		j.dismissLocked(oldest)
	}
}

// DismissDialog closes the dialog in slot. Any estimation still in flight
// for it will be dropped when it completes.
func (j *Journal) DismissDialog(slot string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.dismissLocked(slot)
}

func (j *Journal) dismissLocked(slot string) {
	delete(j.dialogs, slot)
	if p, ok := j.previews[slot]; ok {
		p.timer.Stop()
		delete(j.previews, slot)
	}
}

// ReleaseDialog closes d and drops its preview. A newer generation in the
// same slot is left alone. Callers that use one slot per request release
// it when the request ends.
func (j *Journal) ReleaseDialog(d Dialog) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.validLocked(d) {
		j.dismissLocked(d.Slot)
	}
}

// OpenDialogs counts the dialogs currently open.
func (j *Journal) OpenDialogs() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.dialogs)
}

// DialogValid reports whether d is still the open generation of its slot.
func (j *Journal) DialogValid(d Dialog) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.validLocked(d)
}

func (j *Journal) validLocked(d Dialog) bool {
	s, ok := j.dialogs[d.Slot]
	return ok && s.generation == d.Generation
}

// Preview is the transient confirmation shown after a log succeeds.
type Preview struct {
	Logged
	Slot    string    `json:"slot"`
	Expires time.Time `json:"expires"`
}

type stopper interface {
	Stop() bool
}

func realAfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

type previewSlot struct {
	preview    Preview
	generation uint64
	timer      stopper
}

// Preview returns the preview currently shown in slot, if any.
func (j *Journal) Preview(slot string) (Preview, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	p, ok := j.previews[slot]
	if !ok {
		return Preview{}, false
	}
	return p.preview, true
}

// showPreview replaces the preview in the dialog's slot. When the timer
// fires the preview clears and the dialog closes, unless a newer preview
// or dialog generation has taken over in the meantime.
func (j *Journal) showPreview(d Dialog, logged Logged, ttl time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	if old, ok := j.previews[d.Slot]; ok {
		old.timer.Stop()
	}
	ps := &previewSlot{
		preview: Preview{
			Logged:  logged,
			Slot:    d.Slot,
			Expires: j.cal.Now().Add(ttl),
		},
		generation: d.Generation,
	}
	ps.timer = j.afterFunc(ttl, func() { j.expirePreview(d.Slot, ps) })
	j.previews[d.Slot] = ps
}

func (j *Journal) expirePreview(slot string, ps *previewSlot) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.previews[slot] != ps {
		return
	}
	delete(j.previews, slot)
	if s, ok := j.dialogs[slot]; ok && s.generation == ps.generation {
		delete(j.dialogs, slot)
	}
}
