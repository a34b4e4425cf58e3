package availability

import (
	"sort"
	"time"

	"github.com/secreapi/secre/internal/domain/appointment"
)

// GenerateSlots computes the slot sequence for one civil day. It is a pure
// function of its inputs and never consults the wall clock, so the same
// windows and busy intervals always produce the same slots.
//
// Each active window matching the day contributes slots of its own duration,
// walked from the window start; a trailing partial slot that does not fit
// before the window end is discarded. Slots from all windows are merged in
// ascending start order and duplicate start times are collapsed. A slot is
// marked unavailable when it overlaps any busy interval under half-open
// semantics, so a busy interval ending exactly at a slot's start does not
// touch it.
func GenerateSlots(day time.Time, loc *time.Location, windows []*Window, busy []appointment.TimeRange) []Slot {
	dow := civilDayOfWeek(day)

	var slots []Slot
	for _, w := range windows {
		if !w.Active || w.DayOfWeek != dow || w.SlotMinutes <= 0 {
			continue
		}

		dur := time.Duration(w.SlotMinutes) * time.Minute
		end := w.EndTime.At(day, loc)
		for cur := w.StartTime.At(day, loc); !cur.Add(dur).After(end); cur = cur.Add(dur) {
			slot := Slot{Start: cur, End: cur.Add(dur), Available: true}
			slotRange := appointment.TimeRange{Start: slot.Start, End: slot.End}
			for _, b := range busy {
				if slotRange.Overlaps(b) {
					slot.Available = false
					break
				}
			}
			slots = append(slots, slot)
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})

	// Collapse duplicate start times from overlapping windows, keeping the
	// first occurrence.
	deduped := slots[:0]
	for _, s := range slots {
		if len(deduped) > 0 && deduped[len(deduped)-1].Start.Equal(s.Start) {
			continue
		}
		deduped = append(deduped, s)
	}
	return deduped
}
