package service

import (
	"testing"
	"time"

	"clinic_engage_backend/internal/scheduling/repository"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load timezone: %v", err)
	}
	return loc
}

func testEngine(t *testing.T) *Engine {
	return NewEngine(newYork(t), 15, 4, 3)
}

func window(startH, startM, endH, endM int) repository.Window {
	return repository.Window{StartMinutes: startH*60 + startM, EndMinutes: endH*60 + endM}
}

func TestGenerateSlots_LeadTimeExcludesEarlyMorning(t *testing.T) {
	engine := testEngine(t)
	loc := newYork(t)
	// Monday June 1 2026, template 09:00-16:45, now 08:00 local.
	template := repository.WeeklyTemplate{time.Monday: {window(9, 0, 16, 45)}}
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, loc)

	slots := engine.GenerateSlots(2026, time.June, 1, template, now.UTC(), nil, false)

	if len(slots) == 0 {
		t.Fatal("expected slots")
	}
	var firstAvailable *Slot
	for i := range slots {
		if slots[i].Available {
			firstAvailable = &slots[i]
			break
		}
	}
	if firstAvailable == nil {
		t.Fatal("expected at least one available slot")
	}
	// 09:00 through 11:45 fall inside the 4h lead window; noon is the
	// boundary and must be bookable.
	want := time.Date(2026, 6, 1, 12, 0, 0, 0, loc)
	if !firstAvailable.StartUTC.Equal(want.UTC()) {
		t.Fatalf("expected first available at noon local, got %s", firstAvailable.StartUTC.In(loc))
	}
	for _, slot := range slots {
		if !slot.Available && slot.StartUTC.After(now.Add(4*time.Hour).UTC()) {
			t.Fatalf("slot %s marked unavailable beyond the lead window with no booking", slot.StartUTC.In(loc))
		}
	}
}

func TestGenerateSlots_WallClockRoundTrip(t *testing.T) {
	engine := testEngine(t)
	loc := newYork(t)
	template := repository.WeeklyTemplate{
		time.Monday:    {window(9, 0, 12, 0)},
		time.Wednesday: {window(8, 30, 10, 0), window(14, 0, 17, 0)},
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, date := range []struct {
		y int
		m time.Month
		d int
	}{{2026, time.June, 1}, {2026, time.January, 7}, {2026, time.December, 2}} {
		slots := engine.GenerateSlots(date.y, date.m, date.d, template, now, nil, false)
		for _, slot := range slots {
			local := slot.StartUTC.In(loc)
			if local.Year() != date.y || local.Month() != date.m || local.Day() != date.d {
				t.Fatalf("slot %s does not fall on the requested local date", slot.StartUTC)
			}
			minutes := local.Hour()*60 + local.Minute()
			if minutes%15 != 0 {
				t.Fatalf("slot %s off the 15-minute grid", local)
			}
			if slot.DisplayLabel != local.Format("3:04 PM") {
				t.Fatalf("label %q does not match local time %s", slot.DisplayLabel, local)
			}
		}
	}
}

func TestGenerateSlots_SpringForwardGapIsSkipped(t *testing.T) {
	engine := testEngine(t)
	loc := newYork(t)
	// 2026-03-08: clocks jump 02:00 -> 03:00 in New York.
	template := repository.WeeklyTemplate{time.Sunday: {window(1, 0, 4, 0)}}
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	slots := engine.GenerateSlots(2026, time.March, 8, template, now, nil, false)

	for _, slot := range slots {
		local := slot.StartUTC.In(loc)
		if local.Hour() == 2 {
			t.Fatalf("nonexistent local time generated: %s", local)
		}
	}
	// 1:00-1:45 and 3:00-3:45 survive; the 2:00 hour does not exist.
	if len(slots) != 8 {
		t.Fatalf("expected 8 slots around the gap, got %d", len(slots))
	}
}

func TestGenerateSlots_FallBackAmbiguityTakesEarlierInstant(t *testing.T) {
	engine := testEngine(t)
	loc := newYork(t)
	// 2026-11-01: clocks fall back 02:00 -> 01:00; 01:00-01:45 occur twice.
	template := repository.WeeklyTemplate{time.Sunday: {window(1, 0, 2, 0)}}
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	slots := engine.GenerateSlots(2026, time.November, 1, template, now, nil, false)

	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	// The earlier occurrence of 01:00 EDT is 05:00 UTC; the later (EST)
	// occurrence would be 06:00 UTC.
	want := time.Date(2026, 11, 1, 5, 0, 0, 0, time.UTC)
	if !slots[0].StartUTC.Equal(want) {
		t.Fatalf("expected earlier UTC instant %s, got %s", want, slots[0].StartUTC)
	}
	if slots[0].StartUTC.In(loc).Hour() != 1 {
		t.Fatalf("expected 1 AM local, got %s", slots[0].StartUTC.In(loc))
	}
}

func TestGenerateSlots_BookedIntervalsMarkUnavailable(t *testing.T) {
	engine := testEngine(t)
	loc := newYork(t)
	template := repository.WeeklyTemplate{time.Monday: {window(9, 0, 10, 0)}}
	now := time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)

	bookedStart := time.Date(2026, 6, 1, 9, 15, 0, 0, loc).UTC()
	booked := []Interval{{Start: bookedStart, End: bookedStart.Add(15 * time.Minute)}}

	slots := engine.GenerateSlots(2026, time.June, 1, template, now, booked, false)

	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	for _, slot := range slots {
		wantAvailable := !slot.StartUTC.Equal(bookedStart)
		if slot.Available != wantAvailable {
			t.Fatalf("slot %s: available=%v, want %v", slot.StartUTC.In(loc), slot.Available, wantAvailable)
		}
	}
}

func TestGenerateSlots_FailClosedMarksEverythingUnavailable(t *testing.T) {
	engine := testEngine(t)
	template := repository.WeeklyTemplate{time.Monday: {window(9, 0, 17, 0)}}
	now := time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)

	slots := engine.GenerateSlots(2026, time.June, 1, template, now, nil, true)

	if len(slots) == 0 {
		t.Fatal("fail-closed must still render the slot grid")
	}
	for _, slot := range slots {
		if slot.Available {
			t.Fatalf("slot %s available despite fail-closed", slot.StartUTC)
		}
	}
}

func TestIsDateSelectable_BusinessDayHorizon(t *testing.T) {
	engine := testEngine(t)
	loc := newYork(t)
	template := repository.WeeklyTemplate{
		time.Monday:    {window(9, 0, 17, 0)},
		time.Tuesday:   {window(9, 0, 17, 0)},
		time.Wednesday: {window(9, 0, 17, 0)},
		time.Thursday:  {window(9, 0, 17, 0)},
		time.Friday:    {window(9, 0, 17, 0)},
	}
	// Thursday June 4 2026, 09:00 local.
	now := time.Date(2026, 6, 4, 9, 0, 0, 0, loc).UTC()

	cases := []struct {
		name string
		day  int
		want bool
	}{
		{"same day", 4, false},
		{"friday +1 business day", 5, true},
		{"saturday no windows", 6, false},
		{"monday +2 business days", 8, true},
		{"tuesday +3 business days", 9, true},
		{"wednesday +4 business days", 10, false},
	}
	for _, tc := range cases {
		got := engine.IsDateSelectable(2026, time.June, tc.day, template, now, nil, false)
		if got != tc.want {
			t.Fatalf("%s: selectable=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsDateSelectable_FalseWhenNoAvailableSlotsLoaded(t *testing.T) {
	engine := testEngine(t)
	loc := newYork(t)
	template := repository.WeeklyTemplate{time.Monday: {window(9, 0, 9, 30)}}
	now := time.Date(2026, 5, 29, 12, 0, 0, 0, time.UTC)

	// Both Monday slots booked.
	first := time.Date(2026, 6, 1, 9, 0, 0, 0, loc).UTC()
	second := time.Date(2026, 6, 1, 9, 15, 0, 0, loc).UTC()
	booked := []Interval{
		{Start: first, End: first.Add(15 * time.Minute)},
		{Start: second, End: second.Add(15 * time.Minute)},
	}

	if engine.IsDateSelectable(2026, time.June, 1, template, now, booked, true) {
		t.Fatal("fully booked date must not be selectable once slots are loaded")
	}
	// Before slot data loads the date stays optimistically selectable.
	if !engine.IsDateSelectable(2026, time.June, 1, template, now, booked, false) {
		t.Fatal("expected optimistic selectability before slot data loads")
	}
}
