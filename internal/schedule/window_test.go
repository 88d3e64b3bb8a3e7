package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestIsWeekdayInRange_Contiguous(t *testing.T) {
	want := map[time.Weekday]bool{
		time.Sunday: false, time.Monday: true, time.Tuesday: true, time.Wednesday: true,
		time.Thursday: true, time.Friday: true, time.Saturday: false,
	}
	for day, expected := range want {
		if got := IsWeekdayInRange(day, time.Monday, time.Friday); got != expected {
			t.Errorf("Mon..Fri: %s = %v, want %v", day, got, expected)
		}
	}
}

func TestIsWeekdayInRange_Wraps(t *testing.T) {
	want := map[time.Weekday]bool{
		time.Friday: true, time.Saturday: true, time.Sunday: true, time.Monday: true,
		time.Tuesday: false, time.Wednesday: false, time.Thursday: false,
	}
	for day, expected := range want {
		if got := IsWeekdayInRange(day, time.Friday, time.Monday); got != expected {
			t.Errorf("Fri..Mon: %s = %v, want %v", day, got, expected)
		}
	}
}

func TestIsWeekdayInRange_SingleDay(t *testing.T) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		got := IsWeekdayInRange(d, time.Thursday, time.Thursday)
		if got != (d == time.Thursday) {
			t.Errorf("Thu..Thu: %s = %v", d, got)
		}
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in   string
		want TimeOfDay
	}{
		{"08:00", NewTimeOfDay(8, 0, 0)},
		{"17:30:15", NewTimeOfDay(17, 30, 15)},
		{"00:00:00", 0},
	}
	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if err != nil {
			t.Fatalf("ParseTimeOfDay(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseTimeOfDay(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := ParseTimeOfDay("25:00"); err == nil {
		t.Error("expected error for 25:00")
	}
}

func TestTimeOfDay_On(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	day := time.Date(2024, 5, 15, 22, 45, 0, 0, loc)

	got := NewTimeOfDay(8, 30, 0).On(day)
	want := time.Date(2024, 5, 15, 8, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("On = %s, want %s", got, want)
	}
	if got.Location() != loc {
		t.Errorf("expected location %s, got %s", loc, got.Location())
	}
}

func TestWindow_Validate(t *testing.T) {
	nine := NewTimeOfDay(9, 0, 0)
	five := NewTimeOfDay(17, 0, 0)

	tests := []struct {
		name    string
		w       Window
		wantErr bool
	}{
		{"weekday range", Window{time.Monday, time.Friday, nine, five}, false},
		{"wrapping range", Window{time.Friday, time.Monday, nine, five}, false},
		{"degenerate times", Window{time.Monday, time.Friday, nine, nine}, true},
		{"inverted times", Window{time.Monday, time.Friday, five, nine}, true},
		{"weekday out of range", Window{time.Monday, time.Weekday(7), nine, five}, true},
		{"negative weekday", Window{time.Weekday(-1), time.Friday, nine, five}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidWindow) {
					t.Errorf("expected ErrInvalidWindow, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestWindow_DayWindow(t *testing.T) {
	w := Window{
		FromWeekday: time.Monday,
		ToWeekday:   time.Friday,
		FromTime:    NewTimeOfDay(8, 0, 0),
		ToTime:      NewTimeOfDay(18, 0, 0),
	}

	wed := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
	start, end, ok := w.DayWindow(wed)
	if !ok {
		t.Fatal("expected Wednesday to be open")
	}
	if !start.Equal(time.Date(2024, 5, 15, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %s", start)
	}
	if !end.Equal(time.Date(2024, 5, 15, 18, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected end %s", end)
	}

	sat := time.Date(2024, 5, 18, 0, 0, 0, 0, time.UTC)
	if _, _, ok := w.DayWindow(sat); ok {
		t.Error("expected Saturday to be closed")
	}
}

func TestWindow_DayWindow_Degenerate(t *testing.T) {
	w := Window{
		FromWeekday: time.Sunday,
		ToWeekday:   time.Saturday,
		FromTime:    NewTimeOfDay(10, 0, 0),
		ToTime:      NewTimeOfDay(10, 0, 0),
	}
	day := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		if _, _, ok := w.DayWindow(day.AddDate(0, 0, i)); ok {
			t.Errorf("day %d: degenerate window must never be open", i)
		}
	}
}
