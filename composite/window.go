package composite

import (
	"fmt"
	"time"
)

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// SeptemberWindow covers 1 to 30 September of year.
func SeptemberWindow(year int) Window {
	return MonthWindow(year, time.September, 1, 30)
}

func MonthWindow(year int, month time.Month, firstDay, lastDay int) Window {
	return Window{
		Start: time.Date(year, month, firstDay, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, month, lastDay, 0, 0, 0, 0, time.UTC),
	}
}

// Contains reports whether t falls on any day of the window, End included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End.AddDate(0, 0, 1))
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
}
