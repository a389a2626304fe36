package protocol

import "time"

// barSizes maps the terminal's bar size vocabulary onto durations. The table
// is fixed by the protocol; both directions are derived once at startup.
var barSizes = map[string]time.Duration{
	"1 secs":  time.Second,
	"5 secs":  5 * time.Second,
	"15 secs": 15 * time.Second,
	"30 secs": 30 * time.Second,
	"1 min":   time.Minute,
	"2 mins":  2 * time.Minute,
	"3 mins":  3 * time.Minute,
	"5 mins":  5 * time.Minute,
	"15 mins": 15 * time.Minute,
	"30 mins": 30 * time.Minute,
	"1 hour":  time.Hour,
	"1 day":   24 * time.Hour,
}

var barNames = func() map[time.Duration]string {
	m := make(map[time.Duration]string, len(barSizes))
	for name, d := range barSizes {
		m[d] = name
	}
	return m
}()

// BarSize resolves a wire bar-size token to a duration.
func BarSize(name string) (time.Duration, bool) {
	d, ok := barSizes[name]
	return d, ok
}

// BarName resolves a duration to its wire bar-size token.
func BarName(d time.Duration) (string, bool) {
	name, ok := barNames[d]
	return name, ok
}
