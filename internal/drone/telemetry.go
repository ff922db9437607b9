package drone

import (
	"strconv"
	"strings"
)

// classify attributes one unlabeled drone response to a telemetry field and
// applies it to the store. The drone answers read-commands with bare values,
// so attribution falls back to the most recently issued read-command; a
// trailing unit (flight time's "s" suffix) refines it when present.
func (r *Relay) classify(msg string) (field string, ok bool) {
	if sec, ok := parseSeconds(msg); ok {
		r.store.SetFlightTime(sec)
		return "flight_time", true
	}

	val, err := strconv.ParseFloat(strings.TrimSpace(msg), 64)
	if err != nil {
		return "", false
	}

	switch r.lastReadCommand() {
	case "battery?":
		r.store.SetBattery(int(val))
		return "battery", true
	case "speed?":
		r.store.SetSpeed(val)
		return "speed", true
	case "time?":
		r.store.SetFlightTime(int(val))
		return "flight_time", true
	}
	return "", false
}

// parseSeconds matches flight-time responses of the form "123s".
func parseSeconds(msg string) (int, bool) {
	v, found := strings.CutSuffix(strings.TrimSpace(msg), "s")
	if !found {
		return 0, false
	}
	sec, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return sec, true
}
