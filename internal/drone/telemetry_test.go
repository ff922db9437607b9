package drone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/drone-relay/internal/config"
	"github.com/your-org/drone-relay/internal/state"
)

func newClassifierRelay(lastRead string) *Relay {
	r := NewRelay(RelayOptions{Drone: config.DroneConfig{}, Store: state.NewStore()})
	r.lastRead = lastRead
	return r
}

func TestClassifyByLastReadCommand(t *testing.T) {
	tests := []struct {
		name     string
		lastRead string
		msg      string
		field    string
		check    func(t *testing.T, tel state.Telemetry)
	}{
		{
			name: "battery", lastRead: "battery?", msg: "87", field: "battery",
			check: func(t *testing.T, tel state.Telemetry) {
				require.NotNil(t, tel.Battery)
				assert.Equal(t, 87, *tel.Battery)
			},
		},
		{
			name: "speed", lastRead: "speed?", msg: "100.0", field: "speed",
			check: func(t *testing.T, tel state.Telemetry) {
				require.NotNil(t, tel.Speed)
				assert.Equal(t, 100.0, *tel.Speed)
			},
		},
		{
			name: "bare numeric time", lastRead: "time?", msg: "42", field: "flight_time",
			check: func(t *testing.T, tel state.Telemetry) {
				require.NotNil(t, tel.FlightTime)
				assert.Equal(t, 42, *tel.FlightTime)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newClassifierRelay(tt.lastRead)
			field, ok := r.classify(tt.msg)
			require.True(t, ok)
			assert.Equal(t, tt.field, field)
			tt.check(t, r.store.Telemetry())
		})
	}
}

func TestClassifyUnitSuffixOverridesLastRead(t *testing.T) {
	// A trailing seconds unit identifies flight time even when the last
	// read-command was something else: units beat positional attribution.
	r := newClassifierRelay("battery?")

	field, ok := r.classify("123s")
	require.True(t, ok)
	assert.Equal(t, "flight_time", field)

	tel := r.store.Telemetry()
	require.NotNil(t, tel.FlightTime)
	assert.Equal(t, 123, *tel.FlightTime)
	assert.Nil(t, tel.Battery)
}

func TestClassifyRejectsUnknownShapes(t *testing.T) {
	tests := []struct {
		name     string
		lastRead string
		msg      string
	}{
		{"non-numeric", "battery?", "forward"},
		{"numeric without read command", "", "87"},
		{"numeric after write command", "", "42"},
		{"malformed unit", "time?", "12x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newClassifierRelay(tt.lastRead)
			_, ok := r.classify(tt.msg)
			assert.False(t, ok)

			tel := r.store.Telemetry()
			assert.Nil(t, tel.Battery)
			assert.Nil(t, tel.Speed)
			assert.Nil(t, tel.FlightTime)
		})
	}
}

func TestParseSeconds(t *testing.T) {
	sec, ok := parseSeconds("15s")
	require.True(t, ok)
	assert.Equal(t, 15, sec)

	_, ok = parseSeconds("15")
	assert.False(t, ok)

	_, ok = parseSeconds("abcs")
	assert.False(t, ok)
}
