package state

import (
	"sync"
	"time"
)

// SessionStatus is the tri-state lifecycle of a stream or recording session.
// The explicit Starting state removes ambiguity about a handle mid-teardown
// or mid-launch being treated as present.
type SessionStatus string

const (
	StatusIdle     SessionStatus = "idle"
	StatusStarting SessionStatus = "starting"
	StatusActive   SessionStatus = "active"
)

// Telemetry is the last known drone state. Fields are independently nil
// until first observed.
type Telemetry struct {
	Battery    *int     `json:"battery,omitempty"`
	Speed      *float64 `json:"speed,omitempty"`
	FlightTime *int     `json:"flight_time,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is a point-in-time copy of the full connection state.
type Snapshot struct {
	StreamStatus    SessionStatus `json:"stream_status"`
	StreamStarted   time.Time     `json:"stream_started,omitempty"`
	RecordingStatus SessionStatus `json:"recording_status"`
	RecordingFile   string        `json:"recording_file,omitempty"`
	LastCommand     string        `json:"last_command,omitempty"`
	LastError       string        `json:"last_error,omitempty"`
	Telemetry       Telemetry     `json:"telemetry"`
}

// Store is the single shared record of session status, last command and
// telemetry. Components read and write through it instead of holding private
// copies, so no two components can independently believe they own the same
// session. Process handles themselves stay inside the component that spawned
// them; the store tracks the status those owners agree on.
type Store struct {
	mu sync.RWMutex

	streamStatus  SessionStatus
	streamStarted time.Time

	recordingStatus SessionStatus
	recordingFile   string

	lastCommand string
	lastError   string

	telemetry Telemetry
}

func NewStore() *Store {
	return &Store{
		streamStatus:    StatusIdle,
		recordingStatus: StatusIdle,
	}
}

func (s *Store) SetStreamStatus(st SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamStatus = st
	if st == StatusActive {
		s.streamStarted = time.Now()
	}
	if st == StatusIdle {
		s.streamStarted = time.Time{}
	}
}

func (s *Store) StreamStatus() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamStatus
}

func (s *Store) StreamActive() bool {
	return s.StreamStatus() == StatusActive
}

func (s *Store) SetRecording(st SessionStatus, file string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordingStatus = st
	s.recordingFile = file
}

func (s *Store) Recording() (SessionStatus, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recordingStatus, s.recordingFile
}

func (s *Store) SetLastCommand(cmd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCommand = cmd
}

func (s *Store) LastCommand() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCommand
}

func (s *Store) SetLastError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

func (s *Store) SetBattery(pct int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry.Battery = &pct
	s.telemetry.UpdatedAt = time.Now()
}

func (s *Store) SetSpeed(dm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry.Speed = &dm
	s.telemetry.UpdatedAt = time.Now()
}

func (s *Store) SetFlightTime(sec int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry.FlightTime = &sec
	s.telemetry.UpdatedAt = time.Now()
}

// Telemetry returns a copy of the current telemetry snapshot.
func (s *Store) Telemetry() Telemetry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.telemetry
	if s.telemetry.Battery != nil {
		v := *s.telemetry.Battery
		t.Battery = &v
	}
	if s.telemetry.Speed != nil {
		v := *s.telemetry.Speed
		t.Speed = &v
	}
	if s.telemetry.FlightTime != nil {
		v := *s.telemetry.FlightTime
		t.FlightTime = &v
	}
	return t
}

func (s *Store) Snapshot() Snapshot {
	t := s.Telemetry()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		StreamStatus:    s.streamStatus,
		StreamStarted:   s.streamStarted,
		RecordingStatus: s.recordingStatus,
		RecordingFile:   s.recordingFile,
		LastCommand:     s.lastCommand,
		LastError:       s.lastError,
		Telemetry:       t,
	}
}
