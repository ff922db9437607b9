package drone

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/drone-relay/internal/config"
	"github.com/your-org/drone-relay/internal/state"
)

// fakeDrone answers UDP command datagrams the way the real drone does.
type fakeDrone struct {
	t       *testing.T
	conn    net.PacketConn
	answers map[string]string
	got     chan string
}

func newFakeDrone(t *testing.T, answers map[string]string) *fakeDrone {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	d := &fakeDrone{t: t, conn: conn, answers: answers, got: make(chan string, 16)}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 1024)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			cmd := strings.TrimSpace(string(buf[:n]))
			d.got <- cmd
			if reply, ok := d.answers[cmd]; ok {
				_, _ = conn.WriteTo([]byte(reply), addr)
			}
		}
	}()
	return d
}

func (d *fakeDrone) port() int {
	return d.conn.LocalAddr().(*net.UDPAddr).Port
}

func (d *fakeDrone) received() string {
	select {
	case cmd := <-d.got:
		return cmd
	case <-time.After(time.Second):
		d.t.Fatal("fake drone received no command")
		return ""
	}
}

func testDroneConfig(port int) config.DroneConfig {
	return config.DroneConfig{
		Host:         "127.0.0.1",
		CommandPort:  port,
		VideoPort:    11111,
		PollInterval: time.Hour, // polls driven manually in tests
		PollTimeout:  100 * time.Millisecond,
	}
}

func TestRelaySendRecordsLastCommand(t *testing.T) {
	fake := newFakeDrone(t, nil)
	store := state.NewStore()

	r := NewRelay(RelayOptions{Drone: testDroneConfig(fake.port()), Store: store})
	require.NoError(t, r.Start())
	t.Cleanup(r.Close)

	require.NoError(t, r.Send("takeoff"))
	assert.Equal(t, "takeoff", fake.received())
	assert.Equal(t, "takeoff", store.LastCommand())
}

func TestRelayRejectsEmptyCommand(t *testing.T) {
	fake := newFakeDrone(t, nil)
	r := NewRelay(RelayOptions{Drone: testDroneConfig(fake.port()), Store: state.NewStore()})
	require.NoError(t, r.Start())
	t.Cleanup(r.Close)

	assert.Error(t, r.Send("  "))
}

func TestRelayTelemetryRoundTrip(t *testing.T) {
	fake := newFakeDrone(t, map[string]string{"battery?": "87"})
	store := state.NewStore()

	stateCh := make(chan state.Telemetry, 1)
	r := NewRelay(RelayOptions{
		Drone: testDroneConfig(fake.port()),
		Store: store,
		OnState: func(tel state.Telemetry) {
			select {
			case stateCh <- tel:
			default:
			}
		},
	})
	require.NoError(t, r.Start())
	t.Cleanup(r.Close)

	require.NoError(t, r.Send("battery?"))

	select {
	case tel := <-stateCh:
		require.NotNil(t, tel.Battery)
		assert.Equal(t, 87, *tel.Battery)
	case <-time.After(time.Second):
		t.Fatal("no droneState broadcast after telemetry response")
	}

	got := store.Telemetry()
	require.NotNil(t, got.Battery)
	assert.Equal(t, 87, *got.Battery)
}

func TestRelayStreamOnAckStartsStream(t *testing.T) {
	fake := newFakeDrone(t, map[string]string{"streamon": "ok"})
	started := make(chan struct{}, 1)

	r := NewRelay(RelayOptions{
		Drone:      testDroneConfig(fake.port()),
		Store:      state.NewStore(),
		OnStreamOn: func() { started <- struct{}{} },
	})
	require.NoError(t, r.Start())
	t.Cleanup(r.Close)

	require.NoError(t, r.Send("streamon"))

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("streamon ack did not trigger stream start")
	}
}

func TestRelayStreamOffAckStopsStream(t *testing.T) {
	fake := newFakeDrone(t, map[string]string{"streamoff": "ok"})
	stopped := make(chan struct{}, 1)

	r := NewRelay(RelayOptions{
		Drone:       testDroneConfig(fake.port()),
		Store:       state.NewStore(),
		OnStreamOff: func() { stopped <- struct{}{} },
	})
	require.NoError(t, r.Start())
	t.Cleanup(r.Close)

	require.NoError(t, r.Send("streamoff"))

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("streamoff ack did not trigger stream stop")
	}
}

func TestRelayErrorResponseRecorded(t *testing.T) {
	fake := newFakeDrone(t, map[string]string{"flip x": "error Motor stop"})
	store := state.NewStore()

	r := NewRelay(RelayOptions{Drone: testDroneConfig(fake.port()), Store: store})
	require.NoError(t, r.Start())
	t.Cleanup(r.Close)

	require.NoError(t, r.Send("flip x"))

	require.Eventually(t, func() bool {
		return store.Snapshot().LastError == "error Motor stop"
	}, time.Second, 10*time.Millisecond)
}

func TestRelayCloseIsIdempotent(t *testing.T) {
	fake := newFakeDrone(t, nil)
	r := NewRelay(RelayOptions{Drone: testDroneConfig(fake.port()), Store: state.NewStore()})
	require.NoError(t, r.Start())

	assert.NotPanics(t, func() {
		r.Close()
		r.Close()
	})
}
