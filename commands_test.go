package controller

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wgsim/controller/internal/hub"
	"github.com/wgsim/controller/pkg/network"
)

func lastEntry(t *testing.T, s *Supervisor, id network.NodeID) hub.LogEntry {
	t.Helper()
	logs := s.Hub().Logs(id)
	require.NotEmpty(t, logs)
	return logs[len(logs)-1]
}

func TestAddEdge_Success(t *testing.T) {
	e := newFakeEngine()
	s := newSupervisor(t, e, Options{})

	require.NoError(t, s.AddEdge(1, 7))

	assert.Equal(t, hub.LogEntry{Text: "Link added with node #7", Tag: hub.TagPositive}, lastEntry(t, s, 1))
	assert.Equal(t, hub.LogEntry{Text: "Link added with node #1", Tag: hub.TagPositive}, lastEntry(t, s, 7))
	assert.True(t, s.Mirror().HasEdge(1, 7))
}

func TestAddEdge_Failure(t *testing.T) {
	e := newFakeEngine()
	e.fail("AddEdge", network.ErrCommandFailed)
	s := newSupervisor(t, e, Options{})

	assert.ErrorIs(t, s.AddEdge(1, 7), network.ErrCommandFailed)

	assert.Equal(t, hub.LogEntry{Text: "Failed to add link with node #7", Tag: hub.TagNegative}, lastEntry(t, s, 1))
	assert.Empty(t, s.Hub().Logs(7))
}

func TestCommands_UnknownNode(t *testing.T) {
	e := newFakeEngine()
	s := newSupervisor(t, e, Options{})

	assert.ErrorIs(t, s.AddEdge(1, 42), network.ErrNodeNotFound)
	assert.ErrorIs(t, s.Crash(42), network.ErrNodeNotFound)
	assert.Empty(t, e.calls)
}

func TestSetDropRate(t *testing.T) {
	e := newFakeEngine()
	s := newSupervisor(t, e, Options{})

	require.NoError(t, s.SetDropRate(5, 0.25))
	assert.Equal(t, hub.LogEntry{Text: "Changed drop rate to 0.25", Tag: hub.TagPositive}, lastEntry(t, s, 5))

	assert.ErrorIs(t, s.SetDropRate(5, 1.5), ErrInvalidDropRate)
	assert.Equal(t, hub.LogEntry{Text: "Failed to change drop rate", Tag: hub.TagNegative}, lastEntry(t, s, 5))

	rate, err := s.DropRate(5)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), rate)
}

func TestCrash_Outcomes(t *testing.T) {
	e := newFakeEngine()
	s := newSupervisor(t, e, Options{})

	require.NoError(t, s.Crash(5))
	_, ok := s.Mirror().Index(5)
	assert.False(t, ok)

	e.fail("Crash", network.ErrCommandFailed)
	assert.Error(t, s.Crash(3))
	assert.Equal(t, hub.LogEntry{Text: "Failed to crash", Tag: hub.TagNegative}, lastEntry(t, s, 3))
}

func TestSend_FailureLogged(t *testing.T) {
	e := newFakeEngine()
	s := newSupervisor(t, e, Options{})

	require.NoError(t, s.SendFragment(1))
	assert.Empty(t, s.Hub().Logs(1))

	e.fail("SendAck", errors.New("no route"))
	assert.Error(t, s.SendAck(1))
	assert.Equal(t, hub.LogEntry{Text: "Failed to send Ack", Tag: hub.TagNegative}, lastEntry(t, s, 1))

	e.fail("SendFlood", errors.New("no route"))
	assert.Error(t, s.SendFlood(9))
	assert.Equal(t, "Failed to send Flood request", lastEntry(t, s, 9).Text)
}

func TestClientSendMessage(t *testing.T) {
	e := newFakeEngine()
	s := newSupervisor(t, e, Options{})
	body := network.ClientBody{Request: network.ReqServerType}

	require.NoError(t, s.ClientSendMessage(1, 9, body))
	assert.Equal(t, hub.LogEntry{Text: "Client command sent", Tag: hub.TagMuted}, lastEntry(t, s, 1))

	e.fail("ClientSendMessage", network.ErrCommandFailed)
	assert.Error(t, s.ClientSendMessage(1, 9, body))
	assert.Equal(t, hub.LogEntry{Text: "Error in sending command", Tag: hub.TagNegative}, lastEntry(t, s, 1))
}
