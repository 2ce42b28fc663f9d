package tracer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wgsim/controller/pkg/network"
)

func TestTrace_Delivers(t *testing.T) {
	tr := NewTracer()
	tr.Trace(5, network.Relay, "Fragment sent to node #7", "neutral")

	select {
	case r := <-tr.Records():
		assert.Equal(t, network.NodeID(5), r.Node)
		assert.Equal(t, "Drone", r.Category)
		assert.Equal(t, "Fragment sent to node #7", r.Text)
		assert.Equal(t, "neutral", r.Tag)
		assert.False(t, r.TS.IsZero())
	default:
		t.Fatal("record was not delivered")
	}
}

func TestTrace_FullChannelDrops(t *testing.T) {
	ch := make(chan Record, 1)
	tr := NewTracerWithChannel(ch)

	tr.Trace(1, network.Originator, "first", "neutral")
	tr.Trace(1, network.Originator, "second", "neutral")

	require.Len(t, ch, 1)
	assert.Equal(t, "first", (<-ch).Text)
}

func TestTrace_NilTracer(t *testing.T) {
	var tr *Tracer
	assert.NotPanics(t, func() {
		tr.Trace(1, network.Responder, "x", "neutral")
	})
	assert.Nil(t, tr.Records())
}

func TestNewRecord_TruncatesText(t *testing.T) {
	r := NewRecord(2, network.Responder, strings.Repeat("a", 2000), "muted")
	assert.Len(t, r.Text, maxTextLen)
	assert.Equal(t, "Server", r.Category)
}

func TestNewRecord_TruncatesOnRuneBoundary(t *testing.T) {
	// "é" is two bytes, so the limit falls in the middle of a rune.
	text := "a" + strings.Repeat("é", maxTextLen)
	r := NewRecord(2, network.Relay, text, "neutral")

	assert.True(t, utf8.ValidString(r.Text))
	assert.Len(t, r.Text, maxTextLen-1)
	assert.True(t, strings.HasPrefix(text, r.Text))
}
