// Package tracer taps hub log entries for out-of-process observers such as
// the monitor feed.
package tracer

import (
	"time"
	"unicode/utf8"

	"github.com/wgsim/controller/pkg/network"
)

// maxTextLen caps the text carried by a single record.
const maxTextLen = 1024

// Record is one traced node log entry.
type Record struct {
	TS       time.Time      `json:"ts"`
	Node     network.NodeID `json:"node"`
	Category string         `json:"category"`
	Text     string         `json:"text"`
	Tag      string         `json:"tag"`
}

// Tracer forwards records to a channel without ever blocking the caller.
// A nil *Tracer is valid and drops everything.
type Tracer struct {
	ch chan Record // if nil, Trace is a no-op
}

// NewTracer creates a new Tracer with its own buffered record channel.
func NewTracer() *Tracer {
	return &Tracer{
		ch: make(chan Record, 2000),
	}
}

// NewTracerWithChannel creates a tracer that sends records to the given channel.
// Used to wire the hub's tracer to the monitor feed.
func NewTracerWithChannel(ch chan Record) *Tracer {
	return &Tracer{ch: ch}
}

// Records returns the channel records are delivered on.
func (t *Tracer) Records() <-chan Record {
	if t == nil {
		return nil
	}
	return t.ch
}

// NewRecord creates a new record stamped with the current time.
func NewRecord(node network.NodeID, category network.Category, text, tag string) Record {
	if len(text) > maxTextLen {
		cut := maxTextLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return Record{
		TS:       time.Now(),
		Node:     node,
		Category: category.String(),
		Text:     text,
		Tag:      tag,
	}
}

// Trace records a log entry. When the channel is full the record is dropped.
func (t *Tracer) Trace(node network.NodeID, category network.Category, text, tag string) {
	if t == nil || t.ch == nil {
		return
	}
	select {
	case t.ch <- NewRecord(node, category, text, tag):
	default:
	}
}
