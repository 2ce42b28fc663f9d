package network

// EventKind enumerates every event the three streams can yield.
type EventKind int

const (
	// PacketForwarded is emitted by relays for every packet they pass on.
	PacketForwarded EventKind = iota
	// PacketDropped is emitted by relays that dropped a fragment.
	PacketDropped
	// ControllerShortcut asks the controller to hand a packet directly to its
	// destination because normal multi-hop delivery was impossible.
	ControllerShortcut
	// PacketSent is emitted by originators and responders.
	PacketSent
	// PacketReceived carries the id of the receiving node.
	PacketReceived
	// MessageAssembled reports a complete message rebuilt from fragments.
	MessageAssembled
	// MessageFragmented reports a message split into fragments for sending.
	MessageFragmented
)

func (k EventKind) String() string {
	switch k {
	case PacketForwarded:
		return "PacketForwarded"
	case PacketDropped:
		return "PacketDropped"
	case ControllerShortcut:
		return "ControllerShortcut"
	case PacketSent:
		return "PacketSent"
	case PacketReceived:
		return "PacketReceived"
	case MessageAssembled:
		return "MessageAssembled"
	case MessageFragmented:
		return "MessageFragmented"
	default:
		return "Unknown"
	}
}

// Event is a single item of an engine event stream. Packet is set for the
// packet events, Receiver for PacketReceived, and Body/From/To for the two
// message events.
type Event struct {
	Kind     EventKind
	Packet   Packet
	Receiver NodeID
	Body     Body
	From     NodeID
	To       NodeID
}

// Forwarded builds a relay PacketForwarded event.
func Forwarded(p Packet) Event { return Event{Kind: PacketForwarded, Packet: p} }

// Dropped builds a relay PacketDropped event.
func Dropped(p Packet) Event { return Event{Kind: PacketDropped, Packet: p} }

// Shortcut builds a relay ControllerShortcut event.
func Shortcut(p Packet) Event { return Event{Kind: ControllerShortcut, Packet: p} }

// Sent builds a PacketSent event.
func Sent(p Packet) Event { return Event{Kind: PacketSent, Packet: p} }

// Received builds a PacketReceived event.
func Received(p Packet, receiver NodeID) Event {
	return Event{Kind: PacketReceived, Packet: p, Receiver: receiver}
}

// Assembled builds a MessageAssembled event.
func Assembled(body Body, from, to NodeID) Event {
	return Event{Kind: MessageAssembled, Body: body, From: from, To: to}
}

// Fragmented builds a MessageFragmented event.
func Fragmented(body Body, from, to NodeID) Event {
	return Event{Kind: MessageFragmented, Body: body, From: from, To: to}
}
