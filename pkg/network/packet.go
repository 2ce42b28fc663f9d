package network

// PacketKind is the fixed five-way packet type enumeration. Its numeric value
// doubles as the statistics counter index, shared by every node category.
type PacketKind int

const (
	Fragment PacketKind = iota
	Ack
	Nack
	FloodRequest
	FloodResponse

	// PacketKinds is the number of packet kinds.
	PacketKinds = 5
)

var packetKindNames = [PacketKinds]string{
	Fragment:      "Fragment",
	Ack:           "Ack",
	Nack:          "Nack",
	FloodRequest:  "Flood request",
	FloodResponse: "Flood response",
}

func (k PacketKind) String() string {
	if k < 0 || int(k) >= PacketKinds {
		return "Unknown"
	}
	return packetKindNames[k]
}

// RoutingHeader is a source route. HopIndex points at the hop that should
// receive the packet next.
type RoutingHeader struct {
	Hops     []NodeID
	HopIndex int
}

// CurrentHop returns the hop at HopIndex.
func (r RoutingHeader) CurrentHop() (NodeID, bool) {
	if r.HopIndex < 0 || r.HopIndex >= len(r.Hops) {
		return 0, false
	}
	return r.Hops[r.HopIndex], true
}

// PreviousHop returns the hop before HopIndex.
func (r RoutingHeader) PreviousHop() (NodeID, bool) {
	i := r.HopIndex - 1
	if i < 0 || i >= len(r.Hops) {
		return 0, false
	}
	return r.Hops[i], true
}

// Destination returns the last hop of the route.
func (r RoutingHeader) Destination() (NodeID, bool) {
	if len(r.Hops) == 0 {
		return 0, false
	}
	return r.Hops[len(r.Hops)-1], true
}

// TraceHop is one entry of a flood path trace.
type TraceHop struct {
	ID       NodeID
	Category Category
}

// Packet is a routed network packet. PathTrace is only meaningful for flood
// requests and responses.
type Packet struct {
	Kind      PacketKind
	Route     RoutingHeader
	SessionID uint64
	FloodID   uint64
	PathTrace []TraceHop
}
