package hub

import "github.com/wgsim/controller/pkg/network"

// Stats holds a node's running counters, indexed by network.PacketKind.
// Relays use Forwarded and FragmentsDropped; originators and responders use
// the remaining fields.
type Stats struct {
	Forwarded          [network.PacketKinds]uint64
	Sent               [network.PacketKinds]uint64
	Received           [network.PacketKinds]uint64
	MessagesAssembled  uint64
	MessagesFragmented uint64
	FragmentsDropped   uint64
}

// ContentKind classifies a received file.
type ContentKind int

const (
	ContentText ContentKind = iota
	ContentImage
)

func (k ContentKind) String() string {
	if k == ContentImage {
		return "image"
	}
	return "text"
}

// ContentItem is a file payload waiting for the rendering layer. Images keep
// their raw bytes and MIME type; text is already decoded.
type ContentItem struct {
	Name string
	Kind ContentKind
	MIME string
	Data []byte
	Text string
}
