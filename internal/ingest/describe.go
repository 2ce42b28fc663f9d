package ingest

import (
	"fmt"
	"strings"

	"github.com/wgsim/controller/pkg/network"
)

// controllerName is how out-of-band deliveries are attributed in logs.
const controllerName = "SimulationController"

// senderOf derives the node that emitted p. Flood requests carry no usable
// route, so their sender is the last node of the path trace.
func senderOf(p network.Packet) (network.NodeID, bool) {
	if p.Kind == network.FloodRequest {
		if len(p.PathTrace) == 0 {
			return 0, false
		}
		return p.PathTrace[len(p.PathTrace)-1].ID, true
	}
	return p.Route.PreviousHop()
}

// viaController reports whether p reached receiver out of band. This is a
// best-effort guess from the route; it only affects log wording.
func viaController(p network.Packet, receiver network.NodeID) bool {
	cur, ok := p.Route.CurrentHop()
	return !ok || cur != receiver
}

func receivedLine(p network.Packet, receiver network.NodeID) string {
	from := controllerName
	if !viaController(p, receiver) {
		if id, ok := senderOf(p); ok {
			from = fmt.Sprintf("node #%d", id)
		}
	}
	if p.Kind == network.FloodResponse {
		return fmt.Sprintf("Received %s from %s,\npath trace = %s", p.Kind, from, formatPathTrace(p.PathTrace))
	}
	return fmt.Sprintf("Received %s from %s", p.Kind, from)
}

// formatPathTrace renders a trace as "[ C1 D2 S3 ]".
func formatPathTrace(trace []network.TraceHop) string {
	var b strings.Builder
	b.WriteString("[ ")
	for _, hop := range trace {
		b.WriteByte(hop.Category.Letter())
		fmt.Fprintf(&b, "%d ", hop.ID)
	}
	b.WriteByte(']')
	return b.String()
}

func describe(body network.Body) string {
	switch b := body.(type) {
	case network.ClientBody:
		return "Type: " + describeRequest(b)
	case network.ServerBody:
		return "Type: " + describeResponse(b)
	default:
		return "Type: Unknown"
	}
}

func describeRequest(b network.ClientBody) string {
	switch b.Request {
	case network.ReqServerType:
		return "Request server type"
	case network.ReqFilesList:
		return "Content - Request files list"
	case network.ReqFile:
		return "Content - Request file\nFile: " + b.File
	case network.ReqRegistrationToChat:
		return "Communication - Request registration to chat"
	case network.MessageSend:
		return "Communication - Send message \n" + describeChat(b.Chat)
	case network.ReqClientList:
		return "Communication - Request clients list"
	default:
		return "Unknown request"
	}
}

func describeResponse(b network.ServerBody) string {
	switch b.Response {
	case network.RespServerType:
		return "Response server type\nMessage content: " + b.ServerType
	case network.ErrUnsupportedRequestType:
		return "Error - Unsupported request type"
	case network.RespFilesList:
		return fmt.Sprintf("Content - Response files list\nMessage content: %v", b.Files)
	case network.RespFile:
		return fmt.Sprintf("Content - Response file\nSize: %d bytes", len(b.File))
	case network.ErrFileNotFound:
		return "Error - File not found"
	case network.RespClientList:
		return fmt.Sprintf("Communication - Response clients list\nMessage content: %v", b.Clients)
	case network.MessageReceive:
		return "Communication - Receive message \n" + describeChat(b.Chat)
	case network.ErrWrongClientID:
		return "Error - Wrong client id"
	default:
		return "Unknown response"
	}
}

func describeChat(m network.ChatMessage) string {
	return fmt.Sprintf("From: %d, To: %d\nMessage content: %s", m.From, m.To, m.Message)
}
