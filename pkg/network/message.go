package network

// Body is the payload of an assembled or fragmented message. It is either a
// ClientBody (originator request) or a ServerBody (responder response).
type Body interface {
	isBody()
}

// ChatMessage is a communication-server chat line.
type ChatMessage struct {
	From    NodeID
	To      NodeID
	Message string
}

// ClientRequest enumerates originator requests.
type ClientRequest int

const (
	ReqServerType ClientRequest = iota
	ReqFilesList
	ReqFile
	ReqRegistrationToChat
	MessageSend
	ReqClientList
)

// ClientBody is a request sent by an originator. File is set for ReqFile,
// Chat for MessageSend.
type ClientBody struct {
	Request ClientRequest
	File    string
	Chat    ChatMessage
}

func (ClientBody) isBody() {}

// ServerResponse enumerates responder responses.
type ServerResponse int

const (
	RespServerType ServerResponse = iota
	ErrUnsupportedRequestType
	RespFilesList
	RespFile
	ErrFileNotFound
	RespClientList
	MessageReceive
	ErrWrongClientID
)

// ServerBody is a response sent by a responder. Only the field matching
// Response is meaningful.
type ServerBody struct {
	Response   ServerResponse
	ServerType string
	Files      []string
	File       []byte
	Clients    []NodeID
	Chat       ChatMessage
}

func (ServerBody) isBody() {}

// FileContent returns the file bytes of a RespFile body.
func (b ServerBody) FileContent() ([]byte, bool) {
	if b.Response != RespFile {
		return nil, false
	}
	return b.File, true
}
