package walletconnect

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Message is the envelope exchanged with the bridge server.
type Message struct {
	Topic string `json:"topic"`
	// pub sub ack
	Type    string `json:"type"`
	Payload string `json:"payload"`
	Silent  bool   `json:"silent"`
}

const (
	messagePub = "pub"
	messageSub = "sub"
	messageAck = "ack"
)

func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrap(err, "unmarshal wallet connect message")
	}
	return &msg, nil
}

func (m *Message) Marshal() []byte {
	b, _ := json.Marshal(m)
	return b
}

// Payload is an encrypted JSON-RPC body, hex encoded.
type Payload struct {
	Data string `json:"data"`
	HMAC string `json:"hmac"`
	IV   string `json:"iv"`
}

func ParsePayload(data string) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, errors.Wrap(err, "unmarshal wallet connect message payload")
	}
	return &p, nil
}

func (p *Payload) Marshal() string {
	b, _ := json.Marshal(p)
	return string(b)
}

type peer struct {
	PeerID   string     `json:"peerId"`
	PeerMeta clientMeta `json:"peerMeta"`
	ChainID  *int64     `json:"chainId"`
}

type clientMeta struct {
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
	Name        string   `json:"name"`
}

type sessionUpdate struct {
	Approved bool     `json:"approved"`
	ChainID  *int64   `json:"chainId"`
	Accounts []string `json:"accounts"`
}

type rpcRequest struct {
	ID      int64  `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

func newRPCRequest(id int64, method string, params ...any) *rpcRequest {
	r := &rpcRequest{
		ID:      id,
		JSONRPC: "2.0",
		Method:  method,
		Params:  []any{},
	}
	if len(params) > 0 {
		r.Params = params
	}
	return r
}

// silent requests are protocol traffic the wallet does not show to the user.
func (r *rpcRequest) silent() bool {
	return strings.HasPrefix(r.Method, "wc_")
}

type transactionObject struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value,omitempty"`
	Data  string `json:"data,omitempty"`
	Type  string `json:"type,omitempty"`
}
