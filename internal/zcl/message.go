package zcl

import "fmt"

// Message is one inbound message as a transport delivers it: a description
// string, or a binary ZCL frame with its cluster and source endpoint.
type Message struct {
	Description string `json:"description,omitempty" cbor:"1,keyasint,omitempty"`
	ClusterID   uint16 `json:"cluster,omitempty" cbor:"2,keyasint,omitempty"`
	Endpoint    uint8  `json:"endpoint,omitempty" cbor:"3,keyasint,omitempty"`
	Data        []byte `json:"data,omitempty" cbor:"4,keyasint,omitempty"`
}

// Decode parses the message with ParseDescription or DecodeApplicationFrame.
func (m Message) Decode() (*Frame, error) {
	if m.Description != "" {
		return ParseDescription(m.Description)
	}
	if len(m.Data) == 0 {
		return nil, parseErr("", "empty message", nil)
	}
	return DecodeApplicationFrame(m.ClusterID, m.Endpoint, m.Data)
}

func (m Message) String() string {
	if m.Description != "" {
		return m.Description
	}
	return fmt.Sprintf("zcl %04X/%02X %X", m.ClusterID, m.Endpoint, m.Data)
}
