package route

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
)

// Message is the control-channel route command (spec §4.6, §6): a route
// slot selector plus an optional new destination. Port == ClosedPort
// closes the route; any other port opens or replaces it.
//
// spec §9 flags the original scanf-style parser as non-conformant JSON and
// requires a real implementation to tolerate whitespace and field-order
// variation. encoding/json already gives us that for free; we additionally
// reject unknown fields, per spec §9's "reject unknown fields predictably".
type Message struct {
	From int    `json:"from"`
	Port int    `json:"port"`
	IP   string `json:"ip"`
	MAC  string `json:"mac"`
}

// DecodeMessage parses a control JSON body into a Message. Unknown fields
// are rejected (spec §9: "a proper implementation MUST ... reject unknown
// fields predictably").
func DecodeMessage(body []byte) (Message, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	var msg Message
	if err := dec.Decode(&msg); err != nil {
		return Message{}, fmt.Errorf("route: decode message: %w", err)
	}

	return msg, nil
}

// Encode serializes a Message back to its wire JSON form. Used by the
// tester and driver to emit control commands.
func (m Message) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("route: encode message: %w", err)
	}
	return b, nil
}

// CloseMessage builds the Message that closes the route at poa, per
// spec §4.6 ("port == -1 -> close the route; other fields are ignored").
func CloseMessage(poa int) Message {
	return Message{From: poa, Port: ClosedPort}
}

// OpenMessage builds the Message that opens or replaces the route at poa
// with the given destination.
func OpenMessage(poa int, dst Endpoint) Message {
	return Message{
		From: poa,
		Port: dst.Port,
		IP:   fmt.Sprintf("%d.%d.%d.%d", dst.IP[0], dst.IP[1], dst.IP[2], dst.IP[3]),
		MAC:  net.HardwareAddr(dst.MAC[:]).String(),
	}
}

// Endpoint parses the Message's ip/mac fields into a route.Endpoint. Only
// meaningful when Port != ClosedPort.
func (m Message) Endpoint() (Endpoint, error) {
	var e Endpoint
	e.Port = m.Port

	ip := net.ParseIP(m.IP).To4()
	if ip == nil {
		return Endpoint{}, fmt.Errorf("route: parse ip %q: %w", m.IP, ErrMalformedEndpoint)
	}
	copy(e.IP[:], ip)

	mac, err := net.ParseMAC(m.MAC)
	if err != nil || len(mac) != 6 {
		return Endpoint{}, fmt.Errorf("route: parse mac %q: %w", m.MAC, ErrMalformedEndpoint)
	}
	copy(e.MAC[:], mac)

	return e, nil
}

// Apply opens or closes the route named by the message's From field
// against t, depending on Port.
func (m Message) Apply(t *Table) error {
	if m.Port == ClosedPort {
		return t.Close(m.From)
	}

	dst, err := m.Endpoint()
	if err != nil {
		return err
	}

	return t.Open(m.From, dst)
}
