// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

package wire

// MsgType identifies a client protocol message body's first field.
type MsgType uint16

const (
	ClientHello                         MsgType = 1
	ClientHelloResp                     MsgType = 2
	ClientGoGetLost                     MsgType = 3
	ClientObjectUpdateField             MsgType = 4
	ClientObjectLocation                MsgType = 5
	ClientObjectDisable                 MsgType = 6
	ClientCreateObjectRequired          MsgType = 7
	ClientCreateObjectRequiredOther     MsgType = 8
	ClientCreateObjectRequiredOtherOwner MsgType = 9
	ClientAddInterest                   MsgType = 10
	ClientRemoveInterest                MsgType = 11
	ClientDoneInterestResp              MsgType = 12
)

// DisconnectReason is a u16 code sent in CLIENT_GO_GET_LOST, per
// client agent design §6.
type DisconnectReason uint16

const (
	ReasonGeneric              DisconnectReason = 0
	ReasonNoHello              DisconnectReason = 1
	ReasonBadDCHash            DisconnectReason = 2
	ReasonBadVersion           DisconnectReason = 3
	ReasonInvalidMsgType       DisconnectReason = 4
	ReasonTruncatedDatagram    DisconnectReason = 5
	ReasonOversizedDatagram    DisconnectReason = 6
	ReasonAnonymousViolation   DisconnectReason = 7
	ReasonForbiddenField       DisconnectReason = 8
	ReasonForbiddenRelocate    DisconnectReason = 9
	ReasonMissingObject        DisconnectReason = 10
)

// HelloRequest is the decoded body of CLIENT_HELLO.
type HelloRequest struct {
	DCHash  uint32
	Version string
}

// DecodeHello parses a CLIENT_HELLO body (msgtype already consumed).
func DecodeHello(d *Decoder) (HelloRequest, error) {
	req := HelloRequest{
		DCHash:  d.GetUint32(),
		Version: d.GetString(),
	}
	return req, d.Err()
}

// EncodeHelloResp builds CLIENT_HELLO_RESP.
func EncodeHelloResp() []byte {
	return NewEncoder(uint16(ClientHelloResp)).Bytes()
}

// EncodeGoGetLost builds CLIENT_GO_GET_LOST(reason, message).
func EncodeGoGetLost(reason DisconnectReason, message string) []byte {
	return NewEncoder(uint16(ClientGoGetLost)).
		PutUint16(uint16(reason)).
		PutString(message).
		Bytes()
}

// UpdateFieldRequest is the decoded body of CLIENT_OBJECT_UPDATE_FIELD.
type UpdateFieldRequest struct {
	DoID    uint32
	FieldID uint16
	// Payload is every remaining byte: the packed field value.
	Payload []byte
}

// DecodeUpdateField parses a CLIENT_OBJECT_UPDATE_FIELD body.
func DecodeUpdateField(d *Decoder) (UpdateFieldRequest, error) {
	req := UpdateFieldRequest{
		DoID:    d.GetUint32(),
		FieldID: d.GetUint16(),
	}
	if d.Err() != nil {
		return req, d.Err()
	}
	req.Payload = d.GetRemainder()
	return req, nil
}

// EncodeUpdateField builds CLIENT_OBJECT_UPDATE_FIELD for delivery to
// a client (both an echo of a client-authored update and a
// state-server-originated one look identical on the wire).
func EncodeUpdateField(doID uint32, fieldID uint16, payload []byte) []byte {
	return NewEncoder(uint16(ClientObjectUpdateField)).
		PutUint32(doID).
		PutUint16(fieldID).
		PutRaw(payload).
		Bytes()
}

// LocationRequest is the decoded body of an inbound CLIENT_OBJECT_LOCATION.
type LocationRequest struct {
	DoID   uint32
	Parent uint32
	Zone   uint32
}

// DecodeLocation parses a CLIENT_OBJECT_LOCATION body. The wire format
// is the same in both directions; inbound, only DoID is meaningfully
// used before the permission check (client agent design §4.5,
// SPEC_FULL "CLIENT_OBJECT_LOCATION forbidden-relocate check").
func DecodeLocation(d *Decoder) (LocationRequest, error) {
	req := LocationRequest{
		DoID:   d.GetUint32(),
		Parent: d.GetUint32(),
		Zone:   d.GetUint32(),
	}
	return req, d.Err()
}

// EncodeLocation builds an outbound CLIENT_OBJECT_LOCATION.
func EncodeLocation(doID, parent, zone uint32) []byte {
	return NewEncoder(uint16(ClientObjectLocation)).
		PutUint32(doID).
		PutUint32(parent).
		PutUint32(zone).
		Bytes()
}

// EncodeObjectDisable builds CLIENT_OBJECT_DISABLE(do_id).
func EncodeObjectDisable(doID uint32) []byte {
	return NewEncoder(uint16(ClientObjectDisable)).
		PutUint32(doID).
		Bytes()
}

// EncodeCreateObjectRequired builds CLIENT_CREATE_OBJECT_REQUIRED.
func EncodeCreateObjectRequired(parent, zone uint32, dcID uint16, doID uint32, required []byte) []byte {
	return NewEncoder(uint16(ClientCreateObjectRequired)).
		PutUint32(parent).PutUint32(zone).PutUint16(dcID).PutUint32(doID).
		PutRaw(required).
		Bytes()
}

// EncodeCreateObjectRequiredOther builds
// CLIENT_CREATE_OBJECT_REQUIRED_OTHER.
func EncodeCreateObjectRequiredOther(parent, zone uint32, dcID uint16, doID uint32, required, other []byte) []byte {
	e := NewEncoder(uint16(ClientCreateObjectRequiredOther)).
		PutUint32(parent).PutUint32(zone).PutUint16(dcID).PutUint32(doID).
		PutBlob(required)
	return e.PutRaw(other).Bytes()
}

// EncodeCreateObjectRequiredOtherOwner builds
// CLIENT_CREATE_OBJECT_REQUIRED_OTHER_OWNER.
func EncodeCreateObjectRequiredOtherOwner(parent, zone uint32, dcID uint16, doID uint32, required, other []byte) []byte {
	e := NewEncoder(uint16(ClientCreateObjectRequiredOtherOwner)).
		PutUint32(parent).PutUint32(zone).PutUint16(dcID).PutUint32(doID).
		PutBlob(required)
	return e.PutRaw(other).Bytes()
}

// AddInterestRequest is the decoded body of CLIENT_ADD_INTEREST.
type AddInterestRequest struct {
	InterestID uint16
	Context    uint32
	Parent     uint32
	Zones      []uint32
}

// DecodeAddInterest parses a CLIENT_ADD_INTEREST body: a fixed header
// followed by a run of u32 zone ids filling the rest of the message.
func DecodeAddInterest(d *Decoder) (AddInterestRequest, error) {
	req := AddInterestRequest{
		InterestID: d.GetUint16(),
		Context:    d.GetUint32(),
		Parent:     d.GetUint32(),
	}
	for !d.AtEnd() {
		req.Zones = append(req.Zones, d.GetUint32())
	}
	return req, d.Err()
}

// EncodeAddInterest builds a CLIENT_ADD_INTEREST body, used by tests
// constructing synthetic client traffic.
func EncodeAddInterest(interestID uint16, context, parent uint32, zones []uint32) []byte {
	e := NewEncoder(uint16(ClientAddInterest)).
		PutUint16(interestID).PutUint32(context).PutUint32(parent)
	for _, z := range zones {
		e.PutUint32(z)
	}
	return e.Bytes()
}

// RemoveInterestRequest is the decoded body of CLIENT_REMOVE_INTEREST.
type RemoveInterestRequest struct {
	InterestID uint16
	Context    uint32
	// HasContext is false when the client omitted the trailing context
	// field entirely (client agent design §4.5 "Remove interest").
	HasContext bool
}

// DecodeRemoveInterest parses a CLIENT_REMOVE_INTEREST body. The
// context field is optional: present iff bytes remain after the id.
func DecodeRemoveInterest(d *Decoder) (RemoveInterestRequest, error) {
	req := RemoveInterestRequest{InterestID: d.GetUint16()}
	if d.Err() != nil {
		return req, d.Err()
	}
	if !d.AtEnd() {
		req.Context = d.GetUint32()
		req.HasContext = true
	}
	return req, d.Err()
}

// EncodeRemoveInterest builds an outbound CLIENT_REMOVE_INTEREST, used
// by tests constructing synthetic client traffic.
func EncodeRemoveInterest(interestID uint16, context uint32, hasContext bool) []byte {
	e := NewEncoder(uint16(ClientRemoveInterest)).PutUint16(interestID)
	if hasContext {
		e.PutUint32(context)
	}
	return e.Bytes()
}

// EncodeDoneInterestResp builds CLIENT_DONE_INTEREST_RESP(interest_id, context).
func EncodeDoneInterestResp(interestID uint16, context uint32) []byte {
	return NewEncoder(uint16(ClientDoneInterestResp)).
		PutUint16(interestID).
		PutUint32(context).
		Bytes()
}

// EncodeHello builds an outbound CLIENT_HELLO, used by tests acting as
// a synthetic client.
func EncodeHello(dcHash uint32, version string) []byte {
	return NewEncoder(uint16(ClientHello)).
		PutUint32(dcHash).
		PutString(version).
		Bytes()
}
