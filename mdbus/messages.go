// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

package mdbus

import "github.com/opendog-project/clientagent/wire"

// BusMsgType identifies a message director datagram body's first
// field, distinct from wire.MsgType's client-facing numbering.
type BusMsgType uint16

const (
	ClientAgentDisconnect      BusMsgType = 1001
	ClientAgentDrop            BusMsgType = 1002
	ClientAgentSetState        BusMsgType = 1003
	ClientAgentSetSenderID     BusMsgType = 1004
	ClientAgentSendDatagram    BusMsgType = 1005
	ClientAgentOpenChannel     BusMsgType = 1006
	ClientAgentCloseChannel    BusMsgType = 1007
	ClientAgentAddPostRemove   BusMsgType = 1008
	ClientAgentClearPostRemove BusMsgType = 1009

	StateServerObjectUpdateField                BusMsgType = 2001
	StateServerObjectEnterOwnerRecv             BusMsgType = 2002
	StateServerObjectEnterzoneWithRequired      BusMsgType = 2003
	StateServerObjectEnterzoneWithRequiredOther BusMsgType = 2004
	StateServerObjectQueryZoneAllDone           BusMsgType = 2005
	StateServerObjectQueryZoneAll                BusMsgType = 2006
	StateServerObjectChangeZone                  BusMsgType = 2007
	// StateServerObjectSetLocation is a client agent addition (not
	// present in the original role's message set, see client agent
	// design CLIENT_OBJECT_LOCATION supplement): the request forwarded
	// to the state server once a client-authored CLIENT_OBJECT_LOCATION
	// passes the FORBIDDEN_RELOCATE/MISSING_OBJECT gate. The state
	// server's own relocation logic is out of scope; it is expected to
	// eventually reply with STATESERVER_OBJECT_CHANGE_ZONE.
	StateServerObjectSetLocation BusMsgType = 2008
)

// PeekMsgType reads a datagram body's leading msgtype field and
// returns it with a decoder positioned just after it, letting the
// session dispatch on the type before decoding the rest of the body.
func PeekMsgType(body []byte) (BusMsgType, *wire.Decoder) {
	d := wire.NewDecoder(body)
	return BusMsgType(d.GetUint16()), d
}

// EncodeUpdateField builds a STATESERVER_OBJECT_UPDATE_FIELD body, the
// message director mirror of wire.EncodeUpdateField used when the
// session forwards a client-authored field update to the bus (client
// agent design §4.4 step 5).
func EncodeUpdateField(doID uint32, fieldID uint16, payload []byte) []byte {
	return wire.NewEncoder(uint16(StateServerObjectUpdateField)).
		PutUint32(doID).
		PutUint16(fieldID).
		PutRaw(payload).
		Bytes()
}

// DecodeUpdateField parses a STATESERVER_OBJECT_UPDATE_FIELD body
// (msgtype already consumed by PeekMsgType).
func DecodeUpdateField(d *wire.Decoder) (doID uint32, fieldID uint16, payload []byte, err error) {
	doID = d.GetUint32()
	fieldID = d.GetUint16()
	if d.Err() != nil {
		return 0, 0, nil, d.Err()
	}
	payload = d.GetRemainder()
	return doID, fieldID, payload, nil
}

// EncodeQueryZoneAll builds STATESERVER_OBJECT_QUERY_ZONE_ALL(parent, zones).
func EncodeQueryZoneAll(parent uint32, zones []uint32) []byte {
	e := wire.NewEncoder(uint16(StateServerObjectQueryZoneAll)).PutUint32(parent)
	for _, z := range zones {
		e.PutUint32(z)
	}
	return e.Bytes()
}

// DecodeQueryZoneAllDone parses STATESERVER_OBJECT_QUERY_ZONE_ALL_DONE(parent, zones).
func DecodeQueryZoneAllDone(d *wire.Decoder) (parent uint32, zones []uint32, err error) {
	parent = d.GetUint32()
	for !d.AtEnd() {
		zones = append(zones, d.GetUint32())
	}
	return parent, zones, d.Err()
}

// EnterzoneRequired is the decoded body of
// STATESERVER_OBJECT_ENTERZONE_WITH_REQUIRED[_OTHER].
type EnterzoneRequired struct {
	Parent, Zone uint32
	ClassID      uint16
	DoID         uint32
	Required     []byte
	// Other is nil for the plain REQUIRED variant.
	Other []byte
}

// DecodeEnterzoneRequired parses the fixed header and required blob
// common to both ENTERZONE variants; callers check hasOther themselves
// based on which BusMsgType was peeked.
func DecodeEnterzoneRequired(d *wire.Decoder, hasOther bool) (EnterzoneRequired, error) {
	ez := EnterzoneRequired{
		Parent:  d.GetUint32(),
		Zone:    d.GetUint32(),
		ClassID: d.GetUint16(),
		DoID:    d.GetUint32(),
	}
	if d.Err() != nil {
		return ez, d.Err()
	}
	if hasOther {
		ez.Required = d.GetBlob()
		ez.Other = d.GetRemainder()
	} else {
		ez.Required = d.GetRemainder()
	}
	return ez, d.Err()
}

// DecodeChangeZone parses STATESERVER_OBJECT_CHANGE_ZONE(do_id,
// new_parent, new_zone, old_parent, old_zone).
type ChangeZone struct {
	DoID                         uint32
	NewParent, NewZone           uint32
	OldParent, OldZone           uint32
}

func DecodeChangeZone(d *wire.Decoder) (ChangeZone, error) {
	cz := ChangeZone{
		DoID:      d.GetUint32(),
		NewParent: d.GetUint32(),
		NewZone:   d.GetUint32(),
		OldParent: d.GetUint32(),
		OldZone:   d.GetUint32(),
	}
	return cz, d.Err()
}

// EncodeSetLocation builds a STATESERVER_OBJECT_SET_LOCATION request.
func EncodeSetLocation(doID, parent, zone uint32) []byte {
	return wire.NewEncoder(uint16(StateServerObjectSetLocation)).
		PutUint32(doID).PutUint32(parent).PutUint32(zone).Bytes()
}

// DecodeSetState parses CLIENTAGENT_SET_STATE(state).
func DecodeSetState(d *wire.Decoder) (uint8, error) {
	return d.GetUint8(), d.Err()
}

// DecodeSetSenderID parses CLIENTAGENT_SET_SENDER_ID(channel).
func DecodeSetSenderID(d *wire.Decoder) (uint64, error) {
	return d.GetUint64(), d.Err()
}

// DecodeOpenCloseChannel parses CLIENTAGENT_OPEN_CHANNEL /
// CLIENTAGENT_CLOSE_CHANNEL(channel).
func DecodeOpenCloseChannel(d *wire.Decoder) (uint64, error) {
	return d.GetUint64(), d.Err()
}

// DecodeDisconnect parses CLIENTAGENT_DISCONNECT(reason, message).
func DecodeDisconnect(d *wire.Decoder) (reason wire.DisconnectReason, message string, err error) {
	reason = wire.DisconnectReason(d.GetUint16())
	message = d.GetString()
	return reason, message, d.Err()
}

// DecodeSendDatagram parses CLIENTAGENT_SEND_DATAGRAM(payload), an
// opaque already-encoded client-facing frame body to relay verbatim.
func DecodeSendDatagram(d *wire.Decoder) ([]byte, error) {
	return d.GetRemainder(), d.Err()
}

// DecodeAddPostRemove parses CLIENTAGENT_ADD_POST_REMOVE(to, from,
// body): a full datagram to publish verbatim at session teardown.
func DecodeAddPostRemove(d *wire.Decoder) (Datagram, error) {
	dg := Datagram{To: d.GetUint64(), From: d.GetUint64()}
	if d.Err() != nil {
		return Datagram{}, d.Err()
	}
	dg.Body = d.GetRemainder()
	return dg, nil
}
