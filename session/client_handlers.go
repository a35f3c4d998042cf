// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"github.com/opendog-project/clientagent/disconnect"
	"github.com/opendog-project/clientagent/mdbus"
	"github.com/opendog-project/clientagent/schema"
	"github.com/opendog-project/clientagent/wire"
)

// handleClientFrame dispatches one decoded client datagram according
// to the state machine in client agent design §4.4. Any returned error
// is fatal to the session; the caller translates it into a
// CLIENT_GO_GET_LOST notice.
func (s *Session) handleClientFrame(body []byte) error {
	d := wire.NewDecoder(body)
	msgType := wire.MsgType(d.GetUint16())

	if s.state == StateNew {
		if msgType != wire.ClientHello {
			return disconnect.New(wire.ReasonNoHello, "expected CLIENT_HELLO as the first message, got type %d", msgType)
		}
		return s.handleHello(d)
	}

	switch msgType {
	case wire.ClientObjectUpdateField:
		return s.handleUpdateField(d)
	case wire.ClientObjectLocation:
		if s.state != StateEstablished {
			return disconnect.New(wire.ReasonInvalidMsgType, "CLIENT_OBJECT_LOCATION requires an established session")
		}
		return s.handleLocation(d)
	case wire.ClientAddInterest:
		if s.state != StateEstablished {
			return disconnect.New(wire.ReasonInvalidMsgType, "CLIENT_ADD_INTEREST requires an established session")
		}
		return s.handleAddInterest(d)
	case wire.ClientRemoveInterest:
		if s.state != StateEstablished {
			return disconnect.New(wire.ReasonInvalidMsgType, "CLIENT_REMOVE_INTEREST requires an established session")
		}
		return s.handleRemoveInterest(d)
	default:
		return disconnect.New(wire.ReasonInvalidMsgType, "unexpected client message type %d in state %s", msgType, s.state)
	}
}

func (s *Session) handleHello(d *wire.Decoder) error {
	req, err := wire.DecodeHello(d)
	if err != nil {
		return disconnect.New(wire.ReasonTruncatedDatagram, "truncated CLIENT_HELLO")
	}
	if !d.Done() {
		return disconnect.New(wire.ReasonOversizedDatagram, "trailing bytes after CLIENT_HELLO")
	}
	if req.DCHash != s.dcHash {
		return disconnect.New(wire.ReasonBadDCHash,
			"Client DC hash mismatch: server=0x%08x, client=0x%08x", s.dcHash, req.DCHash)
	}
	if req.Version != s.version {
		return disconnect.New(wire.ReasonBadVersion,
			"Client version mismatch: server=%q, client=%q", s.version, req.Version)
	}
	s.state = StateAnonymous
	s.writeClient(wire.EncodeHelloResp())
	return nil
}

// handleUpdateField implements the field-update gate of client agent
// design §4.4.
func (s *Session) handleUpdateField(d *wire.Decoder) error {
	req, err := wire.DecodeUpdateField(d)
	if err != nil {
		return disconnect.New(wire.ReasonTruncatedDatagram, "truncated CLIENT_OBJECT_UPDATE_FIELD")
	}

	class, err := s.resolveUpdateClass(req.DoID)
	if err != nil {
		return err
	}

	field, ok := class.FieldByID(req.FieldID)
	if !ok {
		return disconnect.New(wire.ReasonForbiddenField, "unknown field %d on class %s", req.FieldID, class.Name)
	}
	if !(field.ClSend || (s.IsOwned(req.DoID) && field.OwnSend)) {
		return disconnect.New(wire.ReasonForbiddenField, "field %s is not sendable by this client", field.Name)
	}

	var probe any
	if err := schema.Unpack(req.Payload, &probe); err != nil {
		return disconnect.New(wire.ReasonTruncatedDatagram, "field %s payload failed to decode: %v", field.Name, err)
	}

	mdBody := mdbus.EncodeUpdateField(req.DoID, req.FieldID, req.Payload)
	if len(mdBody) > wire.MaxFrameLength {
		return disconnect.New(wire.ReasonOversizedDatagram, "field update for object %d exceeds the message director size limit", req.DoID)
	}
	s.bus.Publish(mdbus.Datagram{To: uint64(req.DoID), From: s.identityChannel, Body: mdBody})
	return nil
}

// resolveUpdateClass implements client agent design §4.4 step 1: an
// uberdog's class is used when the session is established or the
// uberdog is anonymous (ANONYMOUS_VIOLATION otherwise); any other
// object must be both visible and the session established.
func (s *Session) resolveUpdateClass(doID uint32) (schema.Class, error) {
	if ud, ok := s.uberdogs.Lookup(doID); ok {
		if s.state != StateEstablished && !ud.Anonymous {
			return schema.Class{}, disconnect.New(wire.ReasonAnonymousViolation,
				"object %d (uberdog %s) does not accept anonymous updates", doID, ud.Class)
		}
		class, ok := s.schema.ClassByName(ud.Class)
		if !ok {
			return schema.Class{}, disconnect.Internal("uberdog %d declares unknown class %q", doID, ud.Class)
		}
		return class, nil
	}

	if s.state != StateEstablished {
		return schema.Class{}, disconnect.New(wire.ReasonAnonymousViolation,
			"object %d is not an uberdog and the session is not established", doID)
	}
	obj, ok := s.vis.Lookup(doID)
	if !ok {
		return schema.Class{}, disconnect.New(wire.ReasonMissingObject, "object %d is not visible to this client", doID)
	}
	class, ok := s.schema.ClassByID(obj.ClassID)
	if !ok {
		return schema.Class{}, disconnect.Internal("object %d has unknown class id %d", doID, obj.ClassID)
	}
	return class, nil
}

// handleLocation implements the CLIENT_OBJECT_LOCATION permission gate
// (client agent design SUPPLEMENTED FEATURES: FORBIDDEN_RELOCATE /
// MISSING_OBJECT). Only an object's owner may relocate it; the actual
// relocation is performed by the state server, out of scope here — the
// session only forwards the validated request.
func (s *Session) handleLocation(d *wire.Decoder) error {
	req, err := wire.DecodeLocation(d)
	if err != nil {
		return disconnect.New(wire.ReasonTruncatedDatagram, "truncated CLIENT_OBJECT_LOCATION")
	}
	if !d.Done() {
		return disconnect.New(wire.ReasonOversizedDatagram, "trailing bytes after CLIENT_OBJECT_LOCATION")
	}
	if _, ok := s.vis.Lookup(req.DoID); !ok {
		return disconnect.New(wire.ReasonMissingObject, "object %d is not visible to this client", req.DoID)
	}
	if !s.IsOwned(req.DoID) {
		return disconnect.New(wire.ReasonForbiddenRelocate, "client does not own object %d", req.DoID)
	}
	s.bus.Publish(mdbus.Datagram{
		To:   uint64(req.DoID),
		From: s.identityChannel,
		Body: mdbus.EncodeSetLocation(req.DoID, req.Parent, req.Zone),
	})
	return nil
}

func (s *Session) handleAddInterest(d *wire.Decoder) error {
	req, err := wire.DecodeAddInterest(d)
	if err != nil {
		return disconnect.New(wire.ReasonTruncatedDatagram, "truncated CLIENT_ADD_INTEREST")
	}
	s.interests.AddInterest(req.InterestID, req.Context, req.Parent, req.Zones)
	return nil
}

func (s *Session) handleRemoveInterest(d *wire.Decoder) error {
	req, err := wire.DecodeRemoveInterest(d)
	if err != nil {
		return disconnect.New(wire.ReasonTruncatedDatagram, "truncated CLIENT_REMOVE_INTEREST")
	}
	s.interests.RemoveInterest(req.InterestID, req.Context, req.HasContext)
	return nil
}
