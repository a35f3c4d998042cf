// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"github.com/opendog-project/clientagent/mdbus"
	"github.com/opendog-project/clientagent/wire"
)

// handleBusDatagram implements the server-to-client mapping table of
// client agent design §4.4. A returned error other than errTeardown
// indicates a malformed body from an otherwise-recognized message
// type; the caller logs it and drops the datagram without terminating
// the session (the message director is a trusted internal collaborator,
// but a bad body should not take a client's connection down).
func (s *Session) handleBusDatagram(dg mdbus.Datagram) error {
	msgType, d := mdbus.PeekMsgType(dg.Body)

	switch msgType {
	case mdbus.ClientAgentDisconnect:
		reason, message, err := mdbus.DecodeDisconnect(d)
		if err != nil {
			return err
		}
		s.writeClient(wire.EncodeGoGetLost(reason, message))
		return errTeardown

	case mdbus.ClientAgentDrop:
		return errTeardown

	case mdbus.ClientAgentSetState:
		raw, err := mdbus.DecodeSetState(d)
		if err != nil {
			return err
		}
		state, ok := stateFromWire(raw)
		if !ok {
			return errBadStateValue(raw)
		}
		s.state = state
		return nil

	case mdbus.ClientAgentSetSenderID:
		newChannel, err := mdbus.DecodeSetSenderID(d)
		if err != nil {
			return err
		}
		s.reassignIdentity(newChannel)
		return nil

	case mdbus.ClientAgentSendDatagram:
		payload, err := mdbus.DecodeSendDatagram(d)
		if err != nil {
			return err
		}
		s.writeClient(payload)
		return nil

	case mdbus.ClientAgentOpenChannel:
		ch, err := mdbus.DecodeOpenCloseChannel(d)
		if err != nil {
			return err
		}
		s.Subscribe(ch)
		return nil

	case mdbus.ClientAgentCloseChannel:
		ch, err := mdbus.DecodeOpenCloseChannel(d)
		if err != nil {
			return err
		}
		s.Unsubscribe(ch)
		return nil

	case mdbus.ClientAgentAddPostRemove:
		pr, err := mdbus.DecodeAddPostRemove(d)
		if err != nil {
			return err
		}
		s.postRemove = append(s.postRemove, pr)
		return nil

	case mdbus.ClientAgentClearPostRemove:
		s.postRemove = nil
		return nil

	case mdbus.StateServerObjectUpdateField:
		doID, fieldID, payload, err := mdbus.DecodeUpdateField(d)
		if err != nil {
			return err
		}
		if dg.From == s.identityChannel {
			return nil // P4 own-echo suppression
		}
		s.writeClient(wire.EncodeUpdateField(doID, fieldID, payload))
		return nil

	case mdbus.StateServerObjectEnterOwnerRecv:
		ez, err := mdbus.DecodeEnterzoneRequired(d, true)
		if err != nil {
			return err
		}
		s.ownedObjects[ez.DoID] = struct{}{}
		s.vis.Observe(ez.DoID, ez.Parent, ez.Zone, ez.ClassID)
		s.writeClient(wire.EncodeCreateObjectRequiredOtherOwner(ez.Parent, ez.Zone, ez.ClassID, ez.DoID, ez.Required, ez.Other))
		return nil

	case mdbus.StateServerObjectEnterzoneWithRequired:
		ez, err := mdbus.DecodeEnterzoneRequired(d, false)
		if err != nil {
			return err
		}
		if !s.IsOwned(ez.DoID) {
			s.vis.Observe(ez.DoID, ez.Parent, ez.Zone, ez.ClassID)
			s.writeClient(wire.EncodeCreateObjectRequired(ez.Parent, ez.Zone, ez.ClassID, ez.DoID, ez.Required))
		}
		return nil

	case mdbus.StateServerObjectEnterzoneWithRequiredOther:
		ez, err := mdbus.DecodeEnterzoneRequired(d, true)
		if err != nil {
			return err
		}
		if !s.IsOwned(ez.DoID) {
			s.vis.Observe(ez.DoID, ez.Parent, ez.Zone, ez.ClassID)
			s.writeClient(wire.EncodeCreateObjectRequiredOther(ez.Parent, ez.Zone, ez.ClassID, ez.DoID, ez.Required, ez.Other))
		}
		return nil

	case mdbus.StateServerObjectQueryZoneAllDone:
		parent, zones, err := mdbus.DecodeQueryZoneAllDone(d)
		if err != nil {
			return err
		}
		s.interests.QueryDone(parent, zones)
		return nil

	case mdbus.StateServerObjectChangeZone:
		cz, err := mdbus.DecodeChangeZone(d)
		if err != nil {
			return err
		}
		s.vis.Relocate(cz.DoID, cz.NewParent, cz.NewZone)
		if s.interests.StillVisible(cz.NewParent, cz.NewZone) || s.IsOwned(cz.DoID) {
			s.writeClient(wire.EncodeLocation(cz.DoID, cz.NewParent, cz.NewZone))
		} else {
			s.writeClient(wire.EncodeObjectDisable(cz.DoID))
			s.vis.Release(cz.DoID)
		}
		return nil

	default:
		s.log.Error("unknown message director datagram type, dropping", "msgtype", msgType)
		return nil
	}
}

// reassignIdentity implements CLIENTAGENT_SET_SENDER_ID (client agent
// design §4.5): the first reassignment unsubscribes the allocated
// channel only if it was already independently released; otherwise it
// only drops the allocated-flag. Every reassignment after the first
// unsubscribes the previous identity channel. The allocated channel
// itself stays reserved in the allocator until teardown regardless.
func (s *Session) reassignIdentity(newChannel uint64) {
	if !s.hadReassignment {
		s.hadReassignment = true
		if s.allocatedReleased {
			s.Unsubscribe(s.allocatedChannel)
		}
		s.identityIsAllocated = false
	} else {
		s.Unsubscribe(s.identityChannel)
	}
	s.identityChannel = newChannel
	s.Subscribe(newChannel)
}

func stateFromWire(v uint8) (State, bool) {
	switch v {
	case 0:
		return StateNew, true
	case 1:
		return StateAnonymous, true
	case 2:
		return StateEstablished, true
	default:
		return StateNew, false
	}
}

func errBadStateValue(v uint8) error {
	return disconnectStateErr{v}
}

type disconnectStateErr struct{ v uint8 }

func (e disconnectStateErr) Error() string {
	return "session: CLIENTAGENT_SET_STATE with unrecognized state value"
}
