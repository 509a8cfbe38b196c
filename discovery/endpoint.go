// SPDX-License-Identifier: MIT

package discovery

import (
	"sync"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/qos"
)

// Role distinguishes a discovered endpoint as a writer or reader.
type Role int

const (
	RoleWriter Role = iota
	RoleReader
)

// EndpointInfo is the discovery layer's view of a discovered writer or
// reader, built from SEDP announcements (local endpoints are entered
// directly by the application layer, without a wire round-trip).
type EndpointInfo struct {
	GUID            hdds.GUID
	ParticipantGUID hdds.GUID
	Role            Role
	TopicName       string
	TypeName        string
	QoS             qos.QoS
	UnicastLocators []hdds.Locator
}

// MatchEvent reports a compatible writer/reader pairing discovered on
// the same topic name.
type MatchEvent struct {
	Writer EndpointInfo
	Reader EndpointInfo
}

// EndpointRegistry tracks every known local and remote endpoint,
// indexed by topic name, and runs QoS matching whenever a new endpoint
// of the opposite role appears on the same topic.
type EndpointRegistry struct {
	mu    sync.RWMutex
	byTopic map[string][]EndpointInfo
	byGUID  map[hdds.GUID]EndpointInfo

	onMatch   func(MatchEvent)
	onUnmatch func(MatchEvent)
}

// NewEndpointRegistry builds an empty registry. onMatch/onUnmatch may
// be nil if the caller doesn't need notification (e.g. in tests that
// only inspect the registry through Get/Topic).
func NewEndpointRegistry(onMatch, onUnmatch func(MatchEvent)) *EndpointRegistry {
	return &EndpointRegistry{
		byTopic:   make(map[string][]EndpointInfo),
		byGUID:    make(map[hdds.GUID]EndpointInfo),
		onMatch:   onMatch,
		onUnmatch: onUnmatch,
	}
}

// Add registers an endpoint (local or remote) and runs matching
// against every existing opposite-role endpoint on the same topic,
// firing onMatch for each compatible pair.
func (r *EndpointRegistry) Add(ep EndpointInfo) {
	r.mu.Lock()
	peers := append([]EndpointInfo(nil), r.byTopic[ep.TopicName]...)
	r.byTopic[ep.TopicName] = append(r.byTopic[ep.TopicName], ep)
	r.byGUID[ep.GUID] = ep
	r.mu.Unlock()

	for _, peer := range peers {
		if peer.Role == ep.Role {
			continue
		}
		if event, ok := matchPair(ep, peer); ok && r.onMatch != nil {
			r.onMatch(event)
		}
	}
}

// Remove deregisters an endpoint (on disposal or its owning
// participant's expiry), firing onUnmatch against every opposite-role
// peer it had previously matched on the same topic.
func (r *EndpointRegistry) Remove(guid hdds.GUID) {
	r.mu.Lock()
	ep, ok := r.byGUID[guid]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.byGUID, guid)
	topic := r.byTopic[ep.TopicName]
	kept := topic[:0]
	var peers []EndpointInfo
	for _, other := range topic {
		if other.GUID == guid {
			continue
		}
		kept = append(kept, other)
		if other.Role != ep.Role {
			peers = append(peers, other)
		}
	}
	r.byTopic[ep.TopicName] = kept
	r.mu.Unlock()

	for _, peer := range peers {
		if event, ok := matchPair(ep, peer); ok && r.onUnmatch != nil {
			r.onUnmatch(event)
		}
	}
}

// RemoveParticipant removes every endpoint owned by participantGUID,
// used when its lease expires.
func (r *EndpointRegistry) RemoveParticipant(participantGUID hdds.GUID) {
	r.mu.RLock()
	var owned []hdds.GUID
	for guid, ep := range r.byGUID {
		if ep.ParticipantGUID == participantGUID {
			owned = append(owned, guid)
		}
	}
	r.mu.RUnlock()

	for _, guid := range owned {
		r.Remove(guid)
	}
}

// Get looks up an endpoint by its own GUID.
func (r *EndpointRegistry) Get(guid hdds.GUID) (EndpointInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.byGUID[guid]
	return ep, ok
}

// Topic returns a snapshot of every endpoint currently registered on
// topicName, both roles.
func (r *EndpointRegistry) Topic(topicName string) []EndpointInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EndpointInfo(nil), r.byTopic[topicName]...)
}

// matchPair orders a and b into {writer, reader} and runs the QoS
// compatibility check, returning ok=false if either isn't applicable
// (same role, different topic — callers only pass opposite-role,
// same-topic pairs, but this stays defensive) or QoS is incompatible.
func matchPair(a, b EndpointInfo) (MatchEvent, bool) {
	if a.TopicName != b.TopicName || a.Role == b.Role {
		return MatchEvent{}, false
	}
	if !typeCompatible(a.TypeName, b.TypeName) {
		return MatchEvent{}, false
	}
	writer, reader := a, b
	if writer.Role != RoleWriter {
		writer, reader = b, a
	}
	result := qos.Match(writer.QoS, reader.QoS)
	if !result.Compatible() {
		return MatchEvent{}, false
	}
	return MatchEvent{Writer: writer, Reader: reader}, true
}
