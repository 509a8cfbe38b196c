// SPDX-License-Identifier: MIT

// Package discovery implements the two-stage SPDP/SEDP protocol that
// lets participants find each other and each others' endpoints: a
// participant database with lease expiry, an endpoint registry that
// runs QoS-compatible matching, and the periodic announce/lease-tick
// background tasks that keep both current.
package discovery

import (
	"sync"
	"time"

	"github.com/hdds-io/hdds"
)

// ParticipantInfo is the discovery layer's view of a remote
// participant, built from its SPDP announcements.
type ParticipantInfo struct {
	GUID                hdds.GUID
	LeaseDuration       hdds.Duration
	MetatrafficLocators []hdds.Locator
	DefaultLocators     []hdds.Locator
	VendorID            hdds.VendorID
	ProtocolVersion     uint16
	LastSeen            time.Time
}

// expired reports whether the participant has not been heard from
// within 1.5x its advertised lease duration, as of now.
func (p ParticipantInfo) expired(now time.Time) bool {
	if p.LeaseDuration.IsInfinite() {
		return false
	}
	budget := time.Duration(1.5 * float64(p.LeaseDuration.ToStdDuration()))
	return now.Sub(p.LastSeen) > budget
}

// ParticipantDB is the read-mostly table of known remote
// participants, guarded by a reader-writer lock: the lease tracker and
// SPDP handler are its only writers, everything else reads.
type ParticipantDB struct {
	mu           sync.RWMutex
	participants map[hdds.GUIDPrefix]*ParticipantInfo
}

// NewParticipantDB builds an empty database.
func NewParticipantDB() *ParticipantDB {
	return &ParticipantDB{participants: make(map[hdds.GUIDPrefix]*ParticipantInfo)}
}

// OnSPDP records info as freshly seen, creating the entry on first
// contact or refreshing LastSeen (and any changed fields) otherwise.
// Returns true if this is a newly discovered participant.
func (db *ParticipantDB) OnSPDP(info ParticipantInfo) (isNew bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, existed := db.participants[info.GUID.Prefix]
	stored := info
	db.participants[info.GUID.Prefix] = &stored
	return !existed
}

// Get looks up a participant by GUID prefix.
func (db *ParticipantDB) Get(prefix hdds.GUIDPrefix) (ParticipantInfo, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	p, ok := db.participants[prefix]
	if !ok {
		return ParticipantInfo{}, false
	}
	return *p, true
}

// Remove deletes a participant explicitly (e.g. on a disposal
// message), returning whether it was present.
func (db *ParticipantDB) Remove(prefix hdds.GUIDPrefix) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.participants[prefix]; !ok {
		return false
	}
	delete(db.participants, prefix)
	return true
}

// All returns a snapshot of every known participant.
func (db *ParticipantDB) All() []ParticipantInfo {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]ParticipantInfo, 0, len(db.participants))
	for _, p := range db.participants {
		out = append(out, *p)
	}
	return out
}

// Count reports how many participants are currently known.
func (db *ParticipantDB) Count() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.participants)
}

// ExpireStale removes every participant whose lease has lapsed as of
// now, returning the removed entries so the caller can dispose of
// their endpoints and fire its expiry callback.
func (db *ParticipantDB) ExpireStale(now time.Time) []ParticipantInfo {
	db.mu.Lock()
	defer db.mu.Unlock()

	var expired []ParticipantInfo
	for prefix, p := range db.participants {
		if p.expired(now) {
			expired = append(expired, *p)
			delete(db.participants, prefix)
		}
	}
	return expired
}
