// SPDX-License-Identifier: MIT

// Package qos implements the 22 standardised DDS QoS policies and the
// writer/reader compatibility matcher ("RxO": requested equal or
// weaker than offered) that discovery runs at match time.
package qos

import (
	"path/filepath"

	"github.com/hdds-io/hdds"
)

// ReliabilityKind selects best-effort or reliable delivery.
type ReliabilityKind int

const (
	BestEffort ReliabilityKind = 1
	Reliable   ReliabilityKind = 2
)

// DurabilityKind selects how long a writer retains samples for late
// joiners.
type DurabilityKind int

const (
	Volatile DurabilityKind = iota
	TransientLocal
	Transient
	Persistent
)

// HistoryKind selects how many samples per instance a cache retains.
type HistoryKind int

const (
	KeepLastKind HistoryKind = iota
	KeepAllKind
)

// OwnershipKind selects whether multiple writers may publish the same
// instance concurrently.
type OwnershipKind int

const (
	Shared OwnershipKind = iota
	Exclusive
)

// LivelinessKind selects how a writer asserts it is still alive.
type LivelinessKind int

const (
	LivelinessAutomatic LivelinessKind = iota
	LivelinessManualByParticipant
	LivelinessManualByTopic
)

// PresentationAccessScope selects the granularity at which a
// coherent/ordered set of changes is presented to the reader.
type PresentationAccessScope int

const (
	PresentationInstance PresentationAccessScope = iota
	PresentationTopic
	PresentationGroup
)

// DestinationOrderKind selects whether samples are ordered by
// reception or by source timestamp.
type DestinationOrderKind int

const (
	ByReceptionTimestamp DestinationOrderKind = iota
	BySourceTimestamp
)

// Reliability is the Reliability QoS policy.
type Reliability struct {
	Kind        ReliabilityKind
	MaxBlocking hdds.Duration
}

// Durability is the Durability QoS policy.
type Durability struct {
	Kind DurabilityKind
}

// DurabilityService configures the resource limits backing
// Transient/Persistent durability.
type DurabilityService struct {
	ServiceCleanupDelay hdds.Duration
	HistoryKind         HistoryKind
	HistoryDepth        int
	MaxSamples          int
	MaxInstances        int
	MaxSamplesPerInst   int
}

// History is the History QoS policy.
type History struct {
	Kind  HistoryKind
	Depth int // meaningful only when Kind == KeepLastKind
}

// Deadline is the Deadline QoS policy: the maximum interval between
// samples on an instance.
type Deadline struct {
	Period hdds.Duration
}

// LatencyBudget is the LatencyBudget QoS policy; informative only —
// it never blocks a match.
type LatencyBudget struct {
	Duration hdds.Duration
}

// Ownership is the Ownership QoS policy.
type Ownership struct {
	Kind OwnershipKind
}

// OwnershipStrength ranks writers under Exclusive ownership; the
// strongest live writer's samples win.
type OwnershipStrength struct {
	Value int32
}

// Liveliness is the Liveliness QoS policy.
type Liveliness struct {
	Kind            LivelinessKind
	LeaseDuration   hdds.Duration
}

// TimeBasedFilter throttles delivery to at most one sample per
// MinimumSeparation, reader-side only.
type TimeBasedFilter struct {
	MinimumSeparation hdds.Duration
}

// PartitionSet is the Partition QoS policy: a set of glob patterns.
// An empty set denotes the default partition, matching only another
// empty set.
type PartitionSet struct {
	Patterns []string
}

// Intersects reports whether any pattern in p matches any pattern in
// other (patterns are compared symmetrically: p's pattern against
// other's literal name and vice versa), per the partition-matching
// rule in the discovery matcher.
func (p PartitionSet) Intersects(other PartitionSet) bool {
	if len(p.Patterns) == 0 && len(other.Patterns) == 0 {
		return true
	}
	for _, a := range p.Patterns {
		for _, b := range other.Patterns {
			if globMatch(a, b) || globMatch(b, a) || a == b {
				return true
			}
		}
	}
	return false
}

func globMatch(pattern, name string) bool {
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}

// Presentation is the Presentation QoS policy.
type Presentation struct {
	AccessScope    PresentationAccessScope
	CoherentAccess bool
	OrderedAccess  bool
}

// DestinationOrder is the DestinationOrder QoS policy.
type DestinationOrder struct {
	Kind DestinationOrderKind
}

// ResourceLimits bounds a cache's memory footprint.
type ResourceLimits struct {
	MaxSamples        int // 0 means unbounded
	MaxInstances      int
	MaxSamplesPerInst int
	MaxBytes          int64
}

// Lifespan is the Lifespan QoS policy: samples older than Duration
// since arrival are never delivered and are evicted on the next tick.
type Lifespan struct {
	Duration hdds.Duration
}

// TransportPriority hints underlying transports at relative send
// priority; purely advisory.
type TransportPriority struct {
	Value int32
}

// EntityFactory controls whether newly created entities start enabled.
type EntityFactory struct {
	AutoenableCreatedEntities bool
}

// WriterDataLifecycle controls instance disposal behavior on the
// writer side.
type WriterDataLifecycle struct {
	AutodisposeUnregisteredInstances bool
}

// ReaderDataLifecycle controls when a reader purges instance state
// after it becomes not-alive.
type ReaderDataLifecycle struct {
	AutopurgeNoWriterDelay   hdds.Duration
	AutopurgeDisposedDelay   hdds.Duration
}

// UserData, TopicData, GroupData carry opaque application metadata,
// exchanged but never interpreted by the core.
type UserData struct{ Value []byte }
type TopicData struct{ Value []byte }
type GroupData struct{ Value []byte }

// TypeConsistency is the TypeConsistencyEnforcement policy: how the
// type assignability check treats FINAL/APPENDABLE/MUTABLE mismatches.
type TypeConsistencyKind int

const (
	DisallowTypeCoercion TypeConsistencyKind = iota
	AllowTypeCoercion
)

type TypeConsistency struct {
	Kind                       TypeConsistencyKind
	IgnoreSequenceBounds       bool
	IgnoreStringBounds         bool
	IgnoreMemberNames          bool
	PreventTypeWidening        bool
	ForceTypeValidation        bool
}

// QoS aggregates all 22 standardised policies an endpoint carries.
type QoS struct {
	Reliability         Reliability
	Durability          Durability
	DurabilityService   DurabilityService
	History             History
	Deadline            Deadline
	LatencyBudget       LatencyBudget
	Ownership           Ownership
	OwnershipStrength   OwnershipStrength
	Liveliness          Liveliness
	TimeBasedFilter     TimeBasedFilter
	Partition           PartitionSet
	Presentation        Presentation
	DestinationOrder    DestinationOrder
	ResourceLimits      ResourceLimits
	Lifespan            Lifespan
	TransportPriority   TransportPriority
	EntityFactory       EntityFactory
	WriterDataLifecycle WriterDataLifecycle
	ReaderDataLifecycle ReaderDataLifecycle
	UserData            UserData
	TopicData           TopicData
	GroupData           GroupData
	TypeConsistency     TypeConsistency
}

// Default returns the QoS defaults the wire protocol assumes absent
// an explicit PID: BestEffort, Volatile, KeepLast(1), Shared ownership.
func Default() QoS {
	return QoS{
		Reliability: Reliability{Kind: BestEffort},
		Durability:  Durability{Kind: Volatile},
		History:     History{Kind: KeepLastKind, Depth: 1},
		Deadline:    Deadline{Period: hdds.DurationInfinite},
		Ownership:   Ownership{Kind: Shared},
		Liveliness:  Liveliness{Kind: LivelinessAutomatic, LeaseDuration: hdds.DurationInfinite},
		Lifespan:    Lifespan{Duration: hdds.DurationInfinite},
	}
}
