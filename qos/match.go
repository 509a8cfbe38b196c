// SPDX-License-Identifier: MIT

package qos

// Incompatibility names one policy that failed the RxO check, for
// status-event reporting (RequestedIncompatibleQos/OfferedIncompatibleQos).
type Incompatibility struct {
	Policy string
	Reason string
}

// MatchResult is the outcome of Match: compatible, or the full list of
// policies that failed so the caller can report every mismatch at
// once rather than stopping at the first.
type MatchResult struct {
	Incompatibilities []Incompatibility
}

// Compatible reports whether every checked policy passed.
func (r MatchResult) Compatible() bool {
	return len(r.Incompatibilities) == 0
}

// Match runs the discovery-time QoS compatibility check between a
// writer's offered QoS and a reader's requested QoS. It is
// side-effect-free and its result depends only on (writerQoS,
// readerQoS) — calling it twice with the same pair always yields the
// same verdict, and Match(w, r) considering partitions is symmetric
// with Match(r's writer view, w's reader view) since partition
// intersection itself is symmetric.
func Match(writer, reader QoS) MatchResult {
	var result MatchResult
	fail := func(policy, reason string) {
		result.Incompatibilities = append(result.Incompatibilities, Incompatibility{Policy: policy, Reason: reason})
	}

	if writer.Reliability.Kind < reader.Reliability.Kind {
		fail("Reliability", "writer offers BestEffort but reader requires Reliable")
	}
	if writer.Durability.Kind < reader.Durability.Kind {
		fail("Durability", "writer's durability kind weaker than reader requires")
	}
	if reader.Deadline.Period.ToStdDuration() < writer.Deadline.Period.ToStdDuration() {
		fail("Deadline", "reader's requested deadline period shorter than writer offers")
	}
	if writer.Ownership.Kind != reader.Ownership.Kind {
		fail("Ownership", "ownership kind must match exactly")
	}
	if !livelinessCompatible(writer.Liveliness, reader.Liveliness) {
		fail("Liveliness", "writer's liveliness kind/lease incompatible with reader's request")
	}
	if writer.Presentation.AccessScope < reader.Presentation.AccessScope {
		fail("Presentation", "writer's access scope narrower than reader requests")
	}
	if reader.Presentation.CoherentAccess && !writer.Presentation.CoherentAccess {
		fail("Presentation", "reader requests coherent access, writer does not offer it")
	}
	if reader.Presentation.OrderedAccess && !writer.Presentation.OrderedAccess {
		fail("Presentation", "reader requests ordered access, writer does not offer it")
	}
	if writer.DestinationOrder.Kind < reader.DestinationOrder.Kind {
		fail("DestinationOrder", "writer's destination order weaker than reader requires")
	}
	if !writer.Partition.Intersects(reader.Partition) {
		fail("Partition", "no partition pattern in common")
	}
	// LatencyBudget is informative only — never a match blocker.

	return result
}

func livelinessCompatible(writer, reader Liveliness) bool {
	if writer.Kind < reader.Kind {
		return false
	}
	return writer.LeaseDuration.ToStdDuration() <= reader.LeaseDuration.ToStdDuration()
}
