// SPDX-License-Identifier: MIT

package qos

import (
	"testing"

	"github.com/hdds-io/hdds"
	"github.com/stretchr/testify/assert"
)

func TestPartitionSetIntersects(t *testing.T) {
	tests := []struct {
		name string
		a, b PartitionSet
		want bool
	}{
		{"both empty matches default", PartitionSet{}, PartitionSet{}, true},
		{"empty vs non-empty does not match", PartitionSet{}, PartitionSet{Patterns: []string{"A"}}, false},
		{"exact literal match", PartitionSet{Patterns: []string{"A"}}, PartitionSet{Patterns: []string{"A"}}, true},
		{"glob matches literal", PartitionSet{Patterns: []string{"A*"}}, PartitionSet{Patterns: []string{"ABC"}}, true},
		{"disjoint literals", PartitionSet{Patterns: []string{"A"}}, PartitionSet{Patterns: []string{"B"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Intersects(tt.b))
			assert.Equal(t, tt.want, tt.b.Intersects(tt.a), "partition intersection must be symmetric")
		})
	}
}

func TestMatchReliableWriterBestEffortReaderCompatible(t *testing.T) {
	writer := Default()
	writer.Reliability.Kind = Reliable
	reader := Default()
	reader.Reliability.Kind = BestEffort

	result := Match(writer, reader)
	assert.True(t, result.Compatible())
}

func TestMatchBestEffortWriterReliableReaderIncompatible(t *testing.T) {
	writer := Default()
	writer.Reliability.Kind = BestEffort
	reader := Default()
	reader.Reliability.Kind = Reliable

	result := Match(writer, reader)
	assert.False(t, result.Compatible())
	assert.Equal(t, "Reliability", result.Incompatibilities[0].Policy)
}

func TestMatchOwnershipMustMatchExactly(t *testing.T) {
	writer := Default()
	writer.Ownership.Kind = Exclusive
	reader := Default()
	reader.Ownership.Kind = Shared

	result := Match(writer, reader)
	assert.False(t, result.Compatible())
}

func TestMatchDeadlineReaderMustBeAtLeastAsLongAsWriter(t *testing.T) {
	writer := Default()
	writer.Deadline.Period = hdds.Duration{Seconds: 1}
	reader := Default()
	reader.Deadline.Period = hdds.Duration{Seconds: 2}
	assert.True(t, Match(writer, reader).Compatible())

	reader.Deadline.Period = hdds.Duration{} // shorter than writer's 1s
	assert.False(t, Match(writer, reader).Compatible())
}

func TestMatchIsStableAndSideEffectFree(t *testing.T) {
	writer := Default()
	reader := Default()
	reader.Reliability.Kind = Reliable
	writer.Reliability.Kind = Reliable

	first := Match(writer, reader)
	second := Match(writer, reader)
	assert.Equal(t, first, second)
}

func TestMatchPartitionNoCommonPattern(t *testing.T) {
	writer := Default()
	writer.Partition = PartitionSet{Patterns: []string{"sensors/*"}}
	reader := Default()
	reader.Partition = PartitionSet{Patterns: []string{"actuators/*"}}

	result := Match(writer, reader)
	assert.False(t, result.Compatible())
}

func TestMatchLatencyBudgetNeverBlocksMatch(t *testing.T) {
	writer := Default()
	writer.LatencyBudget.Duration = hdds.Duration{Seconds: 100}
	reader := Default()
	reader.LatencyBudget.Duration = hdds.Duration{}

	assert.True(t, Match(writer, reader).Compatible())
}
