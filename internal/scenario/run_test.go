package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gsbuilder/internal/collab"
)

const sequenceScenario = `
module: Test
generic_parameters:
  - name: T
protocols:
  Sequence:
    associated_types:
      - name: Element
    requirement_signature:
      - subject: Self.Element
        conforms: Equatable
  Equatable: {}
requirements:
  - subject: T
    conforms: Sequence
  - subject: T
    same_type: Array<Int>
conformances:
  - type: Array<Int>
    protocol: Sequence
    witnesses:
      Element: Int
  - type: Int
    protocol: Equatable
    abstract: true
`

func TestRun_SequenceConformancePropagatesElementWitness(t *testing.T) {
	f, err := Parse([]byte(sequenceScenario))
	require.NoError(t, err)

	result, err := Run(f)
	require.NoError(t, err)

	foundSameType := false
	for _, req := range result.Signature {
		if req.Kind == collab.RequirementSameType && req.Subject.String() == "T" {
			foundSameType = true
			assert.Equal(t, "Array<Int>", req.Other.String())
		}
	}
	assert.True(t, foundSameType, "expected T == Array<Int> in the emitted signature: %+v", result.Signature)

	for _, req := range result.Signature {
		assert.NotContains(t, req.Subject.String(), "T.Element",
			"nested same-type edge should be pruned once its parent is concrete")
	}
}

const conflictScenario = `
module: Test
generic_parameters:
  - name: T
requirements:
  - subject: T
    layout: AnyObject
  - subject: T
    layout: _Trivial
`

func TestRun_ConflictingLayoutProducesDiagnostic(t *testing.T) {
	f, err := Parse([]byte(conflictScenario))
	require.NoError(t, err)

	result, err := Run(f)
	require.NoError(t, err)

	foundConflict := false
	for _, d := range result.Diagnostics {
		if d.Kind == collab.DiagConflicting {
			foundConflict = true
		}
	}
	assert.True(t, foundConflict, "expected a conflicting-layout diagnostic: %+v", result.Diagnostics)
}

func TestParse_RejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("generic_parameters: [this is not a list of maps"))
	assert.Error(t, err)
}
