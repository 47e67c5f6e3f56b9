package gsb

import (
	"gsbuilder/internal/collab"
	"gsbuilder/internal/types"
)

// delayedRequirement is a requirement that resolve() could not place
// because it named a generic-parameter key the builder hasn't seen yet
// (spec §4.6: "None of resolve's callers know, or need to know, whether
// a requirement they just added was accepted immediately or only after a
// few more parameters arrived").
type delayedRequirement struct {
	Kind       collab.RequirementKind
	Subject    types.Type
	Protocol   collab.ProtocolName
	Superclass types.Type
	LayoutV    types.Layout
	Other      types.Type
	Source     *RequirementSource
}

func (b *Builder) queueDelayed(d delayedRequirement) {
	b.delayed = append(b.delayed, d)
}

// processDelayed implements spec §4.6's fixed-point loop: repeatedly
// retry every still-delayed requirement until a full pass makes no
// progress. Requirements that resolve are applied for effect; requirements
// that remain unresolved at the end of the loop stay in the queue and are
// not reported through the sink.
func (b *Builder) processDelayed() {
	for {
		if len(b.delayed) == 0 {
			return
		}
		pending := b.delayed
		b.delayed = nil
		progressed := false

		for _, d := range pending {
			before := len(b.delayed)
			result := b.applyDelayed(d)
			if result != ResultUnresolved {
				progressed = true
			} else if len(b.delayed) == before {
				// re-queue unchanged; applyDelayed's own resolve() call
				// already appended a replacement if it re-delayed, so
				// only re-append here when it returned Unresolved
				// without re-queuing itself (shouldn't happen, but keep
				// the requirement rather than drop it silently).
				b.delayed = append(b.delayed, d)
			}
		}

		if !progressed {
			return
		}
	}
}

func (b *Builder) applyDelayed(d delayedRequirement) ConstraintResult {
	switch d.Kind {
	case collab.RequirementConformance:
		return b.AddConformance(d.Subject, d.Protocol, d.Source)
	case collab.RequirementSuperclass:
		return b.AddSuperclass(d.Subject, d.Superclass, d.Source)
	case collab.RequirementLayout:
		return b.AddLayout(d.Subject, d.LayoutV, d.Source)
	case collab.RequirementSameType:
		return b.AddSameType(d.Subject, d.Other, d.Source)
	default:
		return ResultResolved
	}
}
