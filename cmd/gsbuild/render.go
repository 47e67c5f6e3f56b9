package main

import (
	"fmt"

	"gsbuilder/internal/collab"
	"gsbuilder/internal/gsb"
)

func renderRequirement(r gsb.SignatureRequirement) string {
	switch r.Kind {
	case collab.RequirementConformance:
		return fmt.Sprintf("%s: %s", r.Subject, r.Protocol)
	case collab.RequirementSuperclass:
		return fmt.Sprintf("%s: %s", r.Subject, r.Superclass)
	case collab.RequirementLayout:
		return fmt.Sprintf("%s: %s", r.Subject, r.Layout)
	case collab.RequirementSameType:
		return fmt.Sprintf("%s == %s", r.Subject, r.Other)
	default:
		return fmt.Sprintf("<unknown requirement on %s>", r.Subject)
	}
}
