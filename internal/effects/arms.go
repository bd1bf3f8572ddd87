// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package effects

import (
	"strings"

	"github.com/pdiddy/meta-engine/pkg/types"
)

// interventionTokens and controlTokens are the fixed label fragments that
// classify a trial arm by role (R3.3). Matching is case-insensitive
// substring containment.
var (
	interventionTokens = []string{"intervention", "treated", "exposed"}
	controlTokens      = []string{"control", "placebo", "unexposed"}
)

// ClassifyArm assigns a role from the arm's printed label. A label matching
// both token sets (e.g. "treated control") is ambiguous and stays
// unclassified. Note "unexposed" contains "exposed", so control tokens are
// tested on the label before intervention containment is trusted.
func ClassifyArm(label string) types.ArmRole {
	l := strings.ToLower(label)

	ctrl := containsAny(l, controlTokens)
	// "unexposed" would otherwise satisfy the "exposed" intervention token.
	interv := !strings.Contains(l, "unexposed") && containsAny(l, interventionTokens)

	switch {
	case interv && ctrl:
		return types.ArmUnclassified
	case interv:
		return types.ArmIntervention
	case ctrl:
		return types.ArmControl
	default:
		return types.ArmUnclassified
	}
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
