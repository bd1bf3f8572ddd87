// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package effects normalizes per-study treatment-effect records onto
// comparable statistical scales and gates them for pooling.
// Implements: prd007-analysis (R2, R3, R4);
//
//	docs/ARCHITECTURE § Effect Normalization.
package effects

import (
	"strings"

	"github.com/pdiddy/meta-engine/pkg/types"
)

// Z is the critical value for 95% confidence intervals, used throughout.
const Z = 1.96

// typeAliases maps normalized free-text labels to canonical effect-type
// codes (R2.1). Keys are uppercased with whitespace runs collapsed.
var typeAliases = map[string]types.EffectType{
	"MD":                           types.EffectMD,
	"MEAN DIFFERENCE":              types.EffectMD,
	"MEAN_DIFF":                    types.EffectMD,
	"SMD":                          types.EffectSMD,
	"STANDARDIZED MEAN DIFFERENCE": types.EffectSMD,
	"STANDARDISED MEAN DIFFERENCE": types.EffectSMD,
	"HEDGE'S G":                    types.EffectSMD,
	"HEDGES G":                     types.EffectSMD,
	"COHEN D":                      types.EffectSMD,
	"COHEN'S D":                    types.EffectSMD,
	"RR":                           types.EffectRR,
	"RISK RATIO":                   types.EffectRR,
	"OR":                           types.EffectOR,
	"ODDS RATIO":                   types.EffectOR,
	"HR":                           types.EffectHR,
	"HAZARD RATIO":                 types.EffectHR,
	"LOG(RR)":                      types.EffectLogRR,
	"LOG(OR)":                      types.EffectLogOR,
	"LOG(HR)":                      types.EffectLogHR,
}

// NormalizeType canonicalizes a free-text effect-type label. Matching is
// case- and whitespace-insensitive. An unrecognized non-empty label passes
// through uppercased, treated as its own code; an empty label stays empty (R2.2).
func NormalizeType(label string) types.EffectType {
	key := strings.ToUpper(strings.Join(strings.Fields(label), " "))
	if key == "" {
		return ""
	}
	if code, ok := typeAliases[key]; ok {
		return code
	}
	return types.EffectType(key)
}
