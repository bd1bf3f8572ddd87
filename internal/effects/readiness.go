// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package effects

import (
	"math"

	"github.com/pdiddy/meta-engine/pkg/types"
)

// Classify gates a record for pooling (R4.1-R4.3). A record is Ready iff
// its estimate is finite and its standard error is derivable. When both are
// missing, the estimate is reported first.
func Classify(estimate, se float64) types.Readiness {
	if math.IsNaN(estimate) || math.IsInf(estimate, 0) {
		return types.NotReadyNoEstimate
	}
	if math.IsNaN(se) {
		return types.NotReadyMissingCI
	}
	return types.Ready
}
