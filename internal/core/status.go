package core

// DeriveStatus computes a circle's lifecycle status from participant state.
// Archived is an explicit soft-delete override that short-circuits the
// derivation; it can never be produced from participant state alone.
//
// The stored status field is the single deliberate exception to the
// "recompute on read" rule: callers write the derived value back after payout
// toggles and bulk edit saves, because archived has no formula.
func DeriveStatus(x *Xitique) Status {
	if x.Archived {
		return StatusArchived
	}
	if x.Kind == KindGroup && len(x.Participants) > 0 {
		completed := true
		for _, p := range x.Participants {
			if !p.Received {
				completed = false
				break
			}
		}
		if completed {
			return StatusCompleted
		}
	}
	for _, p := range x.Participants {
		if p.EffectiveContribution(x.BaseAmount).Cents != x.BaseAmount.Cents {
			return StatusRisk
		}
	}
	return StatusActive
}
