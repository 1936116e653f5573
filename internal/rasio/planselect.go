package rasio

import "errors"

// ErrNoValidPlan is returned by SelectPrimaryPlan when every candidate has
// encroachments.
var ErrNoValidPlan = errors.New("no valid plan without encroachments")

// SelectPrimaryPlan chooses the plan a source model's extraction proceeds
// from: the active plan if it has no encroachments; otherwise the first
// plan (in the given order) without encroachments; otherwise
// ErrNoValidPlan.
func SelectPrimaryPlan(plans []PlanDocument) (*PlanDocument, error) {
	for i := range plans {
		if plans[i].Active && !plans[i].HasEncroachments {
			return &plans[i], nil
		}
	}

	for i := range plans {
		if !plans[i].HasEncroachments {
			return &plans[i], nil
		}
	}

	return nil, ErrNoValidPlan
}
