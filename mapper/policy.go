package mapper

import (
	"fmt"

	"github.com/zero-day-ai/semgate/semerr"
)

// Decision is what a caller should do with a translation.
type Decision string

const (
	// DecisionAutoApply means the translation may be applied without review.
	DecisionAutoApply Decision = "auto_apply"
	// DecisionEscalate means a human should confirm the translation.
	DecisionEscalate Decision = "escalate"
	// DecisionReject means the translation must not be used.
	DecisionReject Decision = "reject"
)

// Default confidence thresholds.
const (
	DefaultFuzzyThreshold      = 0.6
	DefaultApprovalThreshold   = 0.7
	DefaultEscalationThreshold = 0.5
)

// Policy turns a confidence into a Decision: at or above Approval the
// translation is applied, in [Escalation, Approval) it is escalated, below
// Escalation it is rejected. Ungrounded results are always rejected.
type Policy struct {
	Approval   float64 `json:"approval_confidence_threshold"`
	Escalation float64 `json:"escalation_confidence_threshold"`
}

// DefaultPolicy returns the 0.7 / 0.5 policy.
func DefaultPolicy() Policy {
	return Policy{Approval: DefaultApprovalThreshold, Escalation: DefaultEscalationThreshold}
}

// Validate checks that both thresholds lie in [0, 1] and are ordered.
func (p Policy) Validate() error {
	if p.Escalation < 0 || p.Escalation > 1 || p.Approval < 0 || p.Approval > 1 {
		return semerr.Configuration("mapper.Policy", fmt.Errorf("thresholds must lie in [0,1], got approval=%v escalation=%v", p.Approval, p.Escalation))
	}
	if p.Escalation > p.Approval {
		return semerr.Configuration("mapper.Policy", fmt.Errorf("escalation threshold %v exceeds approval threshold %v", p.Escalation, p.Approval))
	}
	return nil
}

// Decide classifies r.
func (p Policy) Decide(r Result) Decision {
	switch {
	case !r.Grounded():
		return DecisionReject
	case r.Confidence >= p.Approval:
		return DecisionAutoApply
	case r.Confidence >= p.Escalation:
		return DecisionEscalate
	default:
		return DecisionReject
	}
}
