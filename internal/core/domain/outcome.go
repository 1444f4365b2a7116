package domain

// OutcomeKind tags the result of one verification cycle.
type OutcomeKind string

const (
	OutcomeVerified   OutcomeKind = "verified"
	OutcomeRevoked    OutcomeKind = "revoked"
	OutcomeExhausted  OutcomeKind = "exhausted"
	OutcomeSuperseded OutcomeKind = "superseded"
)

// Outcome is everything the state machine learns from a verification cycle.
// Raw fetch errors never travel past the verifier.
type Outcome struct {
	Kind         OutcomeKind `json:"kind"`
	Role         Role        `json:"role,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	ForceSignOut bool        `json:"force_sign_out,omitempty"`
	Attempts     int         `json:"attempts"`
}

func VerifiedOutcome(role Role, attempts int) Outcome {
	return Outcome{Kind: OutcomeVerified, Role: role, Attempts: attempts}
}

// RevokedOutcome builds a revocation. Only a confirmed-absent profile forces
// sign-out; an unauthorized profile leaves that decision to the visitor.
func RevokedOutcome(reason string, attempts int) Outcome {
	return Outcome{
		Kind:         OutcomeRevoked,
		Reason:       reason,
		ForceSignOut: reason == ReasonAccountRemoved,
		Attempts:     attempts,
	}
}

func ExhaustedOutcome(attempts int) Outcome {
	return Outcome{Kind: OutcomeExhausted, Reason: ReasonOffline, Attempts: attempts}
}

func SupersededOutcome(attempts int) Outcome {
	return Outcome{Kind: OutcomeSuperseded, Attempts: attempts}
}
