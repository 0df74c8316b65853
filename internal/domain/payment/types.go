package payment

import (
	"fmt"
	"strings"

	"github.com/resbook/service-booking/pkg/domain"
)

// Provider identifies an external payment provider.
type Provider string

const (
	ProviderCard   Provider = "CARD"
	ProviderPaypal Provider = "PAYPAL"
)

// Type distinguishes immediate charges from deferred ones.
type Type string

const (
	TypeInstant  Type = "INSTANT"
	TypeDeferred Type = "DEFERRED"
)

// Status is the lifecycle state of a payment attempt.
type Status string

const (
	StatusNew     Status = "NEW"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

var validTransitions = map[Status][]Status{
	StatusNew:     {StatusSuccess, StatusFailed},
	StatusSuccess: {},
	StatusFailed:  {},
}

func (p Provider) String() string { return string(p) }
func (t Type) String() string     { return string(t) }
func (s Status) String() string   { return string(s) }

func (p Provider) IsValid() bool {
	return p == ProviderCard || p == ProviderPaypal
}

func (t Type) IsValid() bool {
	return t == TypeInstant || t == TypeDeferred
}

func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransitionTo returns true if a transition from s to target is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// ParseProvider accepts provider names case-insensitively.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", NewUnknownProviderError(s)
	}
	return p, nil
}

// ParseType accepts payment types case-insensitively.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", domain.NewValidationError(fmt.Sprintf("unsupported payment type: %s", s))
	}
	return t, nil
}

// ParseStatus converts a persisted status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", fmt.Errorf("invalid payment status: %s", s)
	}
	return st, nil
}
