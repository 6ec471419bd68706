package language

import (
	"fmt"
	"strings"
)

// Role is one of the two fixed conversation participants.
type Role string

const (
	RoleInitiator  Role = "initiator"
	RoleRespondent Role = "respondent"
)

// Other returns the counterpart role.
func (r Role) Other() Role {
	if r == RoleInitiator {
		return RoleRespondent
	}
	return RoleInitiator
}

func (r Role) Valid() bool {
	return r == RoleInitiator || r == RoleRespondent
}

// ParseRole accepts role names and the person1/person2 aliases.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "initiator", "person1", "1":
		return RoleInitiator, nil
	case "respondent", "person2", "2":
		return RoleRespondent, nil
	default:
		return "", fmt.Errorf("unknown role %q (want initiator|respondent)", raw)
	}
}

// Binding assigns exactly one language to each role for a session.
type Binding struct {
	Initiator  Language
	Respondent Language
}

// NewBinding validates both codes against the registry.
func NewBinding(initiator, respondent string) (Binding, error) {
	a, err := Lookup(initiator)
	if err != nil {
		return Binding{}, fmt.Errorf("initiator language: %w", err)
	}
	b, err := Lookup(respondent)
	if err != nil {
		return Binding{}, fmt.Errorf("respondent language: %w", err)
	}
	return Binding{Initiator: a, Respondent: b}, nil
}

// Language returns the language bound to role.
func (b Binding) Language(role Role) Language {
	if role == RoleRespondent {
		return b.Respondent
	}
	return b.Initiator
}

// Pair returns the translation direction when role speaks.
func (b Binding) Pair(role Role) Pair {
	return Pair{Source: b.Language(role), Target: b.Language(role.Other())}
}

func (b Binding) IsZero() bool {
	return b.Initiator.Code == "" && b.Respondent.Code == ""
}

// Labels are the display names for each role.
type Labels struct {
	Initiator  string
	Respondent string
}

// DefaultLabels are the coaching-session role names.
func DefaultLabels() Labels {
	return Labels{Initiator: "Coach / Vrijwilliger", Respondent: "Statushouder"}
}

// For returns the label for role, falling back to the role name.
func (l Labels) For(role Role) string {
	label := l.Initiator
	if role == RoleRespondent {
		label = l.Respondent
	}
	if strings.TrimSpace(label) == "" {
		return string(role)
	}
	return label
}
