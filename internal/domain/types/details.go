package types

import "strings"

// CoreDetails are the displayable details a user publishes with an identity.
type CoreDetails struct {
	FirstName string `json:"first_name,omitempty" cbor:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty" cbor:"last_name,omitempty"`
	Company   string `json:"company,omitempty" cbor:"company,omitempty"`
	Position  string `json:"position,omitempty" cbor:"position,omitempty"`
}

// FullDisplayName joins the non-empty name parts, followed by position and
// company in parentheses when present.
func (d CoreDetails) FullDisplayName() string {
	name := strings.TrimSpace(strings.Join(nonEmpty(d.FirstName, d.LastName), " "))
	extra := strings.Join(nonEmpty(d.Position, d.Company), " @ ")
	if extra == "" {
		return name
	}
	if name == "" {
		return extra
	}
	return name + " (" + extra + ")"
}

// IsEmpty reports whether no field is set.
func (d CoreDetails) IsEmpty() bool { return d == CoreDetails{} }

func nonEmpty(parts ...string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
