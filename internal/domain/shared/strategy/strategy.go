// Package strategy holds the naming base shared by pluggable domain policies.
package strategy

// Kind groups strategies that can stand in for one another
type Kind string

// KindAllocation orders the debits a credit is matched against
const KindAllocation Kind = "allocation"

// Strategy is a named policy that a registry can look up
type Strategy interface {
	Name() string
	Kind() Kind
	Description() string
}

// Descriptor implements Strategy; concrete strategies embed it
type Descriptor struct {
	name        string
	kind        Kind
	description string
}

// Describe builds the descriptor of a strategy
func Describe(kind Kind, name, description string) Descriptor {
	return Descriptor{name: name, kind: kind, description: description}
}

func (d Descriptor) Name() string        { return d.name }
func (d Descriptor) Kind() Kind          { return d.kind }
func (d Descriptor) Description() string { return d.description }
