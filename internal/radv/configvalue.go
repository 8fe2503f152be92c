package radv

import "gopkg.in/yaml.v3"

// configValueKind is the tri-state discriminant backing [ConfigValue].
type configValueKind int

const (
	// kindNotSpecified means the option was absent from the configuration
	// file; its wire presence is decided by fallback data (see the option
	// resolution rules in package radv's announcement builder).
	kindNotSpecified configValueKind = iota
	// kindValue means the option was given an explicit value, which must
	// always be emitted on the wire.
	kindValue
	// kindDontSet means the option was explicitly suppressed and must
	// never be emitted.
	kindDontSet
)

// dontSetLiteral is the YAML scalar that selects [ConfigValue.IsDontSet].
const dontSetLiteral = "dont-set"

// ConfigValue represents one RA option's configuration: either left for
// erbium to infer from defaults and host information (the zero value,
// NotSpecified), given an explicit value, or explicitly suppressed
// (DontSet, which must never produce a wire option).
type ConfigValue[T any] struct {
	kind  configValueKind
	value T
}

// NotSpecifiedValue returns a [ConfigValue] that defers to fallback data.
func NotSpecifiedValue[T any]() ConfigValue[T] {
	return ConfigValue[T]{kind: kindNotSpecified}
}

// Explicit returns a [ConfigValue] carrying v.
func Explicit[T any](v T) ConfigValue[T] {
	return ConfigValue[T]{kind: kindValue, value: v}
}

// DontSet returns a [ConfigValue] that suppresses the option.
func DontSet[T any]() ConfigValue[T] {
	return ConfigValue[T]{kind: kindDontSet}
}

// IsNotSpecified reports whether the configuration is silent on this
// option.
func (c ConfigValue[T]) IsNotSpecified() bool { return c.kind == kindNotSpecified }

// IsDontSet reports whether the option was explicitly suppressed.
func (c ConfigValue[T]) IsDontSet() bool { return c.kind == kindDontSet }

// Value returns the explicit value and true, or the zero value and false
// if this is not an explicit [ConfigValue].
func (c ConfigValue[T]) Value() (v T, ok bool) {
	if c.kind != kindValue {
		return v, false
	}
	return c.value, true
}

// UnmarshalYAML implements yaml.Unmarshaler.  The scalar "dont-set" selects
// DontSet; anything else is decoded as an explicit T.  A field missing from
// the document entirely keeps the zero value, which is NotSpecified.
func (c *ConfigValue[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Value == dontSetLiteral {
		*c = DontSet[T]()
		return nil
	}

	var v T
	if err := node.Decode(&v); err != nil {
		return err
	}
	*c = Explicit(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler, mostly for erbium-conftest's
// pretty-printer.
func (c ConfigValue[T]) MarshalYAML() (any, error) {
	switch c.kind {
	case kindDontSet:
		return dontSetLiteral, nil
	case kindValue:
		return c.value, nil
	default:
		return nil, nil
	}
}
