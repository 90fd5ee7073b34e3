package secrets

import (
	"context"
	"fmt"
)

// Binding points a config field at a secret. When the field holds a
// reference it is replaced by the resolved value.
type Binding struct {
	Name   string
	Type   SecretType
	Target *string
}

// Resolver resolves a single secret value.
type Resolver interface {
	GetString(ctx context.Context, ref Reference) (string, error)
}

// ResolveBindings replaces every reference-valued target with its secret.
// Literal values are left alone, so a nil resolver is fine when no target
// holds a reference.
func ResolveBindings(ctx context.Context, r Resolver, bindings []Binding) error {
	for _, b := range bindings {
		if b.Target == nil || !IsReference(*b.Target) {
			continue
		}
		if r == nil {
			return fmt.Errorf("%s: %w", b.Name, ErrProviderNotConfigured)
		}

		ref, err := ParseReference(b.Name, b.Type, *b.Target)
		if err != nil {
			return fmt.Errorf("%s: %w", b.Name, err)
		}
		value, err := r.GetString(ctx, ref)
		if err != nil {
			return fmt.Errorf("%s: %w", b.Name, err)
		}
		*b.Target = value
	}
	return nil
}
