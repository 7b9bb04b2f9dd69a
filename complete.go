package trellis

import "sort"

// Complete fills in the binding tree in place: every pending slot is replaced
// by a generated binding, every explicit binding goes through the transformer
// chain once, and every dependency that is not visible yet gets a generation
// attempt. Keys nobody can generate are left absent for the validators.
//
// Child scopes are completed before their parent. A child sees the bindings
// of its ancestors, never the other way round, and bindings generated inside
// one child are not visible to its siblings.
func Complete(tree *BindingTree, generators *GeneratorChain, transformers *TransformerChain) error {
	return complete(tree, nil, generators, transformers)
}

// complete treats the external keys as bound, so nothing is generated in
// the tree that would shadow them.
func complete(tree *BindingTree, external map[Key]struct{},
	generators *GeneratorChain, transformers *TransformerChain,
) error {
	known := make(BindingTable, len(external)+len(tree.Get()))
	for k := range external {
		known[k] = Slot{}
	}

	for k, v := range tree.Get() {
		known[k] = v
	}

	return completeNode(known, nil, tree, generators, transformers)
}

func completeNode(known BindingTable, scope []Scope, node *BindingTree,
	generators *GeneratorChain, transformers *TransformerChain,
) error {
	for _, s := range sortedScopes(node.Children()) {
		child := node.Child(s)
		if err := completeNode(override(known, child.Get()), nextPath(scope, s), child, generators, transformers); err != nil {
			return err
		}
	}

	c := &completion{
		known:        known,
		scope:        scope,
		generators:   generators,
		transformers: transformers,
		generated:    make(map[Key]*Binding),
	}

	return c.completeLocal(node.Get())
}

// completion is the state of one pass over one scope node.
type completion struct {
	// known holds every slot visible from this node. A zero Slot records a
	// key that is bound outside the tree or whose generation already failed.
	known        BindingTable
	scope        []Scope
	generators   *GeneratorChain
	transformers *TransformerChain

	// generated caches generation results, nil included, so each key is
	// generated at most once per pass.
	generated map[Key]*Binding
}

func (c *completion) completeLocal(local BindingTable) error {
	for _, key := range local.Keys() {
		slot := local[key]

		var processed *Binding

		if slot.pending {
			b, err := c.get(key)
			if err != nil {
				return err
			}

			// explicitly requested, so refusing is fatal here
			if b == nil {
				return errGenerationRefused(key, slot.location)
			}

			if slot.location != nil {
				b = b.At(slot.location)
			}

			c.generated[key] = b
			c.known[key] = Concrete(b)
			processed = b
		} else {
			transformed, err := c.transformers.Transform(c.scope, key, slot.binding)
			if err != nil {
				return err
			}

			if transformed != slot.binding {
				if transformed.Location() == nil && slot.location != nil {
					transformed = transformed.At(slot.location)
				}

				local[key] = Concrete(transformed)
			}

			processed = transformed
		}

		for _, dep := range processed.dependencies {
			if _, ok := c.known[dep.Key]; ok {
				continue
			}

			// implicit generation never fails fast, the validators report
			// whatever stays missing
			b, err := c.get(dep.Key)
			if err != nil {
				return err
			}

			if b == nil {
				c.known[dep.Key] = Slot{}
			} else {
				c.known[dep.Key] = Concrete(b)
			}
		}
	}

	for key, b := range c.generated {
		if b != nil {
			local[key] = Concrete(b)
		}
	}

	return nil
}

// get returns the binding visible for key, generating and transforming one
// when needed, and makes sure the dependencies of generated bindings are
// generated as well.
func (c *completion) get(key Key) (*Binding, error) {
	if b, ok := c.generated[key]; ok {
		return b, nil
	}

	if s, ok := c.known[key]; ok && !s.pending {
		return s.binding, nil
	}

	b, err := c.generators.Generate(c.scope, key)
	if err != nil {
		return nil, err
	}

	if b == nil {
		c.generated[key] = nil

		return nil, nil
	}

	b, err = c.transformers.Transform(c.scope, key, b)
	if err != nil {
		return nil, err
	}

	c.generated[key] = b

	for _, dep := range b.dependencies {
		if _, err := c.get(dep.Key); err != nil {
			return nil, err
		}
	}

	return b, nil
}

func sortedScopes[V any](children map[Scope]V) []Scope {
	scopes := make([]Scope, 0, len(children))
	for s := range children {
		scopes = append(scopes, s)
	}

	sort.Slice(scopes, func(i, j int) bool { return scopes[i].name < scopes[j].name })

	return scopes
}
