package trellis

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xraph/go-utils/errs"
)

// =============================================================================
// ERROR CODES
// =============================================================================

const (
	// CodeUnsatisfiedDependency indicates a required key has no reachable binding
	CodeUnsatisfiedDependency = "UNSATISFIED_DEPENDENCY"

	// CodeCyclicDependency indicates bindings whose dependencies form a loop
	CodeCyclicDependency = "CYCLIC_DEPENDENCY"

	// CodeAmbiguousGenerator indicates several generators answered one key
	CodeAmbiguousGenerator = "AMBIGUOUS_GENERATOR"

	// CodeAmbiguousTransformer indicates several same-priority transformers changed one binding
	CodeAmbiguousTransformer = "AMBIGUOUS_TRANSFORMER"

	// CodeGenerationRefused indicates an explicitly requested binding could not be generated
	CodeGenerationRefused = "GENERATION_REFUSED"

	// CodeScopeNotDeclared indicates enterScope on a scope the tree does not contain
	CodeScopeNotDeclared = "SCOPE_NOT_DECLARED"

	// CodeCannotConstruct indicates a key or one of its required dependencies resolved to nil
	CodeCannotConstruct = "CANNOT_CONSTRUCT"

	// CodeDuplicateBinding indicates a key bound twice at the same scope
	CodeDuplicateBinding = "DUPLICATE_BINDING"

	// CodeTypeMismatch indicates a resolved instance is not of the requested Go type
	CodeTypeMismatch = "TYPE_MISMATCH"

	// CodeInvalidConstructor indicates a constructor function cannot be turned into a binding
	CodeInvalidConstructor = "INVALID_CONSTRUCTOR"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

// ErrUnsatisfiedDependency is a sentinel error for unsatisfied dependency diagnostics.
var ErrUnsatisfiedDependency = errs.NewError(CodeUnsatisfiedDependency, "unsatisfied dependency", nil)

// ErrCyclicDependency is a sentinel error for cyclic dependency diagnostics.
var ErrCyclicDependency = errs.NewError(CodeCyclicDependency, "cyclic dependency", nil)

// ErrAmbiguousGenerator is a sentinel error for generator ambiguity.
var ErrAmbiguousGenerator = errs.NewError(CodeAmbiguousGenerator, "ambiguous generator", nil)

// ErrAmbiguousTransformer is a sentinel error for transformer ambiguity.
var ErrAmbiguousTransformer = errs.NewError(CodeAmbiguousTransformer, "ambiguous transformer", nil)

// ErrGenerationRefused is a sentinel error for refused explicit generation requests.
var ErrGenerationRefused = errs.NewError(CodeGenerationRefused, "generation refused", nil)

// ErrScopeNotDeclared is a sentinel error for entering an unknown scope.
var ErrScopeNotDeclared = errs.NewError(CodeScopeNotDeclared, "scope not declared", nil)

// ErrCannotConstruct is a sentinel error for resolution failures.
var ErrCannotConstruct = errs.NewError(CodeCannotConstruct, "cannot construct", nil)

// ErrDuplicateBinding is a sentinel error for a key bound twice at one scope.
var ErrDuplicateBinding = errs.NewError(CodeDuplicateBinding, "duplicate binding", nil)

// ErrTypeMismatch is a sentinel error for typed accessors receiving an instance of another type.
var ErrTypeMismatch = errs.NewError(CodeTypeMismatch, "type mismatch", nil)

// ErrInvalidConstructor is a sentinel error for rejected constructor functions.
var ErrInvalidConstructor = errs.NewError(CodeInvalidConstructor, "invalid constructor", nil)

// =============================================================================
// ERROR CONSTRUCTORS
// =============================================================================

// located appends the binding location to a message when it is known.
func located(message string, location *Location) string {
	if location == nil {
		return message
	}

	return message + " " + location.String()
}

// errAmbiguousGenerator creates an error for generators racing for one key
func errAmbiguousGenerator(key Key, count int) *errs.Error {
	return errs.NewError(
		CodeAmbiguousGenerator,
		fmt.Sprintf("more than one generator provided a binding for key %s", key),
		nil,
	).WithContext("key", key.String()).
		WithContext("generators", count).(*errs.Error)
}

// errAmbiguousTransformer creates an error for transformers racing at one priority
func errAmbiguousTransformer(key Key, priority int) *errs.Error {
	return errs.NewError(
		CodeAmbiguousTransformer,
		fmt.Sprintf("more than one transformer with the same priority transformed a binding for key %s", key),
		nil,
	).WithContext("key", key.String()).
		WithContext("priority", priority).(*errs.Error)
}

// errGenerationRefused creates an error for an explicit generation request nobody answered
func errGenerationRefused(key Key, location *Location) *errs.Error {
	return errs.NewError(
		CodeGenerationRefused,
		located(fmt.Sprintf("refused to generate a requested binding for key %s", key), location),
		nil,
	).WithContext("key", key.String()).(*errs.Error)
}

// errScopeNotDeclared creates an error for entering an unknown scope
func errScopeNotDeclared(path []Scope, scope Scope) *errs.Error {
	return errs.NewError(
		CodeScopeNotDeclared,
		fmt.Sprintf("scope %s is not declared under %s", scope, ScopePath(path)),
		nil,
	).WithContext("scope", scope.Name()).(*errs.Error)
}

// errCannotConstruct creates a resolution error for key. A nil binding means
// nothing binds the key at all.
func errCannotConstruct(key Key, binding *Binding) *errs.Error {
	message := fmt.Sprintf("cannot construct %s: no binding to construct it", key)
	if binding != nil {
		message = located(fmt.Sprintf("cannot construct %s: binding refused to construct", key), binding.Location())
	}

	return errs.NewError(CodeCannotConstruct, message, nil).
		WithContext("key", key.String()).(*errs.Error)
}

// errNotBoundInScope creates an error for seeding a key this scope level does not bind
func errNotBoundInScope(key Key, path []Scope) *errs.Error {
	return errs.NewError(
		CodeCannotConstruct,
		fmt.Sprintf("cannot construct %s: no binding in scope %s", key, ScopePath(path)),
		nil,
	).WithContext("key", key.String()).
		WithContext("scope", ScopePath(path)).(*errs.Error)
}

// errMissingDependency creates a resolution error for a required dependency
// that resolved to nil.
func errMissingDependency(key Key, dep Key, binding *Binding) *errs.Error {
	return errs.NewError(
		CodeCannotConstruct,
		located(fmt.Sprintf("cannot construct %s: required dependency %s resolved to nil", key, dep), binding.Location()),
		nil,
	).WithContext("key", key.String()).
		WithContext("dependency", dep.String()).(*errs.Error)
}

// errConstructionFailed wraps a factory error.
func errConstructionFailed(key Key, binding *Binding, cause error) *errs.Error {
	return errs.NewError(
		CodeCannotConstruct,
		located(fmt.Sprintf("cannot construct %s", key), binding.Location()),
		cause,
	).WithContext("key", key.String()).(*errs.Error)
}

// errDuplicateBinding creates an error for a key bound twice at one scope
func errDuplicateBinding(key Key, path []Scope, first, second *Location) *errs.Error {
	return errs.NewError(
		CodeDuplicateBinding,
		located(fmt.Sprintf("key %s is bound more than once in scope %s (first %s)", key, ScopePath(path), first), second),
		nil,
	).WithContext("key", key.String()).
		WithContext("scope", ScopePath(path)).(*errs.Error)
}

// errTypeMismatch creates an error for a typed accessor receiving another type
func errTypeMismatch(key Key, actual any) *errs.Error {
	return errs.NewError(
		CodeTypeMismatch,
		fmt.Sprintf("instance of %s has type %T", key, actual),
		nil,
	).WithContext("key", key.String()).
		WithContext("actual_type", fmt.Sprintf("%T", actual)).(*errs.Error)
}

// errInvalidConstructor creates an error for a rejected constructor function
func errInvalidConstructor(reason string) *errs.Error {
	return errs.NewError(CodeInvalidConstructor, "invalid constructor: "+reason, nil)
}

// =============================================================================
// AGGREGATED DIAGNOSTICS
// =============================================================================

// Requester is a binding that asked for a key, together with its own key.
type Requester struct {
	Key     Key
	Binding *Binding
	Scope   []Scope
}

// UnsatisfiedDependenciesError lists every required key without a reachable
// binding and every binding that required it.
type UnsatisfiedDependenciesError struct {
	Missing map[Key][]Requester
}

// Error renders one block per missing key.
func (e *UnsatisfiedDependenciesError) Error() string {
	var b strings.Builder

	b.WriteString("unsatisfied dependencies detected:\n")

	for _, missing := range sortedKeys(e.Missing) {
		fmt.Fprintf(&b, "\tkey %s required to make:\n", missing)

		for _, r := range e.Missing[missing] {
			fmt.Fprintf(&b, "\t\t- %s %s", r.Key, r.Binding.Location())
			if len(r.Scope) > 0 {
				fmt.Fprintf(&b, " in scope %s", ScopePath(r.Scope))
			}

			b.WriteString("\n")
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is matches ErrUnsatisfiedDependency.
func (e *UnsatisfiedDependenciesError) Is(target error) bool {
	return errors.Is(ErrUnsatisfiedDependency, target)
}

// CyclicDependenciesError lists every cycle found in the compiled tree.
type CyclicDependenciesError struct {
	Cycles [][]Key
}

// Error renders each cycle as a chain that returns to its first key.
func (e *CyclicDependenciesError) Error() string {
	var b strings.Builder

	b.WriteString("cyclic dependencies detected:\n")

	for _, cycle := range e.Cycles {
		b.WriteString("\t")
		b.WriteString(DrawCycle(cycle))
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is matches ErrCyclicDependency.
func (e *CyclicDependenciesError) Is(target error) bool {
	return errors.Is(ErrCyclicDependency, target)
}

// DrawCycle renders a cycle as "A -> B -> C -> A".
func DrawCycle(cycle []Key) string {
	if len(cycle) == 0 {
		return ""
	}

	parts := make([]string, 0, len(cycle)+1)
	for _, k := range cycle {
		parts = append(parts, k.String())
	}

	parts = append(parts, cycle[0].String())

	return strings.Join(parts, " -> ")
}

func sortedKeys[V any](m map[Key]V) []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	return keys
}
