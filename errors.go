package keel

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/xraph/go-utils/errs"
	"go.uber.org/multierr"
)

// =============================================================================
// ERROR CODES
// =============================================================================

const (
	// CodeArgumentInvalid indicates invalid input to a registration or resolve call
	CodeArgumentInvalid = "ARGUMENT_INVALID"

	// CodeServiceNotRegistered indicates no registration or source satisfies a service
	CodeServiceNotRegistered = "SERVICE_NOT_REGISTERED"

	// CodeCircularDependency indicates a registration re-entered its own activation
	CodeCircularDependency = "CIRCULAR_DEPENDENCY"

	// CodeActivationFailed indicates a constructor, factory or lifecycle handler failed
	CodeActivationFailed = "ACTIVATION_FAILED"

	// CodeDependencyResolution indicates no constructor of a type could be bound
	CodeDependencyResolution = "DEPENDENCY_RESOLUTION"

	// CodeDisposalAggregate indicates one or more disposals failed during scope teardown
	CodeDisposalAggregate = "DISPOSAL_AGGREGATE"

	// CodeScopeDisposed indicates an operation on a disposed lifetime scope
	CodeScopeDisposed = "SCOPE_DISPOSED"

	// CodeTypeMismatch indicates a resolved instance is not of the requested type
	CodeTypeMismatch = "TYPE_MISMATCH"
)

// isKeelError reports whether err already carries an error code.
func isKeelError(err error) bool {
	var e *errs.Error

	return errors.As(err, &e)
}

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrArgumentInvalid matches invalid-argument failures.
	ErrArgumentInvalid = errs.NewError(CodeArgumentInvalid, "invalid argument", nil)

	// ErrServiceNotRegistered matches failures to find any candidate registration.
	ErrServiceNotRegistered = errs.NewError(CodeServiceNotRegistered, "service not registered", nil)

	// ErrCircularDependency matches circular dependency failures.
	ErrCircularDependency = errs.NewError(CodeCircularDependency, "circular dependency", nil)

	// ErrActivationFailed matches failures raised by user constructors and factories.
	ErrActivationFailed = errs.NewError(CodeActivationFailed, "activation failed", nil)

	// ErrDependencyResolution matches failures to bind any constructor.
	ErrDependencyResolution = errs.NewError(CodeDependencyResolution, "dependency resolution failed", nil)

	// ErrDisposalAggregate matches scope teardown failures.
	ErrDisposalAggregate = errs.NewError(CodeDisposalAggregate, "disposal failed", nil)

	// ErrScopeDisposed is returned when operations are attempted on a disposed scope.
	ErrScopeDisposed = errs.NewError(CodeScopeDisposed, "lifetime scope has been disposed", nil)

	// ErrTypeMismatch matches failures to convert a resolved instance.
	ErrTypeMismatch = errs.NewError(CodeTypeMismatch, "type mismatch", nil)
)

// =============================================================================
// ERROR CONSTRUCTORS
// =============================================================================

// NewArgumentError creates an error for invalid registration or resolve input
func NewArgumentError(argument, reason string) *errs.Error {
	return errs.NewError(
		CodeArgumentInvalid,
		fmt.Sprintf("invalid argument '%s': %s", argument, reason),
		nil,
	).WithContext("argument", argument).(*errs.Error)
}

// NewServiceNotRegisteredError creates an error for a service with no candidates
func NewServiceNotRegisteredError(svc Service) *errs.Error {
	return errs.NewError(
		CodeServiceNotRegistered,
		fmt.Sprintf("service '%s' has not been registered", svc),
		nil,
	).WithContext("service", svc.String()).(*errs.Error)
}

// NewCircularDependencyError creates an error describing the activation chain,
// starting at the first occurrence of the repeated registration.
func NewCircularDependencyError(chain []*Registration) *errs.Error {
	parts := make([]string, len(chain))
	ids := make([]ID, len(chain))

	for i, reg := range chain {
		parts[i] = reg.String()
		ids[i] = reg.ID()
	}

	return errs.NewError(
		CodeCircularDependency,
		"circular dependency detected: "+strings.Join(parts, " -> "),
		nil,
	).WithContext("chain", ids).(*errs.Error)
}

// NewActivationError wraps a failure raised while activating a registration
func NewActivationError(reg *Registration, cause error) *errs.Error {
	return errs.NewError(
		CodeActivationFailed,
		fmt.Sprintf("activating %s", reg),
		cause,
	).WithContext("registration", reg.ID()).(*errs.Error)
}

// NewDependencyResolutionError creates an error for a type whose constructors cannot be bound.
// missing is the first dependency type that could not be supplied; it may be nil when the type
// offers no invokable constructors at all.
func NewDependencyResolutionError(target reflect.Type, missing *ParameterInfo) *errs.Error {
	if missing == nil {
		return errs.NewError(
			CodeDependencyResolution,
			fmt.Sprintf("no invokable constructors found for type %s", typeName(target)),
			nil,
		).WithContext("type", typeName(target)).(*errs.Error)
	}

	return errs.NewError(
		CodeDependencyResolution,
		fmt.Sprintf("none of the constructors of %s can be invoked: cannot resolve parameter '%s' of type %s",
			typeName(target), missing.Name, typeName(missing.Type)),
		nil,
	).WithContext("type", typeName(target)).
		WithContext("dependency", typeName(missing.Type)).(*errs.Error)
}

// NewDisposalError combines every disposal failure of a scope teardown
func NewDisposalError(scopeID string, failures []error) *errs.Error {
	combined := multierr.Combine(failures...)

	return errs.NewError(
		CodeDisposalAggregate,
		fmt.Sprintf("disposing lifetime scope %s: %d failure(s)", scopeID, len(multierr.Errors(combined))),
		combined,
	).WithContext("scope", scopeID).(*errs.Error)
}

// NewScopeDisposedError creates an error for an operation on a disposed scope
func NewScopeDisposedError(scopeID string) *errs.Error {
	return errs.NewError(
		CodeScopeDisposed,
		fmt.Sprintf("lifetime scope %s has been disposed", scopeID),
		nil,
	).WithContext("scope", scopeID).(*errs.Error)
}

// NewTypeMismatchError creates an error for an instance that is not of the expected type
func NewTypeMismatchError(svc Service, actual any) *errs.Error {
	return errs.NewError(
		CodeTypeMismatch,
		fmt.Sprintf("service '%s' type mismatch: got %T", svc, actual),
		nil,
	).WithContext("service", svc.String()).
		WithContext("actual_type", fmt.Sprintf("%T", actual)).(*errs.Error)
}

// DisposalErrors returns the individual failures collected in a disposal aggregate error.
func DisposalErrors(err error) []error {
	var e *errs.Error
	if !errors.As(err, &e) || e.Code != CodeDisposalAggregate {
		return nil
	}

	return multierr.Errors(e.Err)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	return t.String()
}
