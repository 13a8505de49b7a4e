// verdict/pkg/compiler/errors.go

package compiler

import (
	"fmt"
	"strings"
)

// CircularDependencyError reports an import cycle, with the full chain of
// source paths that led back to the offending file.
type CircularDependencyError struct {
	Chain []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Chain, " -> "))
}

// DuplicateIdentifierError reports two definitions declaring the same id.
type DuplicateIdentifierError struct {
	Kind string
	ID   string
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("duplicate %s identifier %q", e.Kind, e.ID)
}

// UnknownTemplateError reports a ruleset referencing a decision template
// that no resolved document declares.
type UnknownTemplateError struct {
	Ruleset  string
	Template string
}

func (e *UnknownTemplateError) Error() string {
	return fmt.Sprintf("ruleset %q references unknown template %q", e.Ruleset, e.Template)
}

// UnknownReferenceError reports a reference to an undeclared rule,
// ruleset, list or pipeline step.
type UnknownReferenceError struct {
	Kind string
	ID   string
	From string
}

func (e *UnknownReferenceError) Error() string {
	if e.From != "" {
		return fmt.Sprintf("unknown %s %q referenced from %q", e.Kind, e.ID, e.From)
	}
	return fmt.Sprintf("unknown %s %q", e.Kind, e.ID)
}

// SelfLoopError reports a pipeline step whose every successor is itself,
// which could never make progress at runtime.
type SelfLoopError struct {
	Pipeline string
	Step     string
}

func (e *SelfLoopError) Error() string {
	return fmt.Sprintf("pipeline %q: step %q loops to itself with no exit", e.Pipeline, e.Step)
}

// ParseError reports a malformed source document or expression.
type ParseError struct {
	Path    string
	Message string
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("parse %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("parse: %s", e.Message)
}
