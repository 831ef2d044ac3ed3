// Package errs provides the error type shared by the registry, the DDL
// migrator and the query service. An *Error carries a Kind that callers
// branch on, and optional table, column and statement context.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Op is the operation that failed, usually "package.Function".
type Op string

// Table names the table an error relates to.
type Table string

// Column names the column an error relates to.
type Column string

// Statement is the SQL statement that was being executed.
type Statement string

// Kind classifies an error.
type Kind uint8

const (
	Other Kind = iota
	// Config is a malformed or inconsistent schema or process configuration.
	Config
	// Store is a connectivity or statement execution failure.
	Store
	// InvalidRequest is a caller supplied parameter that cannot be served.
	InvalidRequest
	// Internal is an unexpected failure.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config error"
	case Store:
		return "store error"
	case InvalidRequest:
		return "invalid request"
	case Internal:
		return "internal error"
	}

	return "other error"
}

type Error struct {
	Op        Op
	Kind      Kind
	Table     Table
	Column    Column
	Statement Statement
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder

	if e.Op != "" {
		b.WriteString(string(e.Op))
		b.WriteString(": ")
	}

	b.WriteString(e.Kind.String())

	if e.Table != "" {
		fmt.Fprintf(&b, " (table %s", e.Table)
		if e.Column != "" {
			fmt.Fprintf(&b, ", column %s", e.Column)
		}
		b.WriteString(")")
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	if e.Statement != "" {
		fmt.Fprintf(&b, " [statement: %s]", e.Statement)
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an *Error from its arguments. Arguments are matched by type:
// Op, Kind, Table, Column, Statement, error, and string (used as the
// message of a new underlying error). E panics when called without
// arguments or with an unsupported argument type.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("call to errs.E with no arguments")
	}

	e := &Error{}

	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case Table:
			e.Table = a
		case Column:
			e.Column = a
		case Statement:
			e.Statement = a
		case string:
			e.Err = errors.New(a)
		case *Error:
			cp := *a
			e.Err = &cp
		case error:
			e.Err = a
		default:
			panic(fmt.Sprintf("errs.E: unknown argument type %T, value %v", arg, arg))
		}
	}

	// Inherit the kind of a wrapped *Error when none was given.
	if e.Kind == Other {
		var inner *Error
		if errors.As(e.Err, &inner) {
			e.Kind = inner.Kind
		}
	}

	return e
}

// KindIs reports whether any *Error in the chain of err has the given kind.
func KindIs(kind Kind, err error) bool {
	var e *Error

	for err != nil {
		if !errors.As(err, &e) {
			return false
		}

		if e.Kind == kind {
			return true
		}

		err = e.Err
	}

	return false
}
