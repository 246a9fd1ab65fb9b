package batcher

import (
	"errors"
	"fmt"
	"strings"
)

// DispatchErrorKind tags a DispatchError.
type DispatchErrorKind uint8

const (
	DispatchOther DispatchErrorKind = iota
	DispatchModule
	DispatchToken
)

// ModuleError identifies an error by pallet index and error index.
type ModuleError struct {
	Index uint8
	Error uint8
}

// DispatchError is a runtime dispatch failure as reported by the chain.
type DispatchError struct {
	Kind   DispatchErrorKind
	Module ModuleError

	// Token is the TokenError variant name, e.g. "FundsUnavailable".
	Token string

	// Other is the raw variant name for every other kind, e.g. "BadOrigin".
	Other string
}

// NewModuleError returns a Module dispatch error.
func NewModuleError(pallet, index uint8) *DispatchError {
	return &DispatchError{Kind: DispatchModule, Module: ModuleError{Index: pallet, Error: index}}
}

// NewTokenError returns a Token dispatch error.
func NewTokenError(kind string) *DispatchError {
	return &DispatchError{Kind: DispatchToken, Token: kind}
}

// NewOtherError returns a dispatch error of any other variant.
func NewOtherError(variant string) *DispatchError {
	return &DispatchError{Kind: DispatchOther, Other: variant}
}

// Type returns the raw variant tag.
func (d DispatchError) Type() string {
	switch d.Kind {
	case DispatchModule:
		return "Module"
	case DispatchToken:
		return "Token"
	default:
		if d.Other == "" {
			return "Other"
		}
		return d.Other
	}
}

// ErrorMeta is the metadata entry for a module error.
type ErrorMeta struct {
	Section string
	Name    string
	Docs    []string
}

// ErrorLookup resolves module errors against runtime metadata.
type ErrorLookup interface {
	FindError(pallet, index uint8) (ErrorMeta, error)
}

// ErrorTable is an in-memory ErrorLookup.
type ErrorTable map[ModuleError]ErrorMeta

// FindError implements ErrorLookup.
func (t ErrorTable) FindError(pallet, index uint8) (ErrorMeta, error) {
	meta, ok := t[ModuleError{Index: pallet, Error: index}]
	if !ok {
		return ErrorMeta{}, fmt.Errorf("batcher: unknown module error %d:%d", pallet, index)
	}
	return meta, nil
}

// Category is the caller-actionable class of a dispatch error.
type Category uint8

const (
	// CategoryUnresolved means the error could not be resolved against metadata.
	CategoryUnresolved Category = iota
	CategoryChainRejected
	CategoryInsufficientFunds
	CategoryToken
)

func (c Category) String() string {
	switch c {
	case CategoryChainRejected:
		return "ChainRejected"
	case CategoryInsufficientFunds:
		return "InsufficientFunds"
	case CategoryToken:
		return "Token"
	default:
		return "Unresolved"
	}
}

// insufficientFundsErrors classify as CategoryInsufficientFunds: both are fixed by funding the account.
var insufficientFundsErrors = map[string]bool{
	"StorageDepositLimitExhausted": true,
	"StorageDepositNotEnoughFunds": true,
}

// ClassifiedError is a dispatch error resolved for callers.
type ClassifiedError struct {
	Category Category
	Section  string
	Name     string
	Docs     []string
	Raw      DispatchError
}

func (e *ClassifiedError) Error() string {
	switch e.Category {
	case CategoryInsufficientFunds:
		return fmt.Sprintf("%s.%s: %s", e.Section, e.Name, ErrInsufficientFunds.Error())
	case CategoryChainRejected:
		if len(e.Docs) > 0 {
			return fmt.Sprintf("%s.%s(%s)", e.Section, e.Name, strings.Join(e.Docs, " "))
		}
		return e.Section + "." + e.Name
	case CategoryToken:
		return "Token." + e.Name
	default:
		if e.Raw.Kind == DispatchModule {
			return fmt.Sprintf("Module(%d:%d)", e.Raw.Module.Index, e.Raw.Module.Error)
		}
		return e.Raw.Type()
	}
}

// Is lets errors.Is match ErrInsufficientFunds.
func (e *ClassifiedError) Is(target error) bool {
	return target == ErrInsufficientFunds && e.Category == CategoryInsufficientFunds
}

// Classify resolves d against lookup. Resolution failures never error:
// they degrade to CategoryUnresolved carrying the raw tag.
func Classify(d DispatchError, lookup ErrorLookup) *ClassifiedError {
	out := &ClassifiedError{Category: CategoryUnresolved, Raw: d}

	switch d.Kind {
	case DispatchToken:
		out.Category = CategoryToken
		out.Section = "Token"
		out.Name = d.Token
	case DispatchModule:
		if lookup == nil {
			return out
		}
		meta, err := lookup.FindError(d.Module.Index, d.Module.Error)
		if err != nil {
			return out
		}
		out.Section, out.Name, out.Docs = meta.Section, meta.Name, meta.Docs
		if insufficientFundsErrors[meta.Name] {
			out.Category = CategoryInsufficientFunds
		} else {
			out.Category = CategoryChainRejected
		}
	}
	return out
}

// IsInsufficientFunds reports whether err carries an insufficient-funds classification.
func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}
