// Package domain holds identifier primitives shared across modules.
//
// Every identifier is a distinct named UUID type so the compiler rejects
// passing an OrganizationID where an InvoiceID is expected. Parsing is the
// only way to build one from untrusted input and it rejects nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "klok/pkg/domain-errors"
)

type (
	UserID         uuid.UUID
	TenantID       uuid.UUID
	OrganizationID uuid.UUID
	InvoiceID      uuid.UUID
	ContractorID   uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is too long")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return parsed, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user ID", s)
	return UserID(u), err
}

func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID("tenant ID", s)
	return TenantID(u), err
}

func ParseOrganizationID(s string) (OrganizationID, error) {
	u, err := parseUUID("organization ID", s)
	return OrganizationID(u), err
}

func ParseInvoiceID(s string) (InvoiceID, error) {
	u, err := parseUUID("invoice ID", s)
	return InvoiceID(u), err
}

func ParseContractorID(s string) (ContractorID, error) {
	u, err := parseUUID("contractor ID", s)
	return ContractorID(u), err
}

func (id UserID) String() string { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id TenantID) String() string { return uuid.UUID(id).String() }
func (id TenantID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id OrganizationID) String() string { return uuid.UUID(id).String() }
func (id OrganizationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id InvoiceID) String() string { return uuid.UUID(id).String() }
func (id InvoiceID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id ContractorID) String() string { return uuid.UUID(id).String() }
func (id ContractorID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// JSON encodes IDs as canonical UUID strings.

func (id UserID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id TenantID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id OrganizationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id InvoiceID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id ContractorID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *TenantID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *OrganizationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *InvoiceID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ContractorID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
