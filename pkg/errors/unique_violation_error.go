package custom_error

import (
	"errors"

	"github.com/lib/pq"
)

// Postgres error codes surfaced by the custody constraints.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// FromPQ translates constraint violations raised by postgres into domain
// errors. The partial unique index on active checkouts and the transfer
// uniqueness constraints sit behind the conditional updates as a backstop;
// when one fires, the caller lost a race or referenced a missing row.
func FromPQ(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch string(pqErr.Code) {
	case pgUniqueViolation:
		return &DomainError{Kind: KindConflict, Message: "resource already exists or is already claimed", Err: err}
	case pgForeignKeyViolation:
		return &DomainError{Kind: KindValidation, Message: "referenced resource does not exist", Err: err}
	default:
		return err
	}
}
