package access

import "fmt"

// BoardNotFoundError is returned when the board does not exist.  It takes
// precedence over every permission error.
type BoardNotFoundError struct{ BoardID string }

func (e *BoardNotFoundError) Error() string { return fmt.Sprintf("board not found: %s", e.BoardID) }

// AccessDeniedError is returned by RequireView for callers that neither own
// nor belong to the board.
type AccessDeniedError struct{ BoardID string }

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("no access to board: %s", e.BoardID)
}

// AdminRequiredError is returned by RequireAdminister.
type AdminRequiredError struct{ BoardID string }

func (e *AdminRequiredError) Error() string {
	return fmt.Sprintf("admin rights required on board: %s", e.BoardID)
}

// OwnerOnlyError is returned by RequireOwner.
type OwnerOnlyError struct{ BoardID string }

func (e *OwnerOnlyError) Error() string {
	return fmt.Sprintf("only the owner may do this on board: %s", e.BoardID)
}
