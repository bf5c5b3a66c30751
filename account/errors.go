package account

import (
	"fmt"

	"github.com/MrEthical07/portalauth"
)

var (
	// ErrNotFound matches portalauth.ErrAccountNotFound under errors.Is.
	ErrNotFound = fmt.Errorf("account: %w", portalauth.ErrAccountNotFound)
	// ErrDuplicate matches portalauth.ErrAccountExists under errors.Is.
	ErrDuplicate = fmt.Errorf("account: %w", portalauth.ErrAccountExists)
	// ErrStatusChanged means the row no longer held the expected status. It
	// matches portalauth.ErrInvalidTransition under errors.Is.
	ErrStatusChanged = fmt.Errorf("account: status changed concurrently: %w", portalauth.ErrInvalidTransition)
)
