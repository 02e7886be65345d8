package capabilities

import "errors"

// ErrNoPrincipal is returned when a context carries no resolved caller
// identity.
var ErrNoPrincipal = errors.New("capabilities: no principal in context")
