package deliver

import "errors"

// ErrUnknownCondiment is returned when no profile exists for a condiment.
var ErrUnknownCondiment = errors.New("unknown condiment")
