package popup

import "errors"

// ErrAlreadyMounted is returned by Show when a popup already exists.
var ErrAlreadyMounted = errors.New("popup already mounted")
