package wire

import "errors"

// Validation failures shared by the resolver and the codec. Callers match them with errors.Is.
var (
	ErrInvalidAddressWidth = errors.New("invalid address width")
	ErrInvalidIntegerWidth = errors.New("invalid integer width")
	ErrInvalidHashWidth    = errors.New("invalid hash width")
	ErrSignatureFormat     = errors.New("malformed signature")
)
