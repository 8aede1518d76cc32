package message

import "errors"

var (
	ErrJSONUnmarshalFailed = errors.New("failed to unmarshal JSON frame")
	ErrJSONMarshalFailed   = errors.New("failed to marshal JSON frame")
	ErrInvalidFrame        = errors.New("invalid frame")
)
