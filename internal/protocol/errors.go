package protocol

import "errors"

var (
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	ErrFrameTooLarge  = errors.New("protocol: frame exceeds size limit")
	ErrHandshake      = errors.New("protocol: endpoint is not a vicon terminal")
)
