package engine

import "fmt"

// Engine status codes. Zero and positive values are success.
const (
	StatusOK             = 0
	StatusBadArg         = -1
	StatusBufferTooSmall = -2
	StatusInternalError  = -3
	StatusInvalidPacket  = -4
	StatusUnimplemented  = -5
	StatusInvalidState   = -6
	StatusAllocFail      = -7
)

// statusText mirrors opus_strerror for engines built without the export.
var statusText = map[int]string{
	StatusOK:             "success",
	StatusBadArg:         "invalid argument",
	StatusBufferTooSmall: "buffer too small",
	StatusInternalError:  "internal error",
	StatusInvalidPacket:  "corrupted stream",
	StatusUnimplemented:  "request not implemented",
	StatusInvalidState:   "invalid state",
	StatusAllocFail:      "memory allocation failed",
}

// StatusText returns the built-in description of a status code.
func StatusText(code int) string {
	if s, ok := statusText[code]; ok {
		return s
	}
	return fmt.Sprintf("unknown error %d", code)
}
