package stream

import (
	"github.com/wippyai/opus-bridge/errors"
)

// Mode selects the PCM sample type a stage reads and writes.
type Mode int

const (
	ModeInt16 Mode = iota
	ModeFloat32
)

// ParseMode maps a mode name to its Mode. Anything other than "int16"
// or "float32" is rejected.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "int16":
		return ModeInt16, nil
	case "float32":
		return ModeFloat32, nil
	}
	return 0, errors.InvalidValue(errors.PhaseStream, "mode", s, "must be \"int16\" or \"float32\"")
}

func (m Mode) String() string {
	switch m {
	case ModeInt16:
		return "int16"
	case ModeFloat32:
		return "float32"
	}
	return "invalid"
}

func (m Mode) valid() bool {
	return m == ModeInt16 || m == ModeFloat32
}

// width is the size of one sample in bytes.
func (m Mode) width() int {
	if m == ModeFloat32 {
		return 4
	}
	return 2
}
