package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseConfig,
				Kind:   KindInvalidInput,
				Path:   []string{"channels"},
				Detail: "must be 1 or 2",
			},
			contains: []string{"[config]", "invalid_input", "channels", "must be 1 or 2"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[decode]", "out_of_bounds"},
		},
		{
			name: "engine error carries code",
			err: &Error{
				Phase:  PhaseEncode,
				Kind:   KindEngine,
				Code:   -4,
				Detail: "corrupted stream",
			},
			contains: []string{"[encode]", "engine", "code -4", "corrupted stream"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindAllocation,
				Detail: "arena setup",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[load]", "allocation", "arena setup", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseEncode,
		Kind:  KindEngine,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase:  PhaseDecode,
		Kind:   KindOutOfBounds,
		Detail: "packet too large",
	}

	if !errors.Is(err, &Error{Phase: PhaseDecode, Kind: KindOutOfBounds}) {
		t.Error("expected match on same phase and kind")
	}
	if errors.Is(err, &Error{Phase: PhaseEncode, Kind: KindOutOfBounds}) {
		t.Error("should not match different phase")
	}
	if errors.Is(err, &Error{Phase: PhaseDecode, Kind: KindEngine}) {
		t.Error("should not match different kind")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("trap")
	err := New(PhaseControl, KindEngine).
		Path("decoder").
		Code(-3).
		Value(4039).
		Cause(cause).
		Detail("ctl request %d failed", 4039).
		Build()

	if err.Phase != PhaseControl || err.Kind != KindEngine {
		t.Fatalf("wrong phase/kind: %v/%v", err.Phase, err.Kind)
	}
	if err.Code != -3 {
		t.Errorf("Code = %d, want -3", err.Code)
	}
	if err.Detail != "ctl request 4039 failed" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if !errors.Is(err, &Error{Phase: PhaseControl, Kind: KindEngine}) {
		t.Error("builder error does not match prototype")
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap chain")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	if e := SizeExceeded(PhaseEncode, "pcm frame", 100000, 46080); e.Kind != KindOutOfBounds {
		t.Errorf("SizeExceeded kind = %v", e.Kind)
	} else if !strings.Contains(e.Error(), "46080") {
		t.Errorf("SizeExceeded message missing capacity: %q", e.Error())
	}

	if e := Engine(PhaseDecode, -1, "invalid argument"); e.Code != -1 || !strings.Contains(e.Error(), "invalid argument") {
		t.Errorf("Engine constructor: %q", e.Error())
	}

	if e := InvalidValue(PhaseConfig, "rate", 44100, "unsupported sample rate"); len(e.Path) != 1 || e.Value != 44100 {
		t.Errorf("InvalidValue fields: %+v", e)
	}

	if e := NotFound(PhaseLoad, "export", "opus_encode"); !strings.Contains(e.Error(), `"opus_encode"`) {
		t.Errorf("NotFound message: %q", e.Error())
	}
}
