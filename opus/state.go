package opus

import (
	"context"

	"github.com/wippyai/opus-bridge/engine"
	"github.com/wippyai/opus-bridge/errors"
)

// state is the sum of the two ownership strategies for an engine state
// block: a resident engine allocation (unsafe) or a Go-side snapshot loaded
// into a scratch allocation around every call (safe).
type state struct {
	table    engine.Table
	size     uint32
	ptr      uint32 // resident block, unsafe mode only
	snapshot []byte // safe mode only
	resident bool
}

// newState allocates a state block, runs init on it, and adopts the chosen
// ownership strategy. On init failure the block is freed and nothing leaks.
func newState(ctx context.Context, t engine.Table, size int, resident bool, init func(ptr uint32) error) (*state, error) {
	ptr, err := t.Allocator().Alloc(uint32(size))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindAllocation, err, "allocate codec state")
	}
	if err := init(ptr); err != nil {
		t.Allocator().Free(ptr)
		return nil, err
	}

	s := &state{table: t, size: uint32(size), resident: resident}
	if resident {
		s.ptr = ptr
		return s, nil
	}

	view, err := t.Memory().Read(ptr, uint32(size))
	if err != nil {
		t.Allocator().Free(ptr)
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindOutOfBounds, err, "snapshot codec state")
	}
	s.snapshot = append([]byte(nil), view...)
	t.Allocator().Free(ptr)
	return s, nil
}

// with runs op against an address holding the current state bytes. In safe
// mode the snapshot is loaded into a scratch allocation first and saved back
// after, whether or not op fails; the scratch block is freed on every path.
func (s *state) with(phase errors.Phase, op func(ptr uint32) error) error {
	if s.resident {
		return op(s.ptr)
	}

	scratch, err := s.table.Allocator().Alloc(s.size)
	if err != nil {
		return errors.Wrap(phase, errors.KindAllocation, err, "allocate state scratch")
	}
	defer func() {
		if view, rerr := s.table.Memory().Read(scratch, s.size); rerr == nil {
			copy(s.snapshot, view)
		}
		s.table.Allocator().Free(scratch)
	}()

	if err := s.table.Memory().Write(scratch, s.snapshot); err != nil {
		return errors.Wrap(phase, errors.KindOutOfBounds, err, "load state snapshot")
	}
	return op(scratch)
}

// destroy releases the resident block. A no-op in safe mode.
func (s *state) destroy() {
	if !s.resident || s.ptr == 0 {
		return
	}
	s.table.Allocator().Free(s.ptr)
	s.ptr = 0
}
