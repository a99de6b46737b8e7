package opus

import (
	"context"
	"errors"
	"testing"

	"github.com/wippyai/opus-bridge/engine/enginetest"
)

func TestNewState_InitFailureFreesBlock(t *testing.T) {
	ctx := context.Background()
	tbl := enginetest.New()

	_, err := newState(ctx, tbl, 64, false, func(ptr uint32) error {
		return errors.New("init rejected")
	})
	if err == nil {
		t.Fatal("expected init error")
	}
	if got := tbl.LiveBlocks(); got != 2 {
		t.Errorf("%d blocks live after failed init, want 2", got)
	}
}

func TestNewState_AllocFailure(t *testing.T) {
	ctx := context.Background()
	tbl := enginetest.New()
	tbl.FailNextAlloc()

	_, err := newState(ctx, tbl, 64, false, func(ptr uint32) error { return nil })
	if err == nil {
		t.Fatal("expected allocation error")
	}
}

func TestWith_SafeModeSavesSnapshotOnFailure(t *testing.T) {
	ctx := context.Background()
	tbl := enginetest.New()

	st, err := newState(ctx, tbl, 8, false, func(ptr uint32) error {
		return tbl.Memory().WriteU32(ptr, 1)
	})
	if err != nil {
		t.Fatalf("newState failed: %v", err)
	}

	// op mutates the loaded state and then fails; the mutation must still
	// land in the snapshot and the scratch block must still be freed.
	opErr := errors.New("engine trap")
	err = st.with("decode", func(ptr uint32) error {
		if werr := tbl.Memory().WriteU32(ptr, 42); werr != nil {
			return werr
		}
		return opErr
	})
	if !errors.Is(err, opErr) {
		t.Fatalf("with returned %v, want op error", err)
	}
	if got := tbl.LiveBlocks(); got != 2 {
		t.Errorf("%d blocks live after failing op, want 2", got)
	}

	var seen uint32
	if err := st.with("decode", func(ptr uint32) error {
		v, rerr := tbl.Memory().ReadU32(ptr)
		seen = v
		return rerr
	}); err != nil {
		t.Fatalf("second with failed: %v", err)
	}
	if seen != 42 {
		t.Errorf("snapshot value = %d, want 42", seen)
	}
}

func TestWith_UnsafeModeUsesResidentBlock(t *testing.T) {
	ctx := context.Background()
	tbl := enginetest.New()

	st, err := newState(ctx, tbl, 8, true, func(ptr uint32) error {
		return tbl.Memory().WriteU32(ptr, 7)
	})
	if err != nil {
		t.Fatalf("newState failed: %v", err)
	}
	defer st.destroy()

	allocsBefore := tbl.LiveBlocks()
	var first uint32
	if err := st.with("encode", func(ptr uint32) error {
		v, rerr := tbl.Memory().ReadU32(ptr)
		if rerr != nil {
			return rerr
		}
		first = v
		return tbl.Memory().WriteU32(ptr, v+1)
	}); err != nil {
		t.Fatalf("with failed: %v", err)
	}
	if first != 7 {
		t.Errorf("resident state = %d, want 7", first)
	}
	if tbl.LiveBlocks() != allocsBefore {
		t.Error("unsafe-mode with allocated scratch memory")
	}

	var second uint32
	_ = st.with("encode", func(ptr uint32) error {
		v, rerr := tbl.Memory().ReadU32(ptr)
		second = v
		return rerr
	})
	if second != 8 {
		t.Errorf("resident state after mutation = %d, want 8", second)
	}
}
