package arena

import (
	"errors"
	"testing"

	bridgeerrors "github.com/wippyai/opus-bridge/errors"
)

// bumpAlloc hands out ascending addresses and records frees.
type bumpAlloc struct {
	next    uint32
	sizes   map[uint32]uint32
	freed   []uint32
	failAt  int
	nallocs int
}

func newBumpAlloc() *bumpAlloc {
	return &bumpAlloc{next: 1024, sizes: make(map[uint32]uint32), failAt: -1}
}

func (b *bumpAlloc) Alloc(size uint32) (uint32, error) {
	if b.failAt >= 0 && b.nallocs == b.failAt {
		return 0, errors.New("out of memory")
	}
	b.nallocs++
	ptr := b.next
	b.next += size
	b.sizes[ptr] = size
	return ptr, nil
}

func (b *bumpAlloc) Free(ptr uint32) {
	b.freed = append(b.freed, ptr)
	delete(b.sizes, ptr)
}

func TestNew_AllocatesBothRegions(t *testing.T) {
	alloc := newBumpAlloc()
	a, err := New(alloc)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	pcmPtr, pcmCap := a.Acquire(PCM)
	pktPtr, pktCap := a.Acquire(Packet)

	if pcmCap != PCMCapacity {
		t.Errorf("pcm capacity = %d, want %d", pcmCap, PCMCapacity)
	}
	if pktCap != PacketCapacity {
		t.Errorf("packet capacity = %d, want %d", pktCap, PacketCapacity)
	}
	if pcmPtr == 0 || pktPtr == 0 {
		t.Error("expected non-zero region addresses")
	}
	if pcmPtr == pktPtr {
		t.Error("regions must not alias")
	}
	if alloc.sizes[pcmPtr] != PCMCapacity || alloc.sizes[pktPtr] != PacketCapacity {
		t.Error("allocator saw wrong sizes")
	}
}

func TestNew_SecondAllocFailureFreesFirst(t *testing.T) {
	alloc := newBumpAlloc()
	alloc.failAt = 1

	_, err := New(alloc)
	if err == nil {
		t.Fatal("expected error when packet region allocation fails")
	}
	if !errors.Is(err, &bridgeerrors.Error{Phase: bridgeerrors.PhaseLoad, Kind: bridgeerrors.KindAllocation}) {
		t.Errorf("wrong error class: %v", err)
	}
	if len(alloc.freed) != 1 {
		t.Fatalf("expected the pcm region to be freed, freed = %v", alloc.freed)
	}
}

func TestAcquire_Stable(t *testing.T) {
	a, err := New(newBumpAlloc())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	p1, _ := a.Acquire(PCM)
	p2, _ := a.Acquire(PCM)
	if p1 != p2 {
		t.Error("PCM region address changed between acquisitions")
	}
}

func TestCapacities(t *testing.T) {
	// 120ms at 48kHz stereo float: 5760 samples per channel, 4 bytes each.
	if PCMCapacity != 46080 {
		t.Errorf("PCMCapacity = %d, want 46080", PCMCapacity)
	}
	if PacketCapacity != 7680 {
		t.Errorf("PacketCapacity = %d, want 7680", PacketCapacity)
	}
}
