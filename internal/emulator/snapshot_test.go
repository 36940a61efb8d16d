package emulator

import "testing"

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	emu := newTestEmulator(t)

	entry := uint32(FlashBase + 0x40)
	if err := emu.MemWrite(uint64(entry), thumbAddTestCode); err != nil {
		t.Fatalf("MemWrite: %v", err)
	}
	if err := emu.SetPC(entry); err != nil {
		t.Fatalf("SetPC: %v", err)
	}

	snap, err := emu.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	_ = emu.Run(entry)
	if emu.Counts().BasicBlock == 0 {
		t.Fatal("expected basic blocks recorded before restore")
	}

	if err := emu.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if emu.Counts() != (Counts{}) {
		t.Errorf("expected zeroed counts after restoring a pre-run snapshot, got %+v", emu.Counts())
	}
	if got, want := emu.PC(), entry; got != want {
		t.Errorf("PC after restore = 0x%x, want 0x%x", got, want)
	}
}

func TestMarkDirtyTracksWrittenPages(t *testing.T) {
	emu := newTestEmulator(t)

	addr := uint64(RamBase + 0x10)
	if err := emu.MemWrite(addr, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("MemWrite: %v", err)
	}
	emu.markDirty(addr)

	page := addr &^ (dirtyPageSize - 1)
	if _, ok := emu.dirtyPages[page]; !ok {
		t.Errorf("expected page 0x%x marked dirty", page)
	}
}

func TestQueueInterruptDrainsOnce(t *testing.T) {
	drainPendingInterrupts() // clear any state left by other tests

	QueueInterrupt(5)
	QueueInterrupt(7)

	drained := drainPendingInterrupts()
	if len(drained) != 2 || drained[0] != 5 || drained[1] != 7 {
		t.Fatalf("unexpected drained interrupts: %v", drained)
	}

	if more := drainPendingInterrupts(); more != nil {
		t.Errorf("expected empty queue after drain, got %v", more)
	}
}
