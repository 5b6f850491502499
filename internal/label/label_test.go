package label

import (
	"testing"

	"github.com/gojit/x64asm/internal/reloc"
)

func TestDefineGlobalDuplicate(t *testing.T) {
	tbl := New()
	if err := tbl.DefineGlobal("X", 0); err != nil {
		t.Fatalf("first definition: %v", err)
	}
	if err := tbl.DefineGlobal("X", 10); err == nil {
		t.Fatal("expected DuplicateGlobalLabelError on second definition")
	}
}

func TestLocalShadowingAndForwardDrain(t *testing.T) {
	tbl := New()
	tbl.EnqueueForwardLocal("L", reloc.PatchLoc{End: 5, Kind: reloc.DWord(0)})

	drained := tbl.DefineLocal("L", 5)
	if len(drained) != 1 || drained[0].End != 5 {
		t.Fatalf("drained = %+v, want one PatchLoc ending at 5", drained)
	}

	// Redefinition shadows for subsequent backward lookups.
	tbl.DefineLocal("L", 20)
	got, ok := tbl.LookupLocalBackward("L")
	if !ok || got != 20 {
		t.Errorf("LookupLocalBackward after redefinition = (%d, %v), want (20, true)", got, ok)
	}
}

func TestLocalBackwardUndefined(t *testing.T) {
	tbl := New()
	if _, ok := tbl.LookupLocalBackward("nope"); ok {
		t.Fatal("expected undefined local label to miss")
	}
}

func TestDynamicAllocateDefineLookup(t *testing.T) {
	tbl := New()
	id := tbl.AllocateDynamic()
	if _, ok := tbl.LookupDynamic(id); ok {
		t.Fatal("freshly allocated dynamic label must start empty")
	}
	if err := tbl.DefineDynamic(id, 42); err != nil {
		t.Fatalf("DefineDynamic: %v", err)
	}
	got, ok := tbl.LookupDynamic(id)
	if !ok || got != 42 {
		t.Errorf("LookupDynamic = (%d, %v), want (42, true)", got, ok)
	}
	if err := tbl.DefineDynamic(id, 43); err == nil {
		t.Fatal("expected DuplicateDynamicLabelError on second definition")
	}
}

func TestPendingLocalNames(t *testing.T) {
	tbl := New()
	if names := tbl.PendingLocalNames(); names != nil {
		t.Fatalf("expected no pending names, got %v", names)
	}
	tbl.EnqueueForwardLocal("L", reloc.PatchLoc{End: 1, Kind: reloc.Byte(0)})
	if names := tbl.PendingLocalNames(); len(names) != 1 || names[0] != "L" {
		t.Fatalf("PendingLocalNames = %v, want [L]", names)
	}
}
