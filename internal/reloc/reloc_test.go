package reloc

import "testing"

func TestWriteDisplacementWidths(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		end    uint64
		target uint64
		want   []byte
	}{
		{"byte forward", Byte(0), 5, 5, []byte{0}},
		{"byte backward -1", Byte(0), 7, 6, []byte{0xFF}},
		{"dword", DWord(0), 5, 5, []byte{0, 0, 0, 0}},
		{"qword", QWord(0), 9, 1, []byte{0xf8, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, tt.end)
			e := NewEngine(false)
			loc := PatchLoc{End: tt.end, Kind: tt.kind}
			if err := e.WriteDisplacement(buf, 0, loc, tt.target); err != nil {
				t.Fatalf("WriteDisplacement: %v", err)
			}
			got := buf[loc.Start():loc.End]
			if len(got) != len(tt.want) {
				t.Fatalf("len(got) = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("byte %d = %#x, want %#x", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestWriteDisplacementWithBufBase(t *testing.T) {
	// Simulate a staging window that starts at absolute offset 100: the
	// relocation field ends at absolute offset 104 but lives at local
	// index 4 within buf.
	e := NewEngine(false)
	buf := make([]byte, 8)
	loc := PatchLoc{End: 104, Kind: DWord(0)}
	if err := e.WriteDisplacement(buf, 100, loc, 104); err != nil {
		t.Fatalf("WriteDisplacement: %v", err)
	}
	for i := 0; i < 4; i++ {
		if buf[i] != 0 {
			t.Errorf("byte %d = %#x, want 0 (displacement 0)", i, buf[i])
		}
	}
}

func TestWriteDisplacementByteOverflowUnchecked(t *testing.T) {
	e := NewEngine(false)
	buf := make([]byte, 1)
	loc := PatchLoc{End: 1, Kind: Byte(0)}
	if err := e.WriteDisplacement(buf, 0, loc, 201); err != nil {
		t.Fatalf("unchecked mode must not error, got %v", err)
	}
	if buf[0] != 0xC8 { // low 8 bits of 200, i.e. int8(-56)
		t.Errorf("truncated byte = %#x, want %#x", buf[0], 0xC8)
	}
}

func TestWriteDisplacementByteOverflowChecked(t *testing.T) {
	e := NewEngine(true)
	buf := make([]byte, 1)
	loc := PatchLoc{End: 1, Kind: Byte(0)}
	err := e.WriteDisplacement(buf, 0, loc, 201)
	if err == nil {
		t.Fatal("expected DisplacementOverflowError, got nil")
	}
	if _, ok := err.(DisplacementOverflowError); !ok {
		t.Fatalf("expected DisplacementOverflowError, got %T: %v", err, err)
	}
}

func TestWriteAbsolute(t *testing.T) {
	e := NewEngine(false)
	buf := make([]byte, 8)
	loc := PatchLoc{End: 8, Kind: QWord(0)}
	if err := e.WriteAbsolute(buf, 0, loc, 0x1122334455667788); err != nil {
		t.Fatalf("WriteAbsolute: %v", err)
	}
	want := []byte{0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}
	for i := range want {
		if buf[i] != want[i] {
			t.Errorf("byte %d = %#x, want %#x", i, buf[i], want[i])
		}
	}
}

func TestResolveGlobalUnknown(t *testing.T) {
	e := NewEngine(false)
	e.EnqueueGlobal(PatchLoc{End: 4, Kind: DWord(0)}, "missing")
	buf := make([]byte, 4)
	err := e.ResolveGlobal(buf, 0, func(string) (uint64, bool) { return 0, false })
	if err == nil {
		t.Fatal("expected UnknownGlobalLabelError")
	}
	if e.PendingGlobal() != 0 {
		t.Errorf("queue must be drained even on error, pending = %d", e.PendingGlobal())
	}
}

func TestResolveDynamicOK(t *testing.T) {
	e := NewEngine(false)
	e.EnqueueDynamic(PatchLoc{End: 4, Kind: DWord(0)}, 0)
	buf := make([]byte, 4)
	err := e.ResolveDynamic(buf, 0, func(id int) (uint64, bool) {
		if id == 0 {
			return 10, true
		}
		return 0, false
	})
	if err != nil {
		t.Fatalf("ResolveDynamic: %v", err)
	}
}
