package spec

import "testing"

func TestPreview1FuncsOrdinalsExhaustive(t *testing.T) {
	funcs := Preview1Funcs()
	if len(funcs) != NumPreview1Funcs {
		t.Fatalf("got %d funcs, want %d", len(funcs), NumPreview1Funcs)
	}
	seen := make(map[FuncID]bool)
	for i, f := range funcs {
		if int(f.ID) != i {
			t.Errorf("func %q at index %d has ID %d, want %d", f.Name, i, f.ID, i)
		}
		if seen[f.ID] {
			t.Errorf("duplicate func ID %d", f.ID)
		}
		seen[f.ID] = true
	}
	for id := FuncID(0); id < NumPreview1Funcs; id++ {
		if !seen[id] {
			t.Errorf("missing func ID %d", id)
		}
	}
}

func TestFuncByIDAndName(t *testing.T) {
	f, ok := FuncByID(PathOpen)
	if !ok || f.Name != "path_open" {
		t.Fatalf("FuncByID(PathOpen) = %+v, %v", f, ok)
	}
	f2, ok := FuncByName("path_open")
	if !ok || f2.ID != PathOpen {
		t.Fatalf("FuncByName(path_open) = %+v, %v", f2, ok)
	}
	if _, ok := FuncByName("not_a_func"); ok {
		t.Fatal("expected FuncByName to fail for unknown name")
	}
}

func TestFuncIDStringRoundTrip(t *testing.T) {
	for id := FuncID(0); id < NumPreview1Funcs; id++ {
		name := id.String()
		f, ok := FuncByName(name)
		if !ok {
			t.Fatalf("FuncID(%d).String() = %q not found via FuncByName", id, name)
		}
		if f.ID != id {
			t.Fatalf("round trip mismatch: id=%d name=%q got id=%d", id, name, f.ID)
		}
	}
}

func TestConsumeResourceTagsPresentWherePreview1RequiresAnFd(t *testing.T) {
	f, _ := FuncByID(FdClose)
	if len(f.Params) != 1 || !f.Params[0].HasTag(TagConsumesResource) {
		t.Fatalf("fd_close param 0 should consume a resource: %+v", f.Params)
	}
}
