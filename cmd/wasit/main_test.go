package main

import (
	"testing"

	"github.com/wasit-fuzz/wasit/program"
	"github.com/wasit-fuzz/wasit/spec"
)

func TestRenderPreopenArgsSubstitutesDir(t *testing.T) {
	args, err := renderPreopenArgs("--dir={{.Dir}}::/sandbox", "/tmp/run0/preopen")
	if err != nil {
		t.Fatalf("renderPreopenArgs: %v", err)
	}
	if len(args) != 1 || args[0] != "--dir=/tmp/run0/preopen::/sandbox" {
		t.Fatalf("args = %v, want one substituted flag", args)
	}
}

func TestRenderPreopenArgsEmptyTemplate(t *testing.T) {
	args, err := renderPreopenArgs("", "/tmp/x")
	if err != nil {
		t.Fatalf("renderPreopenArgs: %v", err)
	}
	if args != nil {
		t.Fatalf("args = %v, want nil for empty template", args)
	}
}

func TestHashProgramStableForSameShape(t *testing.T) {
	fdClose, _ := spec.FuncByID(spec.FdClose)

	prog := &program.Program{Requests: []program.Request{
		program.DeclRequest{ResourceID: 3, Type: spec.HandleType{SubKind: "dir"}},
		program.CallRequest{Func: fdClose},
	}}

	h1 := hashProgram(prog)
	h2 := hashProgram(prog)
	if h1 != h2 {
		t.Fatalf("hashProgram not stable: %q vs %q", h1, h2)
	}

	other := &program.Program{Requests: []program.Request{
		program.DeclRequest{ResourceID: 3, Type: spec.HandleType{SubKind: "dir"}},
	}}
	if hashProgram(other) == h1 {
		t.Fatal("hashProgram should differ for a different request sequence")
	}
}
