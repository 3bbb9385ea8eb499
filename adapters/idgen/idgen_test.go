package idgen_test

import (
	"testing"

	"github.com/artpar/tablekit/adapters/idgen"
)

func TestUUID_New(t *testing.T) {
	gen := idgen.UUID{}
	a, b := gen.New(), gen.New()
	if !idgen.Valid(a) || !idgen.Valid(b) {
		t.Fatalf("generated ids are not UUIDs: %q %q", a, b)
	}
	if a == b {
		t.Errorf("consecutive ids collide: %q", a)
	}
}

func TestSequential(t *testing.T) {
	gen := idgen.NewSequential("test-")
	if got := gen.New(); got != "test-1" {
		t.Errorf("first id = %q", got)
	}
	if got := gen.New(); got != "test-2" {
		t.Errorf("second id = %q", got)
	}
	gen.Reset()
	if got := gen.New(); got != "test-1" {
		t.Errorf("after Reset: %q", got)
	}
}

func TestValid(t *testing.T) {
	if !idgen.Valid(idgen.Empty) {
		t.Error("Empty should parse as a UUID")
	}
	if idgen.Valid("not-a-uuid") {
		t.Error("garbage accepted")
	}
}
