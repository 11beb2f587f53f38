package theme

import (
	"context"
	"runtime"
	"testing"
)

func TestRegistryValid(t *testing.T) {
	registry := NewRegistry("tokyonight")

	if !registry.Valid("nordic") {
		t.Fatal("expected built-in nordic to be valid")
	}
	if !registry.Valid("tokyonight") {
		t.Fatal("expected registered tokyonight to be valid")
	}
	if registry.Valid("not_a_real_theme") {
		t.Fatal("expected not_a_real_theme to be invalid")
	}
	if registry.Valid("") {
		t.Fatal("expected empty name to be invalid")
	}
	if registry.Valid("   ") {
		t.Fatal("expected blank name to be invalid")
	}
}

func TestRegistryAddIgnoresBlankNames(t *testing.T) {
	registry := NewRegistry()
	registry.Add("", "  ", "mono")

	if !registry.Valid("mono") {
		t.Fatal("expected mono to be valid")
	}
	names := registry.Names()
	for _, name := range names {
		if name == "" {
			t.Fatal("blank name leaked into registry")
		}
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	registry := NewRegistry("zzz", "aaa")
	names := registry.Names()
	if len(names) < 2 {
		t.Fatalf("expected at least 2 names, got %v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
}

func TestNopApplier(t *testing.T) {
	if err := (NopApplier{}).Apply(context.Background(), "nordic"); err != nil {
		t.Fatalf("nop applier: %v", err)
	}
}

func TestHookApplierRunsCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	applier := &HookApplier{Command: "true"}
	if err := applier.Apply(context.Background(), "nordic"); err != nil {
		t.Fatalf("expected hook to succeed: %v", err)
	}

	failing := &HookApplier{Command: "false"}
	if err := failing.Apply(context.Background(), "nordic"); err == nil {
		t.Fatal("expected failing hook to report an error")
	}
}

func TestHookApplierEmptyCommand(t *testing.T) {
	applier := &HookApplier{}
	if err := applier.Apply(context.Background(), "nordic"); err != nil {
		t.Fatalf("empty hook command should be a no-op: %v", err)
	}
}
