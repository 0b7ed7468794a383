package core

import (
	"context"
	"errors"
	"testing"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	var called bool
	handler := func(ctx context.Context, args *[]byte, out []byte) ([]byte, error) {
		called = true
		*args = (*args)[1:]
		return append(out, 0x2A), nil
	}
	id := registry.Register("test_command", "arg=%u", handler)
	if id != 0 {
		t.Errorf("Expected first command to have ID 0, got %d", id)
	}

	cmd, ok := registry.GetCommand(id)
	if !ok {
		t.Fatal("Failed to retrieve registered command")
	}
	if cmd.Name != "test_command" {
		t.Errorf("Expected command name 'test_command', got '%s'", cmd.Name)
	}

	args := []byte{0x01, 0x02}
	out, err := registry.Dispatch(context.Background(), id, &args, nil)
	if err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if !called || len(out) != 1 || out[0] != 0x2A {
		t.Errorf("Handler not run as expected: called=%v out=%x", called, out)
	}
	if len(args) != 1 {
		t.Errorf("Handler should consume its argument, %d bytes left", len(args))
	}

	if _, err := registry.Dispatch(context.Background(), 999, &args, nil); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}
}

func TestCommandRegistryDictionary(t *testing.T) {
	registry := NewCommandRegistry()
	nop := func(ctx context.Context, args *[]byte, out []byte) ([]byte, error) { return out, nil }

	id1 := registry.Register("identify", "", nop)
	id2 := registry.Register("spi_send", "bus=%s data=%*s", nop)
	id3 := registry.Register("spi_state", "bus=%s", nop)
	if id1 != 0 || id2 != 1 || id3 != 2 {
		t.Errorf("Command IDs not sequential: %d, %d, %d", id1, id2, id3)
	}
	if again := registry.Register("spi_send", "", nil); again != id2 {
		t.Errorf("Duplicate registration returned %d, want %d", again, id2)
	}
	if registry.Count() != 3 {
		t.Errorf("Expected 3 commands, got %d", registry.Count())
	}

	want := "identify\nspi_send bus=%s data=%*s\nspi_state bus=%s\n"
	if got := registry.Dictionary(); got != want {
		t.Errorf("Dictionary = %q, want %q", got, want)
	}

	ids := ParseDictionary(registry.Dictionary())
	for _, name := range []string{"identify", "spi_send", "spi_state"} {
		want, _ := registry.Lookup(name)
		if got, ok := ids[name]; !ok || got != want {
			t.Errorf("ParseDictionary[%s] = %d, %v; want %d", name, got, ok, want)
		}
	}
}
