package core

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// CommandHandler decodes its arguments from the front of args and appends
// its reply to out.
type CommandHandler func(ctx context.Context, args *[]byte, out []byte) ([]byte, error)

// Command is one entry of a CommandRegistry.
type Command struct {
	ID      uint16
	Name    string
	Format  string // argument description for the dictionary, e.g. "bus=%s n=%u"
	Handler CommandHandler
}

// ErrUnknownCommand is returned by Dispatch for an unregistered ID.
var ErrUnknownCommand = errors.New("unknown command")

// CommandRegistry assigns sequential IDs to named commands and publishes
// them as a dictionary, one "name format" line per ID.
type CommandRegistry struct {
	mu         sync.RWMutex
	commands   []*Command
	nameToID   map[string]uint16
	dictionary string
}

// NewCommandRegistry creates an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{nameToID: make(map[string]uint16)}
}

// Register adds a command and returns its ID. Registering a name twice
// returns the first ID and keeps the first handler.
func (r *CommandRegistry) Register(name, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.nameToID[name]; exists {
		return id
	}
	id := uint16(len(r.commands))
	r.commands = append(r.commands, &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	})
	r.nameToID[name] = id
	r.rebuildDictionary()
	return id
}

// GetCommand retrieves a command by ID.
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.commands) {
		return nil, false
	}
	return r.commands[id], true
}

// Lookup returns the ID of a command by name.
func (r *CommandRegistry) Lookup(name string) (uint16, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	return id, ok
}

// Count returns the number of registered commands.
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler of command id.
func (r *CommandRegistry) Dispatch(ctx context.Context, id uint16, args *[]byte, out []byte) ([]byte, error) {
	cmd, ok := r.GetCommand(id)
	if !ok || cmd.Handler == nil {
		return out, ErrUnknownCommand
	}
	return cmd.Handler(ctx, args, out)
}

// Dictionary returns the command dictionary.
func (r *CommandRegistry) Dictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dictionary
}

// Must be called with the lock held.
func (r *CommandRegistry) rebuildDictionary() {
	var sb strings.Builder
	for _, cmd := range r.commands {
		sb.WriteString(cmd.Name)
		if cmd.Format != "" {
			sb.WriteByte(' ')
			sb.WriteString(cmd.Format)
		}
		sb.WriteByte('\n')
	}
	r.dictionary = sb.String()
}

// ParseDictionary maps command names to IDs from a dictionary produced by
// CommandRegistry.Dictionary.
func ParseDictionary(dict string) map[string]uint16 {
	ids := make(map[string]uint16)
	id := uint16(0)
	for _, line := range strings.Split(dict, "\n") {
		if line == "" {
			continue
		}
		name, _, _ := strings.Cut(line, " ")
		ids[name] = id
		id++
	}
	return ids
}
