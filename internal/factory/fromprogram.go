package factory

import (
	"fmt"

	"github.com/oichkatz/csopesy/internal/process"
)

// FromProgram parses src and returns a Ready, user-mode process named
// name. It fails if name is already taken (the uniqueness guarantee of
// §4.4 applies to user-authored processes too).
func (f *Factory) FromProgram(name, src string, vmLimit uint32) (*process.Process, error) {
	if !f.reserveName(name) {
		return nil, fmt.Errorf("factory: process name %q already in use", name)
	}
	instrs, err := ParseProgram(src)
	if err != nil {
		return nil, err
	}
	id := f.allocID()
	return process.New(id, name, instrs, vmLimit, process.UserMode), nil
}
