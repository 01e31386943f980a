package vm

import (
	"github.com/dr8co/ember/code"
	"github.com/dr8co/ember/value"
)

// Frame is one call's execution context: the closure being run, its
// instruction pointer, and where its locals begin on the operand
// stack.
type Frame struct {
	cl *value.Closure

	ip int

	// basePointer is the stack index of local slot 0 (the `this`
	// binding) for this call.
	basePointer int
}

// NewFrame creates a frame for cl, with locals based at basePointer.
func NewFrame(cl *value.Closure, basePointer int) *Frame {
	return &Frame{cl: cl, ip: -1, basePointer: basePointer}
}

// Instructions returns the bytecode of the frame's underlying function.
func (f *Frame) Instructions() code.Instructions {
	return f.cl.Fn.Instructions
}
