// Package vm executes the bytecode package compiler produces: an
// accumulator-and-stack dispatch loop over a shared constant pool, a
// call-frame stack, and a name-addressed global table.
package vm

import (
	"fmt"
	"math"

	"github.com/dolthub/swiss"

	"github.com/dr8co/ember/code"
	"github.com/dr8co/ember/diag"
	"github.com/dr8co/ember/span"
	"github.com/dr8co/ember/value"
)

const (
	// StackSize is the fixed capacity of the operand stack, shared by
	// every frame.
	StackSize = 2048
	// MaxFrames bounds call depth; exceeding it is a runtime
	// diagnostic rather than a Go stack overflow.
	MaxFrames = 1024
)

// GlobalsStore is the name-addressed table `load-global`/`store-global`
// read and write. Exposed as its own type (rather than buried in VM)
// so a REPL can keep one alive across many VM instances, one per line.
type GlobalsStore struct {
	m *swiss.Map[string, value.Value]
}

// NewGlobalsStore creates an empty globals table seeded with every
// registered built-in.
func NewGlobalsStore() *GlobalsStore {
	g := &GlobalsStore{m: swiss.NewMap[string, value.Value](uint32(64))}
	for _, b := range value.Builtins {
		g.m.Put(b.Name, b.Builtin)
	}
	return g
}

// VM executes one top-level code object against a GlobalsStore.
type VM struct {
	constants []value.Value

	stack []value.Value
	sp    int
	acc   value.Value

	globals *GlobalsStore

	frames      []*Frame
	framesIndex int
}

// New creates a VM to run fn, with a fresh, builtin-seeded globals
// table.
func New(fn *value.CompiledFunction, constants []value.Value) *VM {
	return NewWithGlobalsStore(fn, constants, NewGlobalsStore())
}

// NewWithGlobalsStore is like New but runs against an existing globals
// table, the pattern a REPL uses to let each line see the declarations
// of the ones before it.
func NewWithGlobalsStore(fn *value.CompiledFunction, constants []value.Value, globals *GlobalsStore) *VM {
	mainClosure := &value.Closure{Fn: fn}
	mainFrame := NewFrame(mainClosure, 0)

	frames := make([]*Frame, MaxFrames)
	frames[0] = mainFrame

	return &VM{
		constants:   constants,
		stack:       make([]value.Value, StackSize),
		acc:         value.UndefinedValue,
		globals:     globals,
		frames:      frames,
		framesIndex: 1,
	}
}

// Globals returns the VM's globals table, so a REPL can thread it into
// the next line's VM.
func (vm *VM) Globals() *GlobalsStore { return vm.globals }

func (vm *VM) currentFrame() *Frame {
	return vm.frames[vm.framesIndex-1]
}

func (vm *VM) pushFrame(f *Frame) *diag.Diagnostic {
	if vm.framesIndex >= MaxFrames {
		return diag.New(diag.Runtime, diag.RangeError, span.Span{}, "call stack exceeded maximum depth of %d", MaxFrames)
	}
	vm.frames[vm.framesIndex] = f
	vm.framesIndex++
	return nil
}

func (vm *VM) popFrame() *Frame {
	vm.framesIndex--
	return vm.frames[vm.framesIndex]
}

func (vm *VM) push(v value.Value) *diag.Diagnostic {
	if vm.sp >= StackSize {
		return diag.New(diag.Runtime, diag.RangeError, span.Span{}, "operand stack overflow")
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

func (vm *VM) pop() value.Value {
	vm.sp--
	return vm.stack[vm.sp]
}

// Result returns the accumulator's final value after Run returns
// successfully: per spec.md §4.4, the value of the program's last
// top-level statement.
func (vm *VM) Result() value.Value {
	if vm.acc == nil {
		return value.UndefinedValue
	}
	return vm.acc
}

// Run executes instructions until the top-level frame returns,
// yielding the first runtime diagnostic encountered.
func (vm *VM) Run() *diag.Diagnostic {
	for {
		frame := vm.currentFrame()
		ins := frame.Instructions()
		if frame.ip >= len(ins)-1 {
			if vm.framesIndex == 1 {
				return nil
			}
			vm.sp = frame.basePointer
			vm.popFrame()
			continue
		}

		frame.ip++
		ip := frame.ip
		op := code.Opcode(ins[ip])

		switch op {
		case code.OpConstant:
			idx := code.ReadUint16(ins[ip+1:])
			frame.ip += 2
			vm.acc = vm.constants[idx]

		case code.OpLoadLocal:
			slot := int(code.ReadUint16(ins[ip+1:]))
			frame.ip += 2
			vm.acc = vm.stack[frame.basePointer+slot]

		case code.OpStoreLocal:
			slot := int(code.ReadUint16(ins[ip+1:]))
			frame.ip += 2
			vm.stack[frame.basePointer+slot] = vm.acc

		case code.OpLoadGlobal:
			idx := code.ReadUint16(ins[ip+1:])
			frame.ip += 2
			name := string(vm.constants[idx].(value.String))
			v, ok := vm.globals.m.Get(name)
			if !ok {
				return diag.New(diag.Runtime, diag.ReferenceError, vm.lineSpan(frame), "%s is not defined", name)
			}
			vm.acc = v

		case code.OpStoreGlobal:
			idx := code.ReadUint16(ins[ip+1:])
			frame.ip += 2
			name := string(vm.constants[idx].(value.String))
			vm.globals.m.Put(name, vm.acc)

		case code.OpPush:
			if d := vm.push(vm.acc); d != nil {
				return d
			}

		case code.OpPopToAcc:
			vm.acc = vm.pop()

		case code.OpAdd, code.OpSub, code.OpMul, code.OpDiv, code.OpMod, code.OpPow,
			code.OpEq, code.OpNotEq, code.OpStrictEq, code.OpStrictNotEq,
			code.OpLess, code.OpGreater, code.OpLessEq, code.OpGreaterEq,
			code.OpBitAnd, code.OpBitOr, code.OpBitXor, code.OpShl, code.OpShr, code.OpUShr:
			left := vm.pop()
			right := vm.acc
			result, d := evalBinaryOp(op, left, right, vm.lineSpan(frame))
			if d != nil {
				return d
			}
			vm.acc = result

		case code.OpNeg:
			n, d := toNumber(vm.acc, vm.lineSpan(frame))
			if d != nil {
				return d
			}
			vm.acc = value.Number(-n)
		case code.OpUnaryPlus:
			n, d := toNumber(vm.acc, vm.lineSpan(frame))
			if d != nil {
				return d
			}
			vm.acc = value.Number(n)
		case code.OpLogicalNot:
			vm.acc = value.Bool(!value.Truthy(vm.acc))
		case code.OpBitNot:
			n, d := toNumber(vm.acc, vm.lineSpan(frame))
			if d != nil {
				return d
			}
			vm.acc = value.Number(float64(^numberToInt32(n)))

		case code.OpIncLocal, code.OpDecLocal:
			slot := int(code.ReadUint16(ins[ip+1:]))
			flagPre := code.ReadUint8(ins[ip+3:]) == 1
			frame.ip += 3
			old, d := toNumber(vm.stack[frame.basePointer+slot], vm.lineSpan(frame))
			if d != nil {
				return d
			}
			delta := 1.0
			if op == code.OpDecLocal {
				delta = -1.0
			}
			newVal := value.Number(old + delta)
			vm.stack[frame.basePointer+slot] = newVal
			if flagPre {
				vm.acc = newVal
			} else {
				vm.acc = value.Number(old)
			}

		case code.OpJump:
			offset := int(code.ReadInt16(ins[ip+1:]))
			frame.ip = ip + 2 + offset

		case code.OpJumpIfFalse:
			offset := int(code.ReadInt16(ins[ip+1:]))
			if !value.Truthy(vm.acc) {
				frame.ip = ip + 2 + offset
			} else {
				frame.ip = ip + 2
			}

		case code.OpJumpIfTrue:
			offset := int(code.ReadInt16(ins[ip+1:]))
			if value.Truthy(vm.acc) {
				frame.ip = ip + 2 + offset
			} else {
				frame.ip = ip + 2
			}

		case code.OpJumpIfNullish:
			offset := int(code.ReadInt16(ins[ip+1:]))
			if value.IsNullish(vm.acc) {
				frame.ip = ip + 2 + offset
			} else {
				frame.ip = ip + 2
			}

		case code.OpCall:
			argc := int(code.ReadUint8(ins[ip+1:]))
			frame.ip += 1
			if d := vm.callFunction(argc, vm.lineSpan(frame)); d != nil {
				return d
			}

		case code.OpReturnValue:
			bp := frame.basePointer
			vm.sp = bp
			vm.popFrame()
			if vm.framesIndex == 0 {
				return nil
			}

		case code.OpReturnUndefined:
			vm.acc = value.UndefinedValue
			bp := frame.basePointer
			vm.sp = bp
			vm.popFrame()
			if vm.framesIndex == 0 {
				return nil
			}

		case code.OpCreateObject:
			vm.acc = value.NewObject()

		case code.OpCreateArray:
			n := int(code.ReadUint16(ins[ip+1:]))
			frame.ip += 2
			elems := make([]value.Value, n)
			for i := n - 1; i >= 0; i-- {
				elems[i] = vm.pop()
			}
			vm.acc = value.NewArray(elems)

		case code.OpCreateClosure:
			idx := code.ReadUint16(ins[ip+1:])
			frame.ip += 2
			fn, ok := vm.constants[idx].(*value.CompiledFunction)
			if !ok {
				return diag.New(diag.Runtime, diag.TypeError, vm.lineSpan(frame), "constant %d is not a function", idx)
			}
			vm.acc = &value.Closure{Fn: fn}

		case code.OpLoadNamed:
			idx := code.ReadUint16(ins[ip+1:])
			frame.ip += 2
			name := string(vm.constants[idx].(value.String))
			v, d := vm.loadMember(vm.acc, name, vm.lineSpan(frame))
			if d != nil {
				return d
			}
			vm.acc = v

		case code.OpStoreNamed:
			idx := code.ReadUint16(ins[ip+1:])
			frame.ip += 2
			name := string(vm.constants[idx].(value.String))
			obj := vm.pop()
			if d := vm.storeMember(obj, name, vm.acc, vm.lineSpan(frame)); d != nil {
				return d
			}

		case code.OpLoadKeyed:
			obj := vm.pop()
			key := value.KeyString(vm.acc)
			v, d := vm.loadMember(obj, key, vm.lineSpan(frame))
			if d != nil {
				return d
			}
			vm.acc = v

		case code.OpStoreKeyed:
			key := value.KeyString(vm.pop())
			obj := vm.pop()
			if d := vm.storeMember(obj, key, vm.acc, vm.lineSpan(frame)); d != nil {
				return d
			}

		default:
			return diag.New(diag.Runtime, diag.TypeError, vm.lineSpan(frame), "unknown opcode %d", op)
		}
	}
}

func (vm *VM) lineSpan(frame *Frame) span.Span {
	line := frame.cl.Fn.Lines[frame.ip]
	return span.Span{Line: line}
}

// callFunction implements the `call n` contract (spec.md §4.4): pop n
// args then `this` then callee, dispatch on callee's kind.
func (vm *VM) callFunction(argc int, sp span.Span) *diag.Diagnostic {
	args := make([]value.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = vm.pop()
	}
	thisVal := vm.pop()
	callee := vm.pop()

	switch fn := callee.(type) {
	case *value.Closure:
		numParams := fn.Fn.NumParameters
		bp := vm.sp
		needed := fn.Fn.NumLocals
		if needed < numParams+1 {
			needed = numParams + 1
		}
		for vm.sp < bp+needed {
			if d := vm.push(value.UndefinedValue); d != nil {
				return d
			}
		}
		vm.stack[bp] = thisVal
		for i := 0; i < numParams; i++ {
			if i < argc {
				vm.stack[bp+1+i] = args[i]
			} else {
				vm.stack[bp+1+i] = value.UndefinedValue
			}
		}
		return vm.pushFrame(NewFrame(fn, bp))

	case *value.Builtin:
		result, err := fn.Fn(args)
		if err != nil {
			return diag.New(diag.Runtime, diag.TypeError, sp, "%v", err)
		}
		vm.acc = result
		return nil

	default:
		return diag.New(diag.Runtime, diag.TypeError, sp, "%s is not a function", value.TypeName(callee))
	}
}

func (vm *VM) loadMember(obj value.Value, key string, sp span.Span) (value.Value, *diag.Diagnostic) {
	switch o := obj.(type) {
	case *value.Object:
		v, ok := o.Get(key)
		if !ok {
			return value.UndefinedValue, nil
		}
		return v, nil
	case *value.Array:
		if key == "length" {
			return value.Number(o.Length()), nil
		}
		if idx, ok := value.IndexFromKey(key); ok {
			return o.Get(idx), nil
		}
		return value.UndefinedValue, nil
	case value.String:
		if key == "length" {
			return value.Number(len([]rune(string(o)))), nil
		}
		if idx, ok := value.IndexFromKey(key); ok {
			runes := []rune(string(o))
			if idx < 0 || idx >= len(runes) {
				return value.UndefinedValue, nil
			}
			return value.String(runes[idx]), nil
		}
		return value.UndefinedValue, nil
	case value.Null, value.Undefined:
		return nil, diag.New(diag.Runtime, diag.TypeError, sp, "cannot read property %q of %s", key, obj.String())
	default:
		return value.UndefinedValue, nil
	}
}

func (vm *VM) storeMember(obj value.Value, key string, val value.Value, sp span.Span) *diag.Diagnostic {
	switch o := obj.(type) {
	case *value.Object:
		o.Set(key, val)
		return nil
	case *value.Array:
		if idx, ok := value.IndexFromKey(key); ok {
			o.Set(idx, val)
			return nil
		}
		return nil
	case value.Null, value.Undefined:
		return diag.New(diag.Runtime, diag.TypeError, sp, "cannot set property %q of %s", key, obj.String())
	default:
		return nil
	}
}

// ---- value coercion (spec.md §4.4 "Value operations") ----

func toNumber(v value.Value, sp span.Span) (float64, *diag.Diagnostic) {
	switch x := v.(type) {
	case value.Number:
		return float64(x), nil
	case value.Bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case value.String:
		if x == "" {
			return 0, nil
		}
		n, err := parseFloatStrict(string(x))
		if err != nil {
			return math.NaN(), nil
		}
		return n, nil
	case value.Null:
		return 0, nil
	case value.Undefined:
		return math.NaN(), nil
	default:
		return 0, diag.New(diag.Runtime, diag.TypeError, sp, "cannot convert %s to a number", value.TypeName(v))
	}
}

func parseFloatStrict(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	if err != nil {
		return 0, err
	}
	return f, nil
}

func numberToInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(f)))
}

func numberToUint32(f float64) uint32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return uint32(int64(f))
}

func isString(v value.Value) bool {
	_, ok := v.(value.String)
	return ok
}

func evalBinaryOp(op code.Opcode, left, right value.Value, sp span.Span) (value.Value, *diag.Diagnostic) {
	switch op {
	case code.OpAdd:
		if isString(left) || isString(right) {
			return value.String(left.String() + right.String()), nil
		}
		l, d := toNumber(left, sp)
		if d != nil {
			return nil, d
		}
		r, d := toNumber(right, sp)
		if d != nil {
			return nil, d
		}
		return value.Number(l + r), nil

	case code.OpSub, code.OpMul, code.OpDiv, code.OpMod, code.OpPow:
		l, d := toNumber(left, sp)
		if d != nil {
			return nil, d
		}
		r, d := toNumber(right, sp)
		if d != nil {
			return nil, d
		}
		switch op {
		case code.OpSub:
			return value.Number(l - r), nil
		case code.OpMul:
			return value.Number(l * r), nil
		case code.OpDiv:
			if r == 0 {
				return nil, diag.New(diag.Runtime, diag.DivisionByZero, sp, "division by zero")
			}
			return value.Number(l / r), nil
		case code.OpMod:
			if r == 0 {
				return nil, diag.New(diag.Runtime, diag.DivisionByZero, sp, "division by zero")
			}
			return value.Number(math.Mod(l, r)), nil
		case code.OpPow:
			return value.Number(math.Pow(l, r)), nil
		}

	case code.OpEq, code.OpNotEq:
		eq := looseEquals(left, right)
		if op == code.OpNotEq {
			eq = !eq
		}
		return value.Bool(eq), nil

	case code.OpStrictEq, code.OpStrictNotEq:
		eq := strictEquals(left, right)
		if op == code.OpStrictNotEq {
			eq = !eq
		}
		return value.Bool(eq), nil

	case code.OpLess, code.OpGreater, code.OpLessEq, code.OpGreaterEq:
		if ls, ok := left.(value.String); ok {
			if rs, ok := right.(value.String); ok {
				return value.Bool(compareStrings(op, string(ls), string(rs))), nil
			}
		}
		l, d := toNumber(left, sp)
		if d != nil {
			return nil, d
		}
		r, d := toNumber(right, sp)
		if d != nil {
			return nil, d
		}
		return value.Bool(compareNumbers(op, l, r)), nil

	case code.OpBitAnd, code.OpBitOr, code.OpBitXor, code.OpShl, code.OpShr, code.OpUShr:
		lf, d := toNumber(left, sp)
		if d != nil {
			return nil, d
		}
		rf, d := toNumber(right, sp)
		if d != nil {
			return nil, d
		}
		li, ri := numberToInt32(lf), numberToInt32(rf)
		switch op {
		case code.OpBitAnd:
			return value.Number(float64(li & ri)), nil
		case code.OpBitOr:
			return value.Number(float64(li | ri)), nil
		case code.OpBitXor:
			return value.Number(float64(li ^ ri)), nil
		case code.OpShl:
			shift := numberToUint32(rf) & 31
			return value.Number(float64(li << shift)), nil
		case code.OpShr:
			shift := numberToUint32(rf) & 31
			return value.Number(float64(li >> shift)), nil
		case code.OpUShr:
			shift := numberToUint32(rf) & 31
			return value.Number(float64(numberToUint32(lf) >> shift)), nil
		}
	}
	return nil, diag.New(diag.Runtime, diag.TypeError, sp, "unsupported binary opcode %d", op)
}

func compareNumbers(op code.Opcode, l, r float64) bool {
	switch op {
	case code.OpLess:
		return l < r
	case code.OpGreater:
		return l > r
	case code.OpLessEq:
		return l <= r
	case code.OpGreaterEq:
		return l >= r
	}
	return false
}

func compareStrings(op code.Opcode, l, r string) bool {
	switch op {
	case code.OpLess:
		return l < r
	case code.OpGreater:
		return l > r
	case code.OpLessEq:
		return l <= r
	case code.OpGreaterEq:
		return l >= r
	}
	return false
}

// strictEquals requires identical kinds, and reference identity for
// objects/arrays/functions (spec.md's "same tag").
func strictEquals(a, b value.Value) bool {
	switch x := a.(type) {
	case value.Number:
		y, ok := b.(value.Number)
		return ok && x == y
	case value.String:
		y, ok := b.(value.String)
		return ok && x == y
	case value.Bool:
		y, ok := b.(value.Bool)
		return ok && x == y
	case value.Null:
		_, ok := b.(value.Null)
		return ok
	case value.Undefined:
		_, ok := b.(value.Undefined)
		return ok
	case *value.Object:
		y, ok := b.(*value.Object)
		return ok && x == y
	case *value.Array:
		y, ok := b.(*value.Array)
		return ok && x == y
	case *value.Closure:
		y, ok := b.(*value.Closure)
		return ok && x == y
	case *value.Builtin:
		y, ok := b.(*value.Builtin)
		return ok && x == y
	default:
		return false
	}
}

// looseEquals adds number/string cross-coercion and null-undefined
// equivalence on top of strictEquals (spec.md §4.4).
func looseEquals(a, b value.Value) bool {
	if value.IsNullish(a) && value.IsNullish(b) {
		return true
	}
	_, aNum := a.(value.Number)
	_, aStr := a.(value.String)
	_, bNum := b.(value.Number)
	_, bStr := b.(value.String)
	if (aNum && bStr) || (aStr && bNum) {
		af, d1 := toNumber(a, span.Span{})
		bf, d2 := toNumber(b, span.Span{})
		if d1 != nil || d2 != nil {
			return false
		}
		return af == bf
	}
	return strictEquals(a, b)
}
