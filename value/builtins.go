package value

import (
	"fmt"
)

// BuiltinDef names one entry of the built-in registry populated at VM
// construction (spec.md §4.4 "Built-ins").
type BuiltinDef struct {
	Name    string
	Builtin *Builtin
}

// Builtins is the set of native callables every VM instance starts
// with. The spec mandates at minimum a printing primitive; the rest
// mirror the small prelude a bytecode interpreter needs to make the
// end-to-end scenarios in spec.md §8 runnable without a surrounding
// standard library.
var Builtins = []BuiltinDef{
	{"print", &Builtin{Name: "print", Fn: builtinPrint}},
	{"len", &Builtin{Name: "len", Fn: builtinLen}},
	{"push", &Builtin{Name: "push", Fn: builtinPush}},
	{"keys", &Builtin{Name: "keys", Fn: builtinKeys}},
	{"typeof", &Builtin{Name: "typeof", Fn: builtinTypeof}},
	{"delete", &Builtin{Name: "delete", Fn: builtinDelete}},
}

// GetBuiltinByName looks up a built-in by name, returning nil if none
// is registered under that name.
func GetBuiltinByName(name string) *Builtin {
	for _, def := range Builtins {
		if def.Name == name {
			return def.Builtin
		}
	}
	return nil
}

func builtinPrint(args []Value) (Value, error) {
	for i, a := range args {
		if i > 0 {
			fmt.Print(" ")
		}
		fmt.Print(a.String())
	}
	fmt.Println()
	return UndefinedValue, nil
}

func builtinLen(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("wrong number of arguments, got=%d, want=1", len(args))
	}
	switch arg := args[0].(type) {
	case String:
		return Number(len([]rune(string(arg)))), nil
	case *Array:
		return Number(arg.Length()), nil
	case *Object:
		return Number(arg.Len()), nil
	default:
		return nil, fmt.Errorf("argument to `len` not supported, got %s", TypeName(args[0]))
	}
}

func builtinPush(args []Value) (Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("wrong number of arguments, got=%d, want=2", len(args))
	}
	arr, ok := args[0].(*Array)
	if !ok {
		return nil, fmt.Errorf("argument to `push` not supported, got %s", TypeName(args[0]))
	}
	newElems := make([]Value, len(arr.Elements)+1)
	copy(newElems, arr.Elements)
	newElems[len(arr.Elements)] = args[1]
	return NewArray(newElems), nil
}

func builtinKeys(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("wrong number of arguments, got=%d, want=1", len(args))
	}
	obj, ok := args[0].(*Object)
	if !ok {
		return nil, fmt.Errorf("argument to `keys` not supported, got %s", TypeName(args[0]))
	}
	elems := make([]Value, len(obj.Keys()))
	for i, k := range obj.Keys() {
		elems[i] = String(k)
	}
	return NewArray(elems), nil
}

func builtinTypeof(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("wrong number of arguments, got=%d, want=1", len(args))
	}
	return String(TypeName(args[0])), nil
}

// builtinDelete backs the `delete` operator's lowering (compiler
// package): removing a non-existent property, or deleting from a
// non-object, is a no-op that still reports success.
func builtinDelete(args []Value) (Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("wrong number of arguments, got=%d, want=2", len(args))
	}
	obj, ok := args[0].(*Object)
	if !ok {
		return True, nil
	}
	obj.Delete(KeyString(args[1]))
	return True, nil
}
