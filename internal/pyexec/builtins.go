package pyexec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// builtinValue resolves names that behave like values rather than callables
// (currently none beyond what NameExpr already handles via keywords), kept
// for symmetry with callBuiltin and future constants.
func builtinValue(name string) (Value, bool) {
	return Value{}, false
}


func callBuiltin(in *Interp, name string, args []Value, line int) (Value, error) {
	switch name {
	case "print":
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = Str(a)
		}
		line := strings.Join(parts, " ")
		if in.Print != nil {
			in.Print(line)
		}
		return NoneVal(), nil
	case "len":
		if len(args) != 1 {
			return Value{}, rerr(line, "TypeError", "len() takes exactly one argument")
		}
		return lenOf(args[0], line)
	case "range":
		return rangeBuiltin(args, line)
	case "sorted":
		return sortedBuiltin(args, line)
	case "enumerate":
		return enumerateBuiltin(args, line)
	case "zip":
		return zipBuiltin(args, line)
	case "abs":
		if len(args) != 1 || !isNumeric(args[0]) {
			return Value{}, rerr(line, "TypeError", "abs() requires a numeric argument")
		}
		if args[0].Kind == KindInt {
			if args[0].I < 0 {
				return IntVal(-args[0].I), nil
			}
			return args[0], nil
		}
		if args[0].F < 0 {
			return FloatVal(-args[0].F), nil
		}
		return args[0], nil
	case "min", "max":
		return minMaxBuiltin(name, args, line)
	case "sum":
		return sumBuiltin(args, line)
	case "round":
		return roundBuiltin(args, line)
	case "str":
		if len(args) == 0 {
			return StrVal(""), nil
		}
		return StrVal(Str(args[0])), nil
	case "repr":
		if len(args) != 1 {
			return Value{}, rerr(line, "TypeError", "repr() takes exactly one argument")
		}
		return StrVal(Repr(args[0])), nil
	case "int":
		return intBuiltin(args, line)
	case "float":
		return floatBuiltin(args, line)
	case "bool":
		if len(args) == 0 {
			return BoolVal(false), nil
		}
		return BoolVal(args[0].Truthy()), nil
	case "list":
		return collectBuiltin(args, line, func(vs []Value) Value { return ListVal(vs) })
	case "tuple":
		return collectBuiltin(args, line, func(vs []Value) Value { return TupleVal(vs) })
	case "set":
		return collectBuiltin(args, line, func(vs []Value) Value {
			s := NewOrderedSet()
			for _, v := range vs {
				s.Add(v)
			}
			return SetValOf(s)
		})
	case "dict":
		if len(args) == 0 {
			return DictVal(NewOrderedDict()), nil
		}
		return Value{}, rerr(line, "TypeError", "dict() with arguments is not supported")
	case "type":
		if len(args) != 1 {
			return Value{}, rerr(line, "TypeError", "type() takes exactly one argument")
		}
		return StrVal(fmt.Sprintf("<class '%s'>", args[0].Kind)), nil
	default:
		return Value{}, rerr(line, "NameError", "name '%s' is not defined", name)
	}
}

func collectBuiltin(args []Value, line int, build func([]Value) Value) (Value, error) {
	if len(args) == 0 {
		return build(nil), nil
	}
	if len(args) != 1 {
		return Value{}, rerr(line, "TypeError", "expected at most 1 argument")
	}
	vals, err := iterate(args[0], line)
	if err != nil {
		return Value{}, err
	}
	return build(vals), nil
}

func lenOf(v Value, line int) (Value, error) {
	switch v.Kind {
	case KindStr:
		return IntVal(int64(len([]rune(v.S)))), nil
	case KindList:
		return IntVal(int64(len(*v.List))), nil
	case KindTuple:
		return IntVal(int64(len(v.Tup))), nil
	case KindDict:
		return IntVal(int64(v.Dict.Len())), nil
	case KindSet:
		return IntVal(int64(v.Set.Len())), nil
	default:
		return Value{}, rerr(line, "TypeError", "object of type '%s' has no len()", v.Kind)
	}
}

func rangeBuiltin(args []Value, line int) (Value, error) {
	var start, stop, step int64 = 0, 0, 1
	switch len(args) {
	case 1:
		stop = args[0].I
	case 2:
		start, stop = args[0].I, args[1].I
	case 3:
		start, stop, step = args[0].I, args[1].I, args[2].I
	default:
		return Value{}, rerr(line, "TypeError", "range expected 1 to 3 arguments, got %d", len(args))
	}
	if step == 0 {
		return Value{}, rerr(line, "ValueError", "range() arg 3 must not be zero")
	}
	var out []Value
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, IntVal(i))
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, IntVal(i))
		}
	}
	return ListVal(out), nil
}

func sortedBuiltin(args []Value, line int) (Value, error) {
	if len(args) != 1 {
		return Value{}, rerr(line, "TypeError", "sorted() takes exactly one argument")
	}
	vals, err := iterate(args[0], line)
	if err != nil {
		return Value{}, err
	}
	out := append([]Value(nil), vals...)
	var sortErr error
	sort.SliceStable(out, func(i, j int) bool {
		r, err := compareOp(LT, out[i], out[j], line)
		if err != nil {
			sortErr = err
			return false
		}
		return r.B
	})
	if sortErr != nil {
		return Value{}, sortErr
	}
	return ListVal(out), nil
}

func enumerateBuiltin(args []Value, line int) (Value, error) {
	if len(args) == 0 {
		return Value{}, rerr(line, "TypeError", "enumerate() missing argument")
	}
	vals, err := iterate(args[0], line)
	if err != nil {
		return Value{}, err
	}
	start := int64(0)
	if len(args) == 2 {
		start = args[1].I
	}
	out := make([]Value, len(vals))
	for i, v := range vals {
		out[i] = TupleVal([]Value{IntVal(start + int64(i)), v})
	}
	return ListVal(out), nil
}

func zipBuiltin(args []Value, line int) (Value, error) {
	lists := make([][]Value, len(args))
	minLen := -1
	for i, a := range args {
		vals, err := iterate(a, line)
		if err != nil {
			return Value{}, err
		}
		lists[i] = vals
		if minLen == -1 || len(vals) < minLen {
			minLen = len(vals)
		}
	}
	if minLen < 0 {
		minLen = 0
	}
	out := make([]Value, minLen)
	for i := 0; i < minLen; i++ {
		tup := make([]Value, len(lists))
		for j := range lists {
			tup[j] = lists[j][i]
		}
		out[i] = TupleVal(tup)
	}
	return ListVal(out), nil
}

func minMaxBuiltin(name string, args []Value, line int) (Value, error) {
	var vals []Value
	if len(args) == 1 {
		var err error
		vals, err = iterate(args[0], line)
		if err != nil {
			return Value{}, err
		}
	} else {
		vals = args
	}
	if len(vals) == 0 {
		return Value{}, rerr(line, "ValueError", "%s() arg is an empty sequence", name)
	}
	best := vals[0]
	for _, v := range vals[1:] {
		op := LT
		if name == "max" {
			op = GT
		}
		r, err := compareOp(op, v, best, line)
		if err != nil {
			return Value{}, err
		}
		if r.B {
			best = v
		}
	}
	return best, nil
}

func sumBuiltin(args []Value, line int) (Value, error) {
	if len(args) == 0 || len(args) > 2 {
		return Value{}, rerr(line, "TypeError", "sum() takes 1 or 2 arguments")
	}
	vals, err := iterate(args[0], line)
	if err != nil {
		return Value{}, err
	}
	acc := IntVal(0)
	if len(args) == 2 {
		acc = args[1]
	}
	for _, v := range vals {
		acc, err = addOp(acc, v, line)
		if err != nil {
			return Value{}, err
		}
	}
	return acc, nil
}

func roundBuiltin(args []Value, line int) (Value, error) {
	if len(args) == 0 || !isNumeric(args[0]) {
		return Value{}, rerr(line, "TypeError", "round() requires a numeric argument")
	}
	f := asFloat(args[0])
	ndigits := 0
	hasNdigits := len(args) == 2
	if hasNdigits {
		ndigits = int(args[1].I)
	}
	mult := pow(10, float64(ndigits))
	rounded := roundHalfEven(f*mult) / mult
	if !hasNdigits {
		return IntVal(int64(rounded)), nil
	}
	return FloatVal(rounded), nil
}

func roundHalfEven(f float64) float64 {
	floor := float64(int64(f))
	diff := f - floor
	switch {
	case diff < 0.5:
		return floor
	case diff > 0.5:
		return floor + 1
	default:
		if int64(floor)%2 == 0 {
			return floor
		}
		return floor + 1
	}
}

func intBuiltin(args []Value, line int) (Value, error) {
	if len(args) == 0 {
		return IntVal(0), nil
	}
	switch args[0].Kind {
	case KindInt:
		return args[0], nil
	case KindFloat:
		return IntVal(int64(args[0].F)), nil
	case KindBool:
		if args[0].B {
			return IntVal(1), nil
		}
		return IntVal(0), nil
	case KindStr:
		i, err := strconv.ParseInt(strings.TrimSpace(args[0].S), 10, 64)
		if err != nil {
			return Value{}, rerr(line, "ValueError", "invalid literal for int() with base 10: %s", Repr(args[0]))
		}
		return IntVal(i), nil
	default:
		return Value{}, rerr(line, "TypeError", "int() argument must be a string or number, not '%s'", args[0].Kind)
	}
}

func floatBuiltin(args []Value, line int) (Value, error) {
	if len(args) == 0 {
		return FloatVal(0), nil
	}
	switch args[0].Kind {
	case KindFloat:
		return args[0], nil
	case KindInt:
		return FloatVal(float64(args[0].I)), nil
	case KindStr:
		f, err := strconv.ParseFloat(strings.TrimSpace(args[0].S), 64)
		if err != nil {
			return Value{}, rerr(line, "ValueError", "could not convert string to float: %s", Repr(args[0]))
		}
		return FloatVal(f), nil
	default:
		return Value{}, rerr(line, "TypeError", "float() argument must be a string or number, not '%s'", args[0].Kind)
	}
}
