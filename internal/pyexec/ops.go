package pyexec

import (
	"fmt"
	"strings"
)

func unOp(op TokenType, x Value, line int) (Value, error) {
	switch op {
	case MINUS:
		switch x.Kind {
		case KindInt:
			return IntVal(-x.I), nil
		case KindFloat:
			return FloatVal(-x.F), nil
		}
		return Value{}, rerr(line, "TypeError", "bad operand type for unary -: '%s'", x.Kind)
	case PLUS:
		if x.Kind == KindInt || x.Kind == KindFloat {
			return x, nil
		}
		return Value{}, rerr(line, "TypeError", "bad operand type for unary +: '%s'", x.Kind)
	case NOT:
		return BoolVal(!x.Truthy()), nil
	default:
		return Value{}, rerr(line, "SyntaxError", "unsupported unary operator")
	}
}

func isNumeric(v Value) bool { return v.Kind == KindInt || v.Kind == KindFloat }

func asFloat(v Value) float64 {
	if v.Kind == KindInt {
		return float64(v.I)
	}
	return v.F
}

func binOp(op TokenType, l, r Value, line int) (Value, error) {
	switch op {
	case PLUS:
		return addOp(l, r, line)
	case MINUS:
		if isNumeric(l) && isNumeric(r) {
			return arith(l, r, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b }), nil
		}
		return Value{}, rerr(line, "TypeError", "unsupported operand type(s) for -: '%s' and '%s'", l.Kind, r.Kind)
	case STAR:
		return mulOp(l, r, line)
	case SLASH:
		if isNumeric(l) && isNumeric(r) {
			if asFloat(r) == 0 {
				return Value{}, rerr(line, "ZeroDivisionError", "division by zero")
			}
			return FloatVal(asFloat(l) / asFloat(r)), nil
		}
		return Value{}, rerr(line, "TypeError", "unsupported operand type(s) for /: '%s' and '%s'", l.Kind, r.Kind)
	case DSLASH:
		if isNumeric(l) && isNumeric(r) {
			if asFloat(r) == 0 {
				return Value{}, rerr(line, "ZeroDivisionError", "integer division or modulo by zero")
			}
			if l.Kind == KindInt && r.Kind == KindInt {
				q := l.I / r.I
				if (l.I%r.I != 0) && ((l.I < 0) != (r.I < 0)) {
					q--
				}
				return IntVal(q), nil
			}
			return FloatVal(floorDiv(asFloat(l), asFloat(r))), nil
		}
		return Value{}, rerr(line, "TypeError", "unsupported operand type(s) for //: '%s' and '%s'", l.Kind, r.Kind)
	case PERCENT:
		if isNumeric(l) && isNumeric(r) {
			if asFloat(r) == 0 {
				return Value{}, rerr(line, "ZeroDivisionError", "modulo by zero")
			}
			if l.Kind == KindInt && r.Kind == KindInt {
				m := l.I % r.I
				if m != 0 && ((m < 0) != (r.I < 0)) {
					m += r.I
				}
				return IntVal(m), nil
			}
			fm := pyFmod(asFloat(l), asFloat(r))
			return FloatVal(fm), nil
		}
		if l.Kind == KindStr {
			return StrVal(fmt.Sprintf(l.S, percentArgs(r)...)), nil
		}
		return Value{}, rerr(line, "TypeError", "unsupported operand type(s) for %%: '%s' and '%s'", l.Kind, r.Kind)
	case DOUBLESTAR:
		if isNumeric(l) && isNumeric(r) {
			return powVal(l, r), nil
		}
		return Value{}, rerr(line, "TypeError", "unsupported operand type(s) for **: '%s' and '%s'", l.Kind, r.Kind)
	case EQ:
		return BoolVal(valuesEqual(l, r)), nil
	case NEQ:
		return BoolVal(!valuesEqual(l, r)), nil
	case LT, GT, LE, GE:
		return compareOp(op, l, r, line)
	case IN:
		return containsOp(l, r, line)
	default:
		return Value{}, rerr(line, "SyntaxError", "unsupported binary operator")
	}
}

func percentArgs(r Value) []interface{} {
	if r.Kind == KindTuple {
		out := make([]interface{}, len(r.Tup))
		for i, v := range r.Tup {
			out[i] = goValue(v)
		}
		return out
	}
	return []interface{}{goValue(r)}
}

func goValue(v Value) interface{} {
	switch v.Kind {
	case KindInt:
		return v.I
	case KindFloat:
		return v.F
	case KindStr:
		return v.S
	case KindBool:
		return v.B
	default:
		return Repr(v)
	}
}

func floorDiv(a, b float64) float64 {
	q := a / b
	fq := float64(int64(q))
	if fq > q {
		fq--
	}
	return fq
}

func pyFmod(a, b float64) float64 {
	m := a - b*floorDiv(a, b)
	return m
}

func arith(l, r Value, fi func(a, b int64) int64, ff func(a, b float64) float64) Value {
	if l.Kind == KindInt && r.Kind == KindInt {
		return IntVal(fi(l.I, r.I))
	}
	return FloatVal(ff(asFloat(l), asFloat(r)))
}

func powVal(l, r Value) Value {
	if l.Kind == KindInt && r.Kind == KindInt && r.I >= 0 {
		var res int64 = 1
		for i := int64(0); i < r.I; i++ {
			res *= l.I
		}
		return IntVal(res)
	}
	return FloatVal(pow(asFloat(l), asFloat(r)))
}

func pow(base, exp float64) float64 {
	if exp == 0 {
		return 1
	}
	result := 1.0
	neg := exp < 0
	if neg {
		exp = -exp
	}
	n := int(exp)
	for i := 0; i < n; i++ {
		result *= base
	}
	if neg {
		return 1 / result
	}
	return result
}

func addOp(l, r Value, line int) (Value, error) {
	if isNumeric(l) && isNumeric(r) {
		return arith(l, r, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b }), nil
	}
	if l.Kind == KindStr && r.Kind == KindStr {
		return StrVal(l.S + r.S), nil
	}
	if l.Kind == KindList && r.Kind == KindList {
		combined := append(append([]Value(nil), *l.List...), *r.List...)
		return ListVal(combined), nil
	}
	if l.Kind == KindTuple && r.Kind == KindTuple {
		return TupleVal(append(append([]Value(nil), l.Tup...), r.Tup...)), nil
	}
	return Value{}, rerr(line, "TypeError", "unsupported operand type(s) for +: '%s' and '%s'", l.Kind, r.Kind)
}

func mulOp(l, r Value, line int) (Value, error) {
	if isNumeric(l) && isNumeric(r) {
		return arith(l, r, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b }), nil
	}
	if l.Kind == KindStr && r.Kind == KindInt {
		return StrVal(strings.Repeat(l.S, int(r.I))), nil
	}
	if l.Kind == KindList && r.Kind == KindInt {
		out := make([]Value, 0, len(*l.List)*int(r.I))
		for i := int64(0); i < r.I; i++ {
			out = append(out, *l.List...)
		}
		return ListVal(out), nil
	}
	return Value{}, rerr(line, "TypeError", "unsupported operand type(s) for *: '%s' and '%s'", l.Kind, r.Kind)
}

func valuesEqual(l, r Value) bool {
	if isNumeric(l) && isNumeric(r) {
		return asFloat(l) == asFloat(r)
	}
	if l.Kind != r.Kind {
		return false
	}
	switch l.Kind {
	case KindNone:
		return true
	case KindBool:
		return l.B == r.B
	case KindStr:
		return l.S == r.S
	case KindList:
		if len(*l.List) != len(*r.List) {
			return false
		}
		for i := range *l.List {
			if !valuesEqual((*l.List)[i], (*r.List)[i]) {
				return false
			}
		}
		return true
	case KindTuple:
		if len(l.Tup) != len(r.Tup) {
			return false
		}
		for i := range l.Tup {
			if !valuesEqual(l.Tup[i], r.Tup[i]) {
				return false
			}
		}
		return true
	case KindDict:
		return dictKey(l) == dictKey(r) // not structurally complete; dicts aren't used as dict/set keys here
	default:
		return dictKey(l) == dictKey(r)
	}
}

func compareOp(op TokenType, l, r Value, line int) (Value, error) {
	var cmp int
	switch {
	case isNumeric(l) && isNumeric(r):
		lf, rf := asFloat(l), asFloat(r)
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		default:
			cmp = 0
		}
	case l.Kind == KindStr && r.Kind == KindStr:
		cmp = strings.Compare(l.S, r.S)
	default:
		return Value{}, rerr(line, "TypeError", "'%s' not supported between instances of '%s' and '%s'", tokenSymbol(op), l.Kind, r.Kind)
	}
	switch op {
	case LT:
		return BoolVal(cmp < 0), nil
	case GT:
		return BoolVal(cmp > 0), nil
	case LE:
		return BoolVal(cmp <= 0), nil
	case GE:
		return BoolVal(cmp >= 0), nil
	}
	return Value{}, rerr(line, "SyntaxError", "unsupported comparison")
}

func tokenSymbol(op TokenType) string {
	switch op {
	case LT:
		return "<"
	case GT:
		return ">"
	case LE:
		return "<="
	case GE:
		return ">="
	default:
		return "?"
	}
}

func containsOp(l, r Value, line int) (Value, error) {
	switch r.Kind {
	case KindList:
		for _, v := range *r.List {
			if valuesEqual(v, l) {
				return BoolVal(true), nil
			}
		}
		return BoolVal(false), nil
	case KindTuple:
		for _, v := range r.Tup {
			if valuesEqual(v, l) {
				return BoolVal(true), nil
			}
		}
		return BoolVal(false), nil
	case KindSet:
		return BoolVal(r.Set.Contains(l)), nil
	case KindDict:
		_, ok := r.Dict.Get(l)
		return BoolVal(ok), nil
	case KindStr:
		if l.Kind != KindStr {
			return Value{}, rerr(line, "TypeError", "'in <string>' requires string as left operand, not %s", l.Kind)
		}
		return BoolVal(strings.Contains(r.S, l.S)), nil
	default:
		return Value{}, rerr(line, "TypeError", "argument of type '%s' is not iterable", r.Kind)
	}
}

func indexGet(x, idx Value, line int) (Value, error) {
	switch x.Kind {
	case KindList:
		i, err := normIndex(idx, len(*x.List), line)
		if err != nil {
			return Value{}, err
		}
		return (*x.List)[i], nil
	case KindTuple:
		i, err := normIndex(idx, len(x.Tup), line)
		if err != nil {
			return Value{}, err
		}
		return x.Tup[i], nil
	case KindStr:
		runes := []rune(x.S)
		i, err := normIndex(idx, len(runes), line)
		if err != nil {
			return Value{}, err
		}
		return StrVal(string(runes[i])), nil
	case KindDict:
		v, ok := x.Dict.Get(idx)
		if !ok {
			return Value{}, rerr(line, "KeyError", "%s", Repr(idx))
		}
		return v, nil
	default:
		return Value{}, rerr(line, "TypeError", "'%s' object is not subscriptable", x.Kind)
	}
}

func normIndex(idx Value, n int, line int) (int, error) {
	if idx.Kind != KindInt {
		return 0, rerr(line, "TypeError", "indices must be integers")
	}
	i := int(idx.I)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, rerr(line, "IndexError", "index out of range")
	}
	return i, nil
}

func indexSet(container, idx, val Value, line int) error {
	switch container.Kind {
	case KindList:
		i, err := normIndex(idx, len(*container.List), line)
		if err != nil {
			return err
		}
		(*container.List)[i] = val
		return nil
	case KindDict:
		container.Dict.Set(idx, val)
		return nil
	default:
		return rerr(line, "TypeError", "'%s' object does not support item assignment", container.Kind)
	}
}

func sliceGet(x Value, low, high *int64, line int) (Value, error) {
	var elems []Value
	var isStr bool
	var runes []rune
	switch x.Kind {
	case KindList:
		elems = *x.List
	case KindTuple:
		elems = x.Tup
	case KindStr:
		runes = []rune(x.S)
		isStr = true
	default:
		return Value{}, rerr(line, "TypeError", "'%s' object is not subscriptable", x.Kind)
	}
	n := len(elems)
	if isStr {
		n = len(runes)
	}
	lo, hi := 0, n
	if low != nil {
		lo = clampSlice(int(*low), n)
	}
	if high != nil {
		hi = clampSlice(int(*high), n)
	}
	if hi < lo {
		hi = lo
	}
	if isStr {
		return StrVal(string(runes[lo:hi])), nil
	}
	out := append([]Value(nil), elems[lo:hi]...)
	if x.Kind == KindTuple {
		return TupleVal(out), nil
	}
	return ListVal(out), nil
}

func clampSlice(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		i = 0
	}
	if i > n {
		i = n
	}
	return i
}
