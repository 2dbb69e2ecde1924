package pyexec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Str renders a value the way Python's str() would.
func Str(v Value) string {
	switch v.Kind {
	case KindNone:
		return "None"
	case KindBool:
		if v.B {
			return "True"
		}
		return "False"
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindFloat:
		return formatFloat(v.F)
	case KindStr:
		return v.S
	default:
		return Repr(v)
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Repr renders a value the way Python's repr() would.
func Repr(v Value) string {
	switch v.Kind {
	case KindStr:
		return "'" + strings.ReplaceAll(v.S, "'", "\\'") + "'"
	case KindList:
		parts := make([]string, len(*v.List))
		for i, e := range *v.List {
			parts[i] = Repr(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindTuple:
		parts := make([]string, len(v.Tup))
		for i, e := range v.Tup {
			parts[i] = Repr(e)
		}
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindSet:
		items := v.Set.Items()
		if len(items) == 0 {
			return "set()"
		}
		parts := make([]string, len(items))
		for i, e := range items {
			parts[i] = Repr(e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindDict:
		items := v.Dict.Items()
		parts := make([]string, len(items))
		for i, e := range items {
			parts[i] = Repr(e.Key) + ": " + Repr(e.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindFunc:
		return fmt.Sprintf("<function %s>", v.Fn.Def.Name)
	default:
		return Str(v)
	}
}

// callMethod dispatches a whitelisted method call on a builtin-type
// receiver. There is no generic attribute lookup anywhere in this
// interpreter: a method not named here is simply unreachable, the same
// way an escape via __class__/__subclasses__ is unreachable.
func callMethod(recv Value, name string, args []Value, line int) (Value, error) {
	switch recv.Kind {
	case KindStr:
		return strMethod(recv, name, args, line)
	case KindList:
		return listMethod(recv, name, args, line)
	case KindDict:
		return dictMethod(recv, name, args, line)
	case KindSet:
		return setMethod(recv, name, args, line)
	default:
		return Value{}, rerr(line, "AttributeError", "'%s' object has no attribute '%s'", recv.Kind, name)
	}
}

func strMethod(recv Value, name string, args []Value, line int) (Value, error) {
	s := recv.S
	switch name {
	case "upper":
		return StrVal(strings.ToUpper(s)), nil
	case "lower":
		return StrVal(strings.ToLower(s)), nil
	case "strip":
		return StrVal(strings.TrimSpace(s)), nil
	case "lstrip":
		return StrVal(strings.TrimLeft(s, " \t\n\r")), nil
	case "rstrip":
		return StrVal(strings.TrimRight(s, " \t\n\r")), nil
	case "split":
		sep := " "
		if len(args) >= 1 {
			sep = args[0].S
		}
		var parts []string
		if len(args) == 0 {
			parts = strings.Fields(s)
		} else {
			parts = strings.Split(s, sep)
		}
		out := make([]Value, len(parts))
		for i, p := range parts {
			out[i] = StrVal(p)
		}
		return ListVal(out), nil
	case "join":
		if len(args) != 1 {
			return Value{}, rerr(line, "TypeError", "join() takes exactly one argument")
		}
		vals, err := iterate(args[0], line)
		if err != nil {
			return Value{}, err
		}
		parts := make([]string, len(vals))
		for i, v := range vals {
			if v.Kind != KindStr {
				return Value{}, rerr(line, "TypeError", "sequence item %d: expected str instance, %s found", i, v.Kind)
			}
			parts[i] = v.S
		}
		return StrVal(strings.Join(parts, s)), nil
	case "replace":
		if len(args) != 2 {
			return Value{}, rerr(line, "TypeError", "replace() takes exactly two arguments")
		}
		return StrVal(strings.ReplaceAll(s, args[0].S, args[1].S)), nil
	case "startswith":
		return BoolVal(strings.HasPrefix(s, argStr(args, 0))), nil
	case "endswith":
		return BoolVal(strings.HasSuffix(s, argStr(args, 0))), nil
	case "find":
		return IntVal(int64(strings.Index(s, argStr(args, 0)))), nil
	case "count":
		return IntVal(int64(strings.Count(s, argStr(args, 0)))), nil
	case "format":
		return StrVal(formatStr(s, args)), nil
	case "title":
		return StrVal(strings.Title(strings.ToLower(s))), nil
	case "isdigit":
		if s == "" {
			return BoolVal(false), nil
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return BoolVal(false), nil
			}
		}
		return BoolVal(true), nil
	default:
		return Value{}, rerr(line, "AttributeError", "'str' object has no attribute '%s'", name)
	}
}

func argStr(args []Value, i int) string {
	if i >= len(args) {
		return ""
	}
	return args[i].S
}

func formatStr(s string, args []Value) string {
	var b strings.Builder
	argIdx := 0
	i := 0
	for i < len(s) {
		if s[i] == '{' && i+1 < len(s) && s[i+1] == '}' {
			if argIdx < len(args) {
				b.WriteString(Str(args[argIdx]))
				argIdx++
			}
			i += 2
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func listMethod(recv Value, name string, args []Value, line int) (Value, error) {
	switch name {
	case "append":
		if len(args) != 1 {
			return Value{}, rerr(line, "TypeError", "append() takes exactly one argument")
		}
		*recv.List = append(*recv.List, args[0])
		return NoneVal(), nil
	case "pop":
		n := len(*recv.List)
		if n == 0 {
			return Value{}, rerr(line, "IndexError", "pop from empty list")
		}
		idx := n - 1
		if len(args) == 1 {
			i, err := normIndex(args[0], n, line)
			if err != nil {
				return Value{}, err
			}
			idx = i
		}
		v := (*recv.List)[idx]
		*recv.List = append((*recv.List)[:idx], (*recv.List)[idx+1:]...)
		return v, nil
	case "insert":
		if len(args) != 2 {
			return Value{}, rerr(line, "TypeError", "insert() takes exactly two arguments")
		}
		idx := int(args[0].I)
		n := len(*recv.List)
		if idx < 0 {
			idx += n
		}
		if idx < 0 {
			idx = 0
		}
		if idx > n {
			idx = n
		}
		l := append((*recv.List)[:idx:idx], append([]Value{args[1]}, (*recv.List)[idx:]...)...)
		*recv.List = l
		return NoneVal(), nil
	case "remove":
		if len(args) != 1 {
			return Value{}, rerr(line, "TypeError", "remove() takes exactly one argument")
		}
		for i, v := range *recv.List {
			if valuesEqual(v, args[0]) {
				*recv.List = append((*recv.List)[:i], (*recv.List)[i+1:]...)
				return NoneVal(), nil
			}
		}
		return Value{}, rerr(line, "ValueError", "list.remove(x): x not in list")
	case "sort":
		sort.SliceStable(*recv.List, func(i, j int) bool {
			r, _ := compareOp(LT, (*recv.List)[i], (*recv.List)[j], line)
			return r.B
		})
		return NoneVal(), nil
	case "reverse":
		l := *recv.List
		for i, j := 0, len(l)-1; i < j; i, j = i+1, j-1 {
			l[i], l[j] = l[j], l[i]
		}
		return NoneVal(), nil
	case "index":
		if len(args) != 1 {
			return Value{}, rerr(line, "TypeError", "index() takes exactly one argument")
		}
		for i, v := range *recv.List {
			if valuesEqual(v, args[0]) {
				return IntVal(int64(i)), nil
			}
		}
		return Value{}, rerr(line, "ValueError", "%s is not in list", Repr(args[0]))
	case "count":
		if len(args) != 1 {
			return Value{}, rerr(line, "TypeError", "count() takes exactly one argument")
		}
		c := int64(0)
		for _, v := range *recv.List {
			if valuesEqual(v, args[0]) {
				c++
			}
		}
		return IntVal(c), nil
	case "clear":
		*recv.List = nil
		return NoneVal(), nil
	case "copy":
		return ListVal(append([]Value(nil), *recv.List...)), nil
	default:
		return Value{}, rerr(line, "AttributeError", "'list' object has no attribute '%s'", name)
	}
}

func dictMethod(recv Value, name string, args []Value, line int) (Value, error) {
	switch name {
	case "get":
		if len(args) == 0 {
			return Value{}, rerr(line, "TypeError", "get() takes at least one argument")
		}
		if v, ok := recv.Dict.Get(args[0]); ok {
			return v, nil
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return NoneVal(), nil
	case "keys":
		items := recv.Dict.Items()
		out := make([]Value, len(items))
		for i, it := range items {
			out[i] = it.Key
		}
		return ListVal(out), nil
	case "values":
		items := recv.Dict.Items()
		out := make([]Value, len(items))
		for i, it := range items {
			out[i] = it.Value
		}
		return ListVal(out), nil
	case "items":
		items := recv.Dict.Items()
		out := make([]Value, len(items))
		for i, it := range items {
			out[i] = TupleVal([]Value{it.Key, it.Value})
		}
		return ListVal(out), nil
	case "pop":
		if len(args) == 0 {
			return Value{}, rerr(line, "TypeError", "pop() takes at least one argument")
		}
		if v, ok := recv.Dict.Get(args[0]); ok {
			recv.Dict.Delete(args[0])
			return v, nil
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return Value{}, rerr(line, "KeyError", "%s", Repr(args[0]))
	case "update":
		if len(args) != 1 || args[0].Kind != KindDict {
			return Value{}, rerr(line, "TypeError", "update() requires a dict argument")
		}
		for _, it := range args[0].Dict.Items() {
			recv.Dict.Set(it.Key, it.Value)
		}
		return NoneVal(), nil
	case "clear":
		*recv.Dict = *NewOrderedDict()
		return NoneVal(), nil
	case "copy":
		return DictVal(recv.Dict.Clone()), nil
	default:
		return Value{}, rerr(line, "AttributeError", "'dict' object has no attribute '%s'", name)
	}
}

func setMethod(recv Value, name string, args []Value, line int) (Value, error) {
	switch name {
	case "add":
		if len(args) != 1 {
			return Value{}, rerr(line, "TypeError", "add() takes exactly one argument")
		}
		recv.Set.Add(args[0])
		return NoneVal(), nil
	case "remove", "discard":
		if len(args) != 1 {
			return Value{}, rerr(line, "TypeError", "%s() takes exactly one argument", name)
		}
		if !recv.Set.Contains(args[0]) && name == "remove" {
			return Value{}, rerr(line, "KeyError", "%s", Repr(args[0]))
		}
		items := recv.Set.Items()
		ns := NewOrderedSet()
		for _, v := range items {
			if !valuesEqual(v, args[0]) {
				ns.Add(v)
			}
		}
		*recv.Set = *ns
		return NoneVal(), nil
	case "union":
		ns := recv.Set.Clone()
		for _, a := range args {
			vals, err := iterate(a, line)
			if err != nil {
				return Value{}, err
			}
			for _, v := range vals {
				ns.Add(v)
			}
		}
		return SetValOf(ns), nil
	case "copy":
		return SetValOf(recv.Set.Clone()), nil
	default:
		return Value{}, rerr(line, "AttributeError", "'set' object has no attribute '%s'", name)
	}
}
