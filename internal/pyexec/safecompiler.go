package pyexec

import "fmt"

// CompilationErrorKind classifies why SafeCompiler rejected a program.
type CompilationErrorKind string

const (
	KindSyntax    CompilationErrorKind = "syntax"
	KindForbidden CompilationErrorKind = "forbidden_construct"
)

// CompilationError is returned by Compile when source is rejected, either
// for being unparsable or for violating the restricted-subset policy.
type CompilationError struct {
	Kind   CompilationErrorKind
	Line   int
	Reason string
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("%s at line %d: %s", e.Kind, e.Line, e.Reason)
}

// forbiddenAttrs blocks the well-known CPython sandbox-escape surface, kept
// as a defense in depth even though AttrExpr never resolves through general
// attribute lookup in this interpreter's evaluator.
var forbiddenAttrs = map[string]bool{
	"__class__": true, "__bases__": true, "__subclasses__": true,
	"__globals__": true, "__builtins__": true, "__import__": true,
	"__dict__": true, "__mro__": true, "__code__": true, "__closure__": true,
}

// deniedNames is the static deny-list: filesystem, subprocess, network and
// dunder-introspection surfaces spec.md §4.1 names as statically rejected,
// regardless of whether the name is ever bound. Every other name is left to
// resolve at execution time, so an ordinary undefined-variable typo raises
// a runtime NameError instead of a compile-time rejection.
var deniedNames = map[string]string{
	"open":       "filesystem access is not permitted in the restricted execution environment",
	"os":         "the os module is not permitted in the restricted execution environment",
	"subprocess": "subprocess execution is not permitted in the restricted execution environment",
	"socket":     "network access is not permitted in the restricted execution environment",
	"sys":        "the sys module is not permitted in the restricted execution environment",
	"eval":       "eval is not permitted in the restricted execution environment",
	"exec":       "exec is not permitted in the restricted execution environment",
	"compile":    "compile is not permitted in the restricted execution environment",
	"__import__": "__import__ is not permitted in the restricted execution environment",
	"globals":    "globals introspection is not permitted in the restricted execution environment",
	"locals":     "locals introspection is not permitted in the restricted execution environment",
	"vars":       "vars introspection is not permitted in the restricted execution environment",
	"getattr":    "dynamic attribute access is not permitted in the restricted execution environment",
	"setattr":    "dynamic attribute access is not permitted in the restricted execution environment",
	"delattr":    "dynamic attribute access is not permitted in the restricted execution environment",
}

// Compile parses source and statically validates it against the restricted
// subset: the deny-list above is rejected wherever referenced, and no dunder
// attribute may be referenced at all. Names outside the deny-list are left
// unchecked here; an undefined one simply raises a runtime NameError when
// the interpreter reaches it.
func Compile(source string) (*Program, *CompilationError) {
	prog, err := Parse(source)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			return nil, &CompilationError{Kind: KindSyntax, Line: pe.Line, Reason: pe.Msg}
		}
		return nil, &CompilationError{Kind: KindSyntax, Line: 0, Reason: err.Error()}
	}
	v := &restrictionChecker{}
	if cerr := v.checkBlock(prog.Body); cerr != nil {
		return nil, cerr
	}
	return prog, nil
}

// restrictionChecker walks the AST looking only for denied names and
// forbidden dunder attribute access; it carries no binding/scope state.
type restrictionChecker struct{}

func (v *restrictionChecker) checkBlock(body []Stmt) *CompilationError {
	for _, s := range body {
		if err := v.checkStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (v *restrictionChecker) checkStmt(s Stmt) *CompilationError {
	switch st := s.(type) {
	case ExprStmt:
		return v.checkExpr(st.X)
	case AssignStmt:
		if err := v.checkExpr(st.Value); err != nil {
			return err
		}
		if _, ok := st.Target.(NameExpr); ok {
			return nil
		}
		return v.checkExpr(st.Target)
	case IfStmt:
		if err := v.checkExpr(st.Cond); err != nil {
			return err
		}
		if err := v.checkBlock(st.Body); err != nil {
			return err
		}
		return v.checkBlock(st.Else)
	case WhileStmt:
		if err := v.checkExpr(st.Cond); err != nil {
			return err
		}
		return v.checkBlock(st.Body)
	case ForStmt:
		if err := v.checkExpr(st.Iter); err != nil {
			return err
		}
		return v.checkBlock(st.Body)
	case FuncDef:
		return v.checkBlock(st.Body)
	case ReturnStmt:
		if st.Value != nil {
			return v.checkExpr(st.Value)
		}
		return nil
	case PassStmt, BreakStmt, ContinueStmt:
		return nil
	default:
		return &CompilationError{Kind: KindForbidden, Line: s.NodeLine(), Reason: "unsupported statement"}
	}
}

func (v *restrictionChecker) checkExpr(e Expr) *CompilationError {
	switch ex := e.(type) {
	case NumberLit, StringLit, BoolLit, NoneLit:
		return nil
	case NameExpr:
		if reason, denied := deniedNames[ex.Name]; denied {
			return &CompilationError{Kind: KindForbidden, Line: ex.Line, Reason: reason}
		}
		return nil
	case ListLit:
		return v.checkExprs(ex.Elems)
	case TupleLit:
		return v.checkExprs(ex.Elems)
	case SetLit:
		return v.checkExprs(ex.Elems)
	case DictLit:
		for _, ent := range ex.Entries {
			if err := v.checkExpr(ent.Key); err != nil {
				return err
			}
			if err := v.checkExpr(ent.Value); err != nil {
				return err
			}
		}
		return nil
	case UnaryExpr:
		return v.checkExpr(ex.X)
	case BinaryExpr:
		if err := v.checkExpr(ex.Left); err != nil {
			return err
		}
		return v.checkExpr(ex.Right)
	case IndexExpr:
		if err := v.checkExpr(ex.X); err != nil {
			return err
		}
		return v.checkExpr(ex.Index)
	case SliceExpr:
		if err := v.checkExpr(ex.X); err != nil {
			return err
		}
		if ex.Low != nil {
			if err := v.checkExpr(ex.Low); err != nil {
				return err
			}
		}
		if ex.High != nil {
			return v.checkExpr(ex.High)
		}
		return nil
	case AttrExpr:
		if forbiddenAttrs[ex.Name] || (len(ex.Name) > 4 && ex.Name[:2] == "__" && ex.Name[len(ex.Name)-2:] == "__") {
			return &CompilationError{Kind: KindForbidden, Line: ex.Line, Reason: fmt.Sprintf("attribute '%s' is not permitted", ex.Name)}
		}
		return v.checkExpr(ex.X)
	case CallExpr:
		if name, ok := ex.Fn.(NameExpr); ok {
			if reason, denied := deniedNames[name.Name]; denied {
				return &CompilationError{Kind: KindForbidden, Line: ex.Line, Reason: reason}
			}
		} else if err := v.checkExpr(ex.Fn); err != nil {
			return err
		}
		return v.checkExprs(ex.Args)
	default:
		return &CompilationError{Kind: KindForbidden, Line: e.NodeLine(), Reason: "unsupported expression"}
	}
}

func (v *restrictionChecker) checkExprs(es []Expr) *CompilationError {
	for _, e := range es {
		if err := v.checkExpr(e); err != nil {
			return err
		}
	}
	return nil
}
