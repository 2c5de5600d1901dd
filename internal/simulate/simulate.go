// Package simulate performs a static walk over a mined hook body and records
// the observable effects it would have on the engine: actors created, scripts
// started, movies played, and method calls bucketed by the subsystem they
// mutate. Nothing is executed; the walk visits every reachable expression so
// calls inside conditionals and loops are counted regardless of whether the
// branch would run.
package simulate

import (
	"sort"
	"strings"

	"github.com/yuin/gopher-lua/ast"

	"github.com/roach88/exhume/internal/classify"
	"github.com/roach88/exhume/internal/script"
)

// FunctionSimulation is the static effect summary for one hook body.
type FunctionSimulation struct {
	CreatedActors      []string                                         `json:"created_actors"`
	MethodCalls        map[string]map[string]int                        `json:"method_calls"`
	StatefulCalls      map[classify.Subsystem]map[string]map[string]int `json:"stateful_calls"`
	StatefulCallEvents []StatefulCallEvent                              `json:"stateful_call_events"`
	StartedScripts     []string                                         `json:"started_scripts"`
	MovieCalls         []string                                         `json:"movie_calls"`
	GeometryCalls      []GeometryCallEvent                              `json:"geometry_calls,omitempty"`
	VisibilityCalls    []VisibilityCallEvent                            `json:"visibility_calls,omitempty"`
}

// StatefulCallEvent is one classified mutation in source order.
type StatefulCallEvent struct {
	Subsystem classify.Subsystem `json:"subsystem"`
	Target    string             `json:"target"`
	Method    string             `json:"method"`
	Arguments []string           `json:"arguments"`
}

// GeometryCallEvent records a walk-geometry call such as MakeSectorActive.
type GeometryCallEvent struct {
	Function  string   `json:"function"`
	Arguments []string `json:"arguments"`
}

// VisibilityCallEvent records a hotlist or head-control call.
type VisibilityCallEvent struct {
	Function  string   `json:"function"`
	Arguments []string `json:"arguments"`
}

// Simulator classifies method calls against a loaded subsystem table.
type Simulator struct {
	tables *classify.Table
}

func NewSimulator(tables *classify.Table) *Simulator {
	return &Simulator{tables: tables}
}

// SetFunction walks one hook body and returns its effect summary.
func (s *Simulator) SetFunction(fn *script.SetFunction) FunctionSimulation {
	b := newBuilder(s.tables)
	b.block(fn.Body)
	return b.finish()
}

// actorGlobals are engine entry points that mutate actor transforms when
// called as globals rather than methods.
var actorGlobals = map[string]struct{}{
	"setactorpos":               {},
	"set_actor_pos":             {},
	"setactorposition":          {},
	"set_actor_position":        {},
	"setactorrot":               {},
	"set_actor_rot":             {},
	"setactorrotation":          {},
	"set_actor_rotation":        {},
	"setactorscale":             {},
	"setscale":                  {},
	"scale":                     {},
	"set_actor_scale":           {},
	"setactorcollisionscale":    {},
	"setcollisionscale":         {},
	"collision_scale":           {},
	"set_actor_collision_scale": {},
}

var visibilityGlobals = map[string]struct{}{
	"build_hotlist":           {},
	"get_next_visible_object": {},
	"change_gaze":             {},
	"enable_head_control":     {},
	"head_control":            {},
}

type builder struct {
	tables             *classify.Table
	createdActors      map[string]struct{}
	methodCalls        map[string]map[string]int
	statefulCalls      map[classify.Subsystem]map[string]map[string]int
	statefulCallEvents []StatefulCallEvent
	geometryCalls      []GeometryCallEvent
	visibilityCalls    []VisibilityCallEvent
	startedScriptsSeen map[string]struct{}
	startedScripts     []string
	movieCallsSeen     map[string]struct{}
	movieCalls         []string
}

func newBuilder(tables *classify.Table) *builder {
	return &builder{
		tables:             tables,
		createdActors:      make(map[string]struct{}),
		methodCalls:        make(map[string]map[string]int),
		statefulCalls:      make(map[classify.Subsystem]map[string]map[string]int),
		startedScriptsSeen: make(map[string]struct{}),
		movieCallsSeen:     make(map[string]struct{}),
	}
}

func (b *builder) finish() FunctionSimulation {
	actors := make([]string, 0, len(b.createdActors))
	for name := range b.createdActors {
		actors = append(actors, name)
	}
	sort.Strings(actors)

	return FunctionSimulation{
		CreatedActors:      actors,
		MethodCalls:        b.methodCalls,
		StatefulCalls:      b.statefulCalls,
		StatefulCallEvents: b.statefulCallEvents,
		StartedScripts:     b.startedScripts,
		MovieCalls:         b.movieCalls,
		GeometryCalls:      b.geometryCalls,
		VisibilityCalls:    b.visibilityCalls,
	}
}

func (b *builder) recordCreatedActor(name string) {
	b.createdActors[name] = struct{}{}
}

func (b *builder) recordMethodCall(inv methodInvocation) {
	if b.tables.IgnoreMethodCall(inv.target, inv.method) {
		return
	}
	if subsystem, ok := b.tables.StatefulMethod(inv.target, inv.method); ok {
		b.recordStatefulCall(subsystem, inv.target, inv.method, inv.args)
		return
	}
	methods, ok := b.methodCalls[inv.target]
	if !ok {
		methods = make(map[string]int)
		b.methodCalls[inv.target] = methods
	}
	methods[inv.method]++
}

func (b *builder) recordStatefulCall(subsystem classify.Subsystem, target, method string, args []string) {
	targets, ok := b.statefulCalls[subsystem]
	if !ok {
		targets = make(map[string]map[string]int)
		b.statefulCalls[subsystem] = targets
	}
	methods, ok := targets[target]
	if !ok {
		methods = make(map[string]int)
		targets[target] = methods
	}
	methods[method]++

	b.statefulCallEvents = append(b.statefulCallEvents, StatefulCallEvent{
		Subsystem: subsystem,
		Target:    target,
		Method:    method,
		Arguments: args,
	})
}

func (b *builder) recordGeometryCall(function string, args []string) {
	b.geometryCalls = append(b.geometryCalls, GeometryCallEvent{Function: function, Arguments: args})
}

func (b *builder) recordVisibilityCall(function string, args []string) {
	b.visibilityCalls = append(b.visibilityCalls, VisibilityCallEvent{Function: function, Arguments: args})
}

func (b *builder) recordStartedScript(name string) {
	if _, seen := b.startedScriptsSeen[name]; seen {
		return
	}
	b.startedScriptsSeen[name] = struct{}{}
	b.startedScripts = append(b.startedScripts, name)
}

func (b *builder) recordMovieCall(movie string) {
	if _, seen := b.movieCallsSeen[movie]; seen {
		return
	}
	b.movieCallsSeen[movie] = struct{}{}
	b.movieCalls = append(b.movieCalls, movie)
}

func (b *builder) block(stmts []ast.Stmt) {
	for _, stmt := range stmts {
		b.stmt(stmt)
	}
}

func (b *builder) stmt(stmt ast.Stmt) {
	switch st := stmt.(type) {
	case *ast.AssignStmt:
		for i, lhs := range st.Lhs {
			ident, ok := lhs.(*ast.IdentExpr)
			if !ok || i >= len(st.Rhs) {
				continue
			}
			if isActorCreation(st.Rhs[i]) {
				b.recordCreatedActor(ident.Value)
			}
		}
		for _, expr := range st.Rhs {
			b.expr(expr)
		}
	case *ast.LocalAssignStmt:
		for i, name := range st.Names {
			if i < len(st.Exprs) && isActorCreation(st.Exprs[i]) {
				b.recordCreatedActor(name)
			}
		}
		for _, expr := range st.Exprs {
			b.expr(expr)
		}
	case *ast.FuncCallStmt:
		if call, ok := st.Expr.(*ast.FuncCallExpr); ok {
			b.call(call)
		}
	case *ast.DoBlockStmt:
		b.block(st.Stmts)
	case *ast.WhileStmt:
		b.expr(st.Condition)
		b.block(st.Stmts)
	case *ast.RepeatStmt:
		b.block(st.Stmts)
		b.expr(st.Condition)
	case *ast.NumberForStmt:
		b.expr(st.Init)
		b.expr(st.Limit)
		if st.Step != nil {
			b.expr(st.Step)
		}
		b.block(st.Stmts)
	case *ast.GenericForStmt:
		for _, expr := range st.Exprs {
			b.expr(expr)
		}
		b.block(st.Stmts)
	case *ast.IfStmt:
		b.expr(st.Condition)
		b.block(st.Then)
		b.block(st.Else)
	case *ast.FuncDefStmt:
		b.block(st.Func.Stmts)
	case *ast.ReturnStmt:
		for _, expr := range st.Exprs {
			b.expr(expr)
		}
	}
}

func (b *builder) expr(expr ast.Expr) {
	switch ex := expr.(type) {
	case *ast.FuncCallExpr:
		b.call(ex)
	case *ast.AttrGetExpr:
		b.expr(ex.Object)
		if _, dot := ex.Key.(*ast.StringExpr); !dot {
			b.expr(ex.Key)
		}
	case *ast.TableExpr:
		for _, field := range ex.Fields {
			if field.Key != nil {
				if _, named := field.Key.(*ast.StringExpr); !named {
					b.expr(field.Key)
				}
			}
			b.expr(field.Value)
		}
	case *ast.FunctionExpr:
		b.block(ex.Stmts)
	case *ast.ArithmeticOpExpr:
		b.expr(ex.Lhs)
		b.expr(ex.Rhs)
	case *ast.StringConcatOpExpr:
		b.expr(ex.Lhs)
		b.expr(ex.Rhs)
	case *ast.RelationalOpExpr:
		b.expr(ex.Lhs)
		b.expr(ex.Rhs)
	case *ast.LogicalOpExpr:
		b.expr(ex.Lhs)
		b.expr(ex.Rhs)
	case *ast.UnaryMinusOpExpr:
		b.expr(ex.Expr)
	case *ast.UnaryNotOpExpr:
		b.expr(ex.Expr)
	case *ast.UnaryLenOpExpr:
		b.expr(ex.Expr)
	}
}

func (b *builder) call(call *ast.FuncCallExpr) {
	if name, ok := globalName(call); ok {
		lower := strings.ToLower(name)
		switch lower {
		case "start_script", "single_start_script":
			if len(call.Args) > 0 {
				if identifier, ok := exprPath(call.Args[0]); ok {
					b.recordStartedScript(identifier)
				}
			}
		case "runfullscreenmovie", "startmovie":
			if len(call.Args) > 0 {
				if movie, ok := stringLiteral(call.Args[0]); ok {
					b.recordMovieCall(movie)
				}
			}
		case "makesectoractive":
			b.recordGeometryCall(name, argStrings(call.Args))
		default:
			if _, ok := visibilityGlobals[lower]; ok {
				b.recordVisibilityCall(name, argStrings(call.Args))
			}
		}

		if _, ok := actorGlobals[lower]; ok && len(call.Args) > 0 {
			args := argStrings(call.Args)
			if target, ok := normalizeActorTarget(args[0]); ok {
				b.recordStatefulCall(classify.SubsystemActors, target, name, args)
			}
		}
	}

	if call.Method != "" {
		if target, ok := exprPath(call.Receiver); ok {
			inv := methodInvocation{
				target: target,
				method: call.Method,
				args:   argStrings(call.Args),
			}
			if strings.EqualFold(call.Method, "head_look_at") {
				b.recordVisibilityCall(inv.target+":"+inv.method, inv.args)
			}
			b.recordMethodCall(inv)
		}
		b.expr(call.Receiver)
	} else if call.Func != nil {
		if _, plain := call.Func.(*ast.IdentExpr); !plain {
			b.expr(call.Func)
		}
	}

	for _, arg := range call.Args {
		b.expr(arg)
	}
}

type methodInvocation struct {
	target string
	method string
	args   []string
}

// globalName matches a bare `name(...)` call.
func globalName(call *ast.FuncCallExpr) (string, bool) {
	if call.Receiver != nil {
		return "", false
	}
	ident, ok := call.Func.(*ast.IdentExpr)
	if !ok {
		return "", false
	}
	return ident.Value, true
}

func isActorCreation(expr ast.Expr) bool {
	call, ok := expr.(*ast.FuncCallExpr)
	if !ok {
		return false
	}
	receiver, ok := call.Receiver.(*ast.IdentExpr)
	if !ok {
		return false
	}
	return receiver.Value == "Actor" && strings.EqualFold(call.Method, "create")
}

func argStrings(args []ast.Expr) []string {
	rendered := make([]string, 0, len(args))
	for _, arg := range args {
		rendered = append(rendered, argRepr(arg))
	}
	return rendered
}

// argRepr renders an argument for the event log. String literals come back
// unquoted; anything that cannot be shown as a stable path collapses to the
// <expr> placeholder, and table constructors to <table>.
func argRepr(expr ast.Expr) string {
	switch ex := expr.(type) {
	case *ast.StringExpr:
		return ex.Value
	case *ast.NumberExpr:
		return ex.Value
	case *ast.TableExpr:
		return "<table>"
	}
	if path, ok := exprPath(expr); ok {
		return path
	}
	return "<expr>"
}

// exprPath renders an expression as a dotted access path when possible.
func exprPath(expr ast.Expr) (string, bool) {
	switch ex := expr.(type) {
	case *ast.IdentExpr:
		return ex.Value, true
	case *ast.StringExpr:
		return `"` + ex.Value + `"`, true
	case *ast.NumberExpr:
		return ex.Value, true
	case *ast.TrueExpr:
		return "true", true
	case *ast.FalseExpr:
		return "false", true
	case *ast.NilExpr:
		return "nil", true
	case *ast.Comma3Expr:
		return "...", true
	case *ast.AttrGetExpr:
		object, ok := exprPath(ex.Object)
		if !ok {
			return "", false
		}
		if key, isDot := ex.Key.(*ast.StringExpr); isDot {
			return object + "." + key.Value, true
		}
		if inner, ok := exprPath(ex.Key); ok {
			return object + "[" + inner + "]", true
		}
		return object + "[?]", true
	case *ast.FuncCallExpr:
		if ex.Method != "" {
			receiver, ok := exprPath(ex.Receiver)
			if !ok {
				return "", false
			}
			return receiver + ":" + ex.Method + "(...)", true
		}
		fn, ok := exprPath(ex.Func)
		if !ok {
			return "", false
		}
		return fn + "()", true
	case *ast.UnaryMinusOpExpr:
		return exprPath(ex.Expr)
	case *ast.UnaryNotOpExpr:
		return exprPath(ex.Expr)
	}
	return "", false
}

func stringLiteral(expr ast.Expr) (string, bool) {
	str, ok := expr.(*ast.StringExpr)
	if !ok {
		return "", false
	}
	return str.Value, true
}

// normalizeActorTarget strips quoting and engine handle suffixes from the
// first argument of an actor transform global.
func normalizeActorTarget(label string) (string, bool) {
	value := strings.TrimSpace(label)
	value = strings.Trim(value, `"'`)
	value = strings.TrimSpace(value)
	if value == "" || value == "<expr>" {
		return "", false
	}
	if trimmed, ok := strings.CutSuffix(value, ".hActor"); ok {
		value = trimmed
	} else if trimmed, ok := strings.CutSuffix(value, ".hactor"); ok {
		value = trimmed
	}
	if value == "" {
		return "", false
	}
	return value, true
}
