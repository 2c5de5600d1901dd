package script

import (
	"strconv"
	"strings"

	"github.com/yuin/gopher-lua/ast"
)

type setCreation struct {
	variableName string
	setFile      string
	displayName  string
	setupSlots   []SetupSlot
}

// collectBootLists walks the whole boot chunk, including nested blocks, and
// records dofile("year_*"/"menu_*") and load_room_code(...) targets in call
// order.
func collectBootLists(chunk []ast.Stmt, builder *graphBuilder) {
	walkCalls(chunk, func(call *ast.FuncCallExpr) {
		name, ok := globalCallName(call)
		if !ok {
			return
		}
		switch name {
		case "dofile":
			script, ok := firstStringArg(call)
			if !ok {
				return
			}
			if strings.HasPrefix(script, "year_") {
				builder.yearScripts = pushUnique(builder.yearScripts, script)
			} else if strings.HasPrefix(script, "menu_") {
				builder.menuScripts = pushUnique(builder.menuScripts, script)
			}
		case "load_room_code":
			script, ok := firstStringArg(call)
			if !ok {
				return
			}
			builder.roomScripts = pushUnique(builder.roomScripts, script)
		}
	})
}

// mineFile records Set:create, Actor:create, and hook-method assignments
// from a single script. Only top-level assignments are considered, matching
// how the decompiled sources lay out their declarations.
func mineFile(chunk []ast.Stmt, relative string, builder *graphBuilder) {
	for _, stmt := range chunk {
		assign, ok := stmt.(*ast.AssignStmt)
		if !ok {
			continue
		}
		if creation, ok := extractSetCreation(assign); ok {
			builder.recordSetCreation(relative, creation)
		}
		if setVariable, fn, ok := extractSetMethod(assign, relative); ok {
			builder.recordSetMethod(setVariable, fn)
		}
		if actor, ok := extractActorMetadata(assign, relative); ok {
			builder.recordActor(actor)
		}
	}
}

// extractSetCreation matches `Var = Set:create(file, displayName, setupTable)`.
func extractSetCreation(assign *ast.AssignStmt) (setCreation, bool) {
	varName, ok := singleAssignmentName(assign)
	if !ok {
		return setCreation{}, false
	}
	call, ok := exprAsFunctionCall(firstExpr(assign.Rhs))
	if !ok {
		return setCreation{}, false
	}
	args, ok := methodCallArgs(call, "Set", "create")
	if !ok || len(args) < 3 {
		return setCreation{}, false
	}

	setFile, ok := stringLiteral(args[0])
	if !ok {
		return setCreation{}, false
	}
	displayName, _ := stringLiteral(args[1])
	slots := parseSetupSlots(args[2])

	return setCreation{
		variableName: varName,
		setFile:      setFile,
		displayName:  displayName,
		setupSlots:   slots,
	}, true
}

// extractActorMetadata matches `Var = Actor:create(a, b, c, label)`.
func extractActorMetadata(assign *ast.AssignStmt, relative string) (ActorMetadata, bool) {
	varName, ok := singleAssignmentName(assign)
	if !ok {
		return ActorMetadata{}, false
	}
	call, ok := exprAsFunctionCall(firstExpr(assign.Rhs))
	if !ok {
		return ActorMetadata{}, false
	}
	args, ok := methodCallArgs(call, "Actor", "create")
	if !ok || len(args) < 4 {
		return ActorMetadata{}, false
	}
	label, ok := stringLiteral(args[3])
	if !ok {
		return ActorMetadata{}, false
	}
	return ActorMetadata{
		LuaFile:      relative,
		VariableName: varName,
		Label:        label,
	}, true
}

// extractSetMethod matches `Var.method = function(params) ... end`.
func extractSetMethod(assign *ast.AssignStmt, relative string) (string, SetFunction, bool) {
	if len(assign.Lhs) != 1 {
		return "", SetFunction{}, false
	}
	attr, ok := assign.Lhs[0].(*ast.AttrGetExpr)
	if !ok {
		return "", SetFunction{}, false
	}
	owner, ok := attr.Object.(*ast.IdentExpr)
	if !ok {
		return "", SetFunction{}, false
	}
	key, ok := attr.Key.(*ast.StringExpr)
	if !ok {
		return "", SetFunction{}, false
	}
	fnExpr, ok := exprAsFunction(firstExpr(assign.Rhs))
	if !ok {
		return "", SetFunction{}, false
	}

	parameters := append([]string(nil), fnExpr.ParList.Names...)
	if fnExpr.ParList.HasVargs {
		parameters = append(parameters, "...")
	}

	return owner.Value, SetFunction{
		Name:          key.Value,
		Parameters:    parameters,
		DefinedAtLine: fnExpr.Line(),
		DefinedIn:     relative,
		Body:          fnExpr.Stmts,
	}, true
}

// parseSetupSlots keeps only integer-valued named table fields.
func parseSetupSlots(expr ast.Expr) []SetupSlot {
	table, ok := unwrap(expr).(*ast.TableExpr)
	if !ok {
		return nil
	}
	var slots []SetupSlot
	for _, field := range table.Fields {
		key, ok := field.Key.(*ast.StringExpr)
		if !ok {
			continue
		}
		index, ok := integerLiteral(field.Value)
		if !ok {
			continue
		}
		slots = append(slots, SetupSlot{Label: key.Value, Index: index})
	}
	return slots
}

func singleAssignmentName(assign *ast.AssignStmt) (string, bool) {
	if len(assign.Lhs) != 1 {
		return "", false
	}
	ident, ok := assign.Lhs[0].(*ast.IdentExpr)
	if !ok {
		return "", false
	}
	return ident.Value, true
}

func firstExpr(exprs []ast.Expr) ast.Expr {
	if len(exprs) == 0 {
		return nil
	}
	return exprs[0]
}

func exprAsFunctionCall(expr ast.Expr) (*ast.FuncCallExpr, bool) {
	call, ok := unwrap(expr).(*ast.FuncCallExpr)
	return call, ok
}

func exprAsFunction(expr ast.Expr) (*ast.FunctionExpr, bool) {
	fn, ok := unwrap(expr).(*ast.FunctionExpr)
	return fn, ok
}

// unwrap is a hook for future paren-node handling; gopher-lua folds
// parentheses away during parsing, so today it is the identity.
func unwrap(expr ast.Expr) ast.Expr {
	return expr
}

// methodCallArgs matches `base:method(args...)` and returns the arguments.
func methodCallArgs(call *ast.FuncCallExpr, base, method string) ([]ast.Expr, bool) {
	if call.Method != method {
		return nil, false
	}
	receiver, ok := call.Receiver.(*ast.IdentExpr)
	if !ok || receiver.Value != base {
		return nil, false
	}
	return call.Args, true
}

func globalCallName(call *ast.FuncCallExpr) (string, bool) {
	if call.Receiver != nil {
		return "", false
	}
	ident, ok := call.Func.(*ast.IdentExpr)
	if !ok {
		return "", false
	}
	return ident.Value, true
}

func firstStringArg(call *ast.FuncCallExpr) (string, bool) {
	if len(call.Args) == 0 {
		return "", false
	}
	return stringLiteral(call.Args[0])
}

func stringLiteral(expr ast.Expr) (string, bool) {
	str, ok := unwrap(expr).(*ast.StringExpr)
	if !ok {
		return "", false
	}
	return str.Value, true
}

func integerLiteral(expr ast.Expr) (int64, bool) {
	num, ok := unwrap(expr).(*ast.NumberExpr)
	if !ok {
		return 0, false
	}
	raw := strings.TrimSpace(num.Value)
	if value, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return value, true
	}
	if value, err := strconv.ParseFloat(raw, 64); err == nil {
		if value == float64(int64(value)) {
			return int64(value), true
		}
	}
	return 0, false
}
