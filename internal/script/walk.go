package script

import "github.com/yuin/gopher-lua/ast"

// walkCalls visits every function-call expression in the chunk, including
// calls nested inside blocks, expressions, and function literals.
func walkCalls(stmts []ast.Stmt, visit func(*ast.FuncCallExpr)) {
	for _, stmt := range stmts {
		walkStmtCalls(stmt, visit)
	}
}

func walkStmtCalls(stmt ast.Stmt, visit func(*ast.FuncCallExpr)) {
	switch st := stmt.(type) {
	case *ast.AssignStmt:
		walkExprListCalls(st.Lhs, visit)
		walkExprListCalls(st.Rhs, visit)
	case *ast.LocalAssignStmt:
		walkExprListCalls(st.Exprs, visit)
	case *ast.FuncCallStmt:
		walkExprCalls(st.Expr, visit)
	case *ast.DoBlockStmt:
		walkCalls(st.Stmts, visit)
	case *ast.WhileStmt:
		walkExprCalls(st.Condition, visit)
		walkCalls(st.Stmts, visit)
	case *ast.RepeatStmt:
		walkCalls(st.Stmts, visit)
		walkExprCalls(st.Condition, visit)
	case *ast.IfStmt:
		walkExprCalls(st.Condition, visit)
		walkCalls(st.Then, visit)
		walkCalls(st.Else, visit)
	case *ast.NumberForStmt:
		walkExprCalls(st.Init, visit)
		walkExprCalls(st.Limit, visit)
		if st.Step != nil {
			walkExprCalls(st.Step, visit)
		}
		walkCalls(st.Stmts, visit)
	case *ast.GenericForStmt:
		walkExprListCalls(st.Exprs, visit)
		walkCalls(st.Stmts, visit)
	case *ast.FuncDefStmt:
		walkCalls(st.Func.Stmts, visit)
	case *ast.ReturnStmt:
		walkExprListCalls(st.Exprs, visit)
	}
}

func walkExprListCalls(exprs []ast.Expr, visit func(*ast.FuncCallExpr)) {
	for _, expr := range exprs {
		walkExprCalls(expr, visit)
	}
}

func walkExprCalls(expr ast.Expr, visit func(*ast.FuncCallExpr)) {
	switch ex := expr.(type) {
	case *ast.FuncCallExpr:
		visit(ex)
		if ex.Func != nil {
			walkExprCalls(ex.Func, visit)
		}
		if ex.Receiver != nil {
			walkExprCalls(ex.Receiver, visit)
		}
		walkExprListCalls(ex.Args, visit)
	case *ast.AttrGetExpr:
		walkExprCalls(ex.Object, visit)
		walkExprCalls(ex.Key, visit)
	case *ast.TableExpr:
		for _, field := range ex.Fields {
			if field.Key != nil {
				walkExprCalls(field.Key, visit)
			}
			walkExprCalls(field.Value, visit)
		}
	case *ast.ArithmeticOpExpr:
		walkExprCalls(ex.Lhs, visit)
		walkExprCalls(ex.Rhs, visit)
	case *ast.StringConcatOpExpr:
		walkExprCalls(ex.Lhs, visit)
		walkExprCalls(ex.Rhs, visit)
	case *ast.RelationalOpExpr:
		walkExprCalls(ex.Lhs, visit)
		walkExprCalls(ex.Rhs, visit)
	case *ast.LogicalOpExpr:
		walkExprCalls(ex.Lhs, visit)
		walkExprCalls(ex.Rhs, visit)
	case *ast.UnaryMinusOpExpr:
		walkExprCalls(ex.Expr, visit)
	case *ast.UnaryNotOpExpr:
		walkExprCalls(ex.Expr, visit)
	case *ast.UnaryLenOpExpr:
		walkExprCalls(ex.Expr, visit)
	case *ast.FunctionExpr:
		walkCalls(ex.Stmts, visit)
	}
}
