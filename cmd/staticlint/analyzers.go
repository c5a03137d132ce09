package main

import (
	"go/ast"
	"go/types"
	"strconv"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// NoOsExitAnalyzer запрещает os.Exit в функции main пакета main.
// Горутины, defer и замыкания внутри main не проверяются.
var NoOsExitAnalyzer = &analysis.Analyzer{
	Name: "noosexit",
	Doc:  "запрещает использование os.Exit в функции main пакета main",
	Run:  runNoOsExit,
}

// NoStdLogAnalyzer запрещает импорт стандартного log вне пакета main
var NoStdLogAnalyzer = &analysis.Analyzer{
	Name: "nostdlog",
	Doc:  "запрещает стандартный пакет log вне main, для логирования используется zap",
	Run:  runNoStdLog,
}

func runNoOsExit(pass *analysis.Pass) (any, error) {
	if pass.Pkg.Name() != "main" {
		return nil, nil
	}

	for _, file := range pass.Files {
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || fn.Name.Name != "main" || fn.Body == nil {
				continue
			}
			ast.Inspect(fn.Body, func(n ast.Node) bool {
				switch node := n.(type) {
				case *ast.FuncLit, *ast.GoStmt, *ast.DeferStmt:
					return false
				case *ast.CallExpr:
					if isOsExit(pass, node) {
						pass.Reportf(node.Pos(), "использование os.Exit в функции main запрещено")
					}
				}
				return true
			})
		}
	}
	return nil, nil
}

// isOsExit распознаёт os.Exit по типам, поэтому алиас импорта не спасает
func isOsExit(pass *analysis.Pass, call *ast.CallExpr) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	fn, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil {
		return false
	}
	return fn.Pkg().Path() == "os" && fn.Name() == "Exit"
}

func runNoStdLog(pass *analysis.Pass) (any, error) {
	if pass.Pkg.Name() == "main" {
		return nil, nil
	}

	for _, file := range pass.Files {
		if strings.HasSuffix(pass.Fset.File(file.Pos()).Name(), "_test.go") {
			continue
		}
		for _, imp := range file.Imports {
			path, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				continue
			}
			if path == "log" {
				pass.Reportf(imp.Pos(), "стандартный log запрещён, используйте zap")
			}
		}
	}
	return nil, nil
}
