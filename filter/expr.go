package filter

import (
	"context"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/pkg/dsl"
)

// ExprFilter 使用 CEL 表达式过滤：表达式为 true 的物品被保留，为 false 的被过滤。
//
//	item.features.content_score >= 0.2
//
// Invert 为 true 时反过来，表达式为 true 的物品被过滤。
type ExprFilter struct {
	Invert bool

	program *dsl.Program
}

// NewExprFilter 编译表达式并创建过滤器。
func NewExprFilter(expr string, invert bool) (*ExprFilter, error) {
	p, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{Invert: invert, program: p}, nil
}

func (f *ExprFilter) Name() string { return "filter.expr" }

// Expr 返回原始表达式。
func (f *ExprFilter) Expr() string { return f.program.String() }

func (f *ExprFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	ok, err := f.program.Evaluate(item, rctx)
	if err != nil {
		return false, err
	}
	if f.Invert {
		return ok, nil
	}
	return !ok, nil
}
