package filter

import (
	"context"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/pkg/dsl"
)

// Expr 使用 CEL 表达式过滤候选，表达式为 true 时过滤。
//
//	f, err := filter.NewExpr(`candidate.source == "trending" && candidate.likes < 3`)
type Expr struct {
	prg *dsl.Program
}

// NewExpr 编译表达式，表达式非法时返回错误（启动时失败）
func NewExpr(expr string) (*Expr, error) {
	prg, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &Expr{prg: prg}, nil
}

func (f *Expr) Name() string { return "filter.expr" }

func (f *Expr) ShouldFilter(_ context.Context, q *core.FeedQuery, c *core.FeedCandidate) (bool, error) {
	return f.prg.Eval(c, q)
}
