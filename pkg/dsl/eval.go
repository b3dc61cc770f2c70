package dsl

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/solfeed/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("candidate", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("query", cel.DynType),
	)
}

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Program 是编译好的候选表达式，使用 CEL (Common Expression Language) 实现。
// 编译一次，可以被并发 Eval。
//
// 可用变量：
//   - candidate.post_id / creator_wallet / source / likes / comments / tips_received
//     / final_score / age_hours / tags / scene_type / mood / is_token_gated / scored
//   - label.<key>：Label 的值，例如 label.recall_source
//   - query.user_wallet / query.limit / query.liked_count / query.following_count
//
// 示例：
//   - `candidate.likes < 0`
//   - `candidate.source == "trending" && candidate.likes < 3`
//   - `"nsfw" in candidate.tags`
//   - `label.recall_source.contains("trending")`
type Program struct {
	expr string
	prg  cel.Program
	now  func() time.Time
}

// Compile 编译表达式，表达式必须返回 bool。
func Compile(expr string) (*Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	return &Program{expr: expr, prg: prg, now: time.Now}, nil
}

// String 返回原始表达式
func (p *Program) String() string { return p.expr }

// Eval 对单个候选求值
func (p *Program) Eval(c *core.FeedCandidate, q *core.FeedQuery) (bool, error) {
	out, _, err := p.prg.Eval(p.buildInput(c, q))
	if err != nil {
		// 访问不存在的 label 会报错，应先用 has(label.key) 判断
		return false, fmt.Errorf("eval error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// buildInput 构建 CEL 表达式的输入数据
func (p *Program) buildInput(c *core.FeedCandidate, q *core.FeedQuery) map[string]interface{} {
	labels := make(map[string]interface{}, len(c.Labels))
	for k, v := range c.Labels {
		labels[k] = v.Value
	}

	tags := c.AutoTags
	if tags == nil {
		tags = []string{}
	}
	ageHours := 0.0
	if !c.Timestamp.IsZero() {
		ageHours = p.now().Sub(c.Timestamp).Hours()
	}

	candidate := map[string]interface{}{
		"post_id":        c.PostID,
		"creator_wallet": c.CreatorWallet,
		"source":         string(c.Source),
		"likes":          c.Likes,
		"comments":       c.Comments,
		"tips_received":  c.TipsReceived,
		"final_score":    c.FinalScore,
		"age_hours":      ageHours,
		"tags":           tags,
		"scene_type":     c.SceneType,
		"mood":           c.Mood,
		"is_token_gated": c.IsTokenGated,
		"scored":         c.IsScored(),
	}

	query := map[string]interface{}{}
	if q != nil {
		query = map[string]interface{}{
			"user_wallet":     q.UserWallet,
			"limit":           int64(q.Limit),
			"liked_count":     int64(len(q.LikedPostIDs)),
			"following_count": int64(len(q.FollowingWallets)),
		}
	}

	return map[string]interface{}{
		"candidate": candidate,
		"label":     labels,
		"query":     query,
	}
}
