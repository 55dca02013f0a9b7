package hint

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
	"github.com/kasuganosora/relopt/pkg/optimizer/rule"
)

// Table hint 名称到处理策略的注册表，构造后只读，可并发使用
type Table struct {
	strategies map[string]Strategy
	handler    ErrorHandler
}

// TableBuilder 注册表构造器
type TableBuilder struct {
	strategies map[string]Strategy
	handler    ErrorHandler
	logger     *zap.Logger
	errs       error
}

// NewTableBuilder 创建构造器，默认告警模式
func NewTableBuilder() *TableBuilder {
	return &TableBuilder{strategies: make(map[string]Strategy)}
}

// Strategy 以谓词注册 hint
func (b *TableBuilder) Strategy(name string, p Predicate) *TableBuilder {
	if p == nil {
		b.errs = multierr.Append(b.errs, fmt.Errorf("hint %s: predicate must not be nil", rel.NormalizeHintName(name)))
		return b
	}
	return b.StrategyOf(name, NewStrategyBuilder(p).Build())
}

// StrategyOf 注册完整策略
func (b *TableBuilder) StrategyOf(name string, s Strategy) *TableBuilder {
	key := rel.NormalizeHintName(name)
	switch {
	case key == "":
		b.errs = multierr.Append(b.errs, fmt.Errorf("hint name must not be empty"))
	case s.predicate == nil:
		b.errs = multierr.Append(b.errs, fmt.Errorf("hint %s: predicate must not be nil", key))
	default:
		if _, dup := b.strategies[key]; dup {
			b.errs = multierr.Append(b.errs, fmt.Errorf("hint %s: registered twice", key))
			return b
		}
		b.strategies[key] = s
	}
	return b
}

// ErrorHandler 设置错误处理方式
func (b *TableBuilder) ErrorHandler(h ErrorHandler) *TableBuilder {
	b.handler = h
	return b
}

// Logger 告警模式使用的日志
func (b *TableBuilder) Logger(logger *zap.Logger) *TableBuilder {
	b.logger = logger
	return b
}

// Build 构造注册表，汇总全部注册错误
func (b *TableBuilder) Build() (*Table, error) {
	if b.errs != nil {
		return nil, b.errs
	}
	handler := b.handler
	if handler == nil {
		handler = Warn(b.logger)
	}
	strategies := make(map[string]Strategy, len(b.strategies))
	for k, v := range b.strategies {
		strategies[k] = v
	}
	return &Table{strategies: strategies, handler: handler}, nil
}

// EmptyTable 没有注册任何 hint 的表
func EmptyTable() *Table {
	return &Table{strategies: map[string]Strategy{}, handler: Warn(nil)}
}

// Len 已注册的 hint 数量
func (t *Table) Len() int {
	return len(t.strategies)
}

// Resolve 查找策略，名称不区分大小写
func (t *Table) Resolve(name string) (Strategy, bool) {
	s, ok := t.strategies[rel.NormalizeHintName(name)]
	return s, ok
}

// Validate hint 是否适用于算子；未注册的名称交给错误处理
func (t *Table) Validate(h rel.Hint, n *rel.Node) (bool, error) {
	s, ok := t.Resolve(h.Name())
	if !ok {
		return false, t.handler.Handle(unknownHint(h.Name()))
	}
	return s.Applies(h, n), nil
}

// CheckOptions 校验选项，不经过错误处理
func (t *Table) CheckOptions(h rel.Hint) error {
	s, ok := t.Resolve(h.Name())
	if !ok {
		return unknownHint(h.Name())
	}
	if s.optionChecker == nil {
		return nil
	}
	return s.optionChecker(h)
}

// ValidateHint 校验名称与选项，失败交给错误处理
func (t *Table) ValidateHint(h rel.Hint) error {
	err := t.CheckOptions(h)
	if err == nil {
		return nil
	}
	herr, ok := err.(*Error)
	if !ok {
		herr = NewError(h.Name(), "%s", err.Error())
	}
	return t.handler.Handle(herr)
}

// ValidateTree 校验树上每一个 hint，每个出错的 hint 只报告一次
func (t *Table) ValidateTree(root *rel.Node) error {
	var err error
	rel.Walk(root, func(n *rel.Node, _ []int) bool {
		for _, h := range n.Hints() {
			if err = t.ValidateHint(h); err != nil {
				return false
			}
		}
		return err == nil
	})
	return err
}

// Apply 过滤出适用于算子的 hint，未注册或不适用的静默丢弃
func (t *Table) Apply(hints []rel.Hint, n *rel.Node) []rel.Hint {
	var out []rel.Hint
	for _, h := range hints {
		if s, ok := t.Resolve(h.Name()); ok && s.Applies(h, n) {
			out = append(out, h)
		}
	}
	return out
}

// IsRuleExcluded 算子携带的任一 hint 是否禁止该规则
func (t *Table) IsRuleExcluded(n *rel.Node, r rule.Rule) bool {
	for _, h := range n.Hints() {
		s, ok := t.Resolve(h.Name())
		if !ok {
			continue
		}
		if s.Excludes(r.ID()) {
			return true
		}
		if rule.IsConverterRule(r) && !s.AllowsConverter(r.ID()) {
			return true
		}
	}
	return false
}

// IsConverterExcluded 算子携带的 hint 是否禁止该属性转换
func (t *Table) IsConverterExcluded(n *rel.Node, c rule.Converter) bool {
	for _, h := range n.Hints() {
		if s, ok := t.Resolve(h.Name()); ok && s.Excludes(c.ID()) {
			return true
		}
	}
	return false
}

// Propagate 将查询块上的 hint 下推给适用的后代，继承路径记录下推经过的输入序号。
// 外层 hint 追加在算子自身 hint 之后，内容与路径完全相同的不重复添加。
func (t *Table) Propagate(root *rel.Node) *rel.Node {
	return t.propagate(root, nil)
}

func (t *Table) propagate(n *rel.Node, inherited []rel.Hint) *rel.Node {
	own := n.Hints()
	var added []rel.Hint
	for _, h := range t.Apply(inherited, n) {
		if !containsHint(own, h) && !containsHint(added, h) {
			added = append(added, h)
		}
	}

	var sources []rel.Hint
	sources = append(sources, inherited...)
	for _, h := range own {
		if len(h.InheritPath()) == 0 {
			sources = append(sources, h)
		}
	}

	inputs := n.Inputs()
	changed := false
	for i, in := range inputs {
		next := t.propagate(in, rel.ExtendHints(sources, i))
		if next != in {
			inputs[i] = next
			changed = true
		}
	}

	if !changed && len(added) == 0 {
		return n
	}
	out := n
	if changed {
		out = out.WithInputs(inputs...)
	}
	if len(added) > 0 {
		hints := make([]rel.Hint, 0, len(own)+len(added))
		hints = append(hints, own...)
		out = out.WithHints(append(hints, added...))
	}
	return out
}

func containsHint(hints []rel.Hint, h rel.Hint) bool {
	for _, o := range hints {
		if o.Equal(h) {
			return true
		}
	}
	return false
}
