package hint

import (
	"sort"
	"strings"

	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
	"github.com/kasuganosora/relopt/pkg/optimizer/rule"
)

// OptionChecker 校验 hint 选项，返回 nil 表示通过
type OptionChecker func(h rel.Hint) error

// CheckOption 条件不成立时返回 hint 错误
func CheckOption(cond bool, h rel.Hint, format string, args ...any) error {
	if cond {
		return nil
	}
	return NewError(h.Name(), format, args...)
}

// SingleOptionOf 只允许一个列表选项，且取值在 allowed 中（忽略大小写）
func SingleOptionOf(allowed ...string) OptionChecker {
	return func(h rel.Hint) error {
		options := h.ListOptions()
		ok := len(options) == 1
		if ok {
			ok = false
			for _, a := range allowed {
				if strings.EqualFold(options[0], a) {
					ok = true
					break
				}
			}
		}
		return CheckOption(ok, h, "Hint %s only allows single option, allowed options: [%s]",
			h.Name(), strings.Join(allowed, ", "))
	}
}

// Strategy 某个 hint 名称的处理策略
type Strategy struct {
	predicate      Predicate
	optionChecker  OptionChecker
	excludedRules  map[rule.ID]struct{}
	converterRules map[rule.ID]struct{}
}

// Applies hint 是否适用于算子
func (s Strategy) Applies(h rel.Hint, n *rel.Node) bool {
	return s.predicate(h, n)
}

// Excludes 是否禁止该规则
func (s Strategy) Excludes(id rule.ID) bool {
	_, ok := s.excludedRules[id]
	return ok
}

// AllowsConverter 调用约定转换规则是否被允许；未限定时全部允许
func (s Strategy) AllowsConverter(id rule.ID) bool {
	if len(s.converterRules) == 0 {
		return true
	}
	_, ok := s.converterRules[id]
	return ok
}

// ExcludedRules 排序后的禁用规则
func (s Strategy) ExcludedRules() []rule.ID {
	return sortedIDs(s.excludedRules)
}

// ConverterRules 排序后的允许转换规则
func (s Strategy) ConverterRules() []rule.ID {
	return sortedIDs(s.converterRules)
}

func sortedIDs(set map[rule.ID]struct{}) []rule.ID {
	ids := make([]rule.ID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// StrategyBuilder 策略构造器
type StrategyBuilder struct {
	s Strategy
}

// NewStrategyBuilder 以适用谓词创建构造器
func NewStrategyBuilder(p Predicate) *StrategyBuilder {
	return &StrategyBuilder{s: Strategy{
		predicate:      p,
		excludedRules:  make(map[rule.ID]struct{}),
		converterRules: make(map[rule.ID]struct{}),
	}}
}

// OptionChecker 设置选项校验
func (b *StrategyBuilder) OptionChecker(c OptionChecker) *StrategyBuilder {
	b.s.optionChecker = c
	return b
}

// ExcludedRules 携带该 hint 的算子上禁止这些规则
func (b *StrategyBuilder) ExcludedRules(ids ...rule.ID) *StrategyBuilder {
	for _, id := range ids {
		b.s.excludedRules[id] = struct{}{}
	}
	return b
}

// ConverterRules 限定携带该 hint 的算子只能由这些规则转换调用约定
func (b *StrategyBuilder) ConverterRules(ids ...rule.ID) *StrategyBuilder {
	for _, id := range ids {
		b.s.converterRules[id] = struct{}{}
	}
	return b
}

// Build 构造策略
func (b *StrategyBuilder) Build() Strategy {
	s := b.s
	s.excludedRules = copyIDs(b.s.excludedRules)
	s.converterRules = copyIDs(b.s.converterRules)
	return s
}

func copyIDs(set map[rule.ID]struct{}) map[rule.ID]struct{} {
	out := make(map[rule.ID]struct{}, len(set))
	for id := range set {
		out[id] = struct{}{}
	}
	return out
}
