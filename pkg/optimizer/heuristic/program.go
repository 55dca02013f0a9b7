package heuristic

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/kasuganosora/relopt/pkg/optimizer/rule"
)

// Order 阶段内的遍历顺序
type Order int

const (
	// TopDown 先父后子（前序）
	TopDown Order = iota
	// BottomUp 先子后父（后序）
	BottomUp
	// Arbitrary 不保证顺序，整棵树扫一遍后再检查是否收敛
	Arbitrary
)

func (o Order) String() string {
	switch o {
	case TopDown:
		return "TOP_DOWN"
	case BottomUp:
		return "BOTTOM_UP"
	case Arbitrary:
		return "ARBITRARY"
	default:
		return fmt.Sprintf("Order(%d)", int(o))
	}
}

// ParseOrder 解析配置中的遍历顺序，空串为 TopDown
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "top_down":
		return TopDown, nil
	case "bottom_up":
		return BottomUp, nil
	case "arbitrary":
		return Arbitrary, nil
	default:
		return TopDown, fmt.Errorf("unknown order: %s", s)
	}
}

// Termination 阶段的结束条件
type Termination int

const (
	// UntilFixpoint 反复应用直到没有规则匹配
	UntilFixpoint Termination = iota
	// OncePerNode 每个节点只处理一次
	OncePerNode
)

func (t Termination) String() string {
	switch t {
	case UntilFixpoint:
		return "FIXPOINT"
	case OncePerNode:
		return "ONCE"
	default:
		return fmt.Sprintf("Termination(%d)", int(t))
	}
}

// ParseTermination 解析配置中的结束条件，空串为 UntilFixpoint
func ParseTermination(s string) (Termination, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fixpoint":
		return UntilFixpoint, nil
	case "once":
		return OncePerNode, nil
	default:
		return UntilFixpoint, fmt.Errorf("unknown termination: %s", s)
	}
}

// Phase 程序中的一个阶段
type Phase struct {
	Name        string
	Order       Order
	Termination Termination
	Rules       []rule.Rule
}

// Program 有序的阶段列表，构造后只读
type Program struct {
	phases []Phase
}

// Phases 返回阶段副本
func (p *Program) Phases() []Phase {
	out := make([]Phase, len(p.phases))
	for i, ph := range p.phases {
		ph.Rules = append([]rule.Rule(nil), ph.Rules...)
		out[i] = ph
	}
	return out
}

// ProgramBuilder 程序构造器
type ProgramBuilder struct {
	phases []Phase
	errs   error
}

// NewProgramBuilder 创建程序构造器
func NewProgramBuilder() *ProgramBuilder {
	return &ProgramBuilder{}
}

// AddPhase 追加一个阶段，规则按给定顺序尝试
func (b *ProgramBuilder) AddPhase(name string, order Order, termination Termination, rules ...rule.Rule) *ProgramBuilder {
	if name == "" {
		name = fmt.Sprintf("phase-%d", len(b.phases))
	}
	if len(rules) == 0 {
		b.errs = multierr.Append(b.errs, fmt.Errorf("phase %s: no rules", name))
		return b
	}
	seen := make(map[rule.ID]bool, len(rules))
	for i, r := range rules {
		if r == nil {
			b.errs = multierr.Append(b.errs, fmt.Errorf("phase %s: rule %d is nil", name, i))
			return b
		}
		if seen[r.ID()] {
			b.errs = multierr.Append(b.errs, fmt.Errorf("phase %s: rule %s added twice", name, r.ID()))
			return b
		}
		seen[r.ID()] = true
	}
	b.phases = append(b.phases, Phase{
		Name:        name,
		Order:       order,
		Termination: termination,
		Rules:       append([]rule.Rule(nil), rules...),
	})
	return b
}

// AddRuleInstance 单规则阶段，自顶向下应用至收敛
func (b *ProgramBuilder) AddRuleInstance(r rule.Rule) *ProgramBuilder {
	name := "<nil>"
	if r != nil {
		name = string(r.ID())
	}
	return b.AddPhase(name, TopDown, UntilFixpoint, r)
}

// Build 构造程序，汇总全部配置错误
func (b *ProgramBuilder) Build() (*Program, error) {
	if b.errs != nil {
		return nil, b.errs
	}
	return &Program{phases: append([]Phase(nil), b.phases...)}, nil
}
