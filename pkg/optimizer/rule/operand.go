package rule

import (
	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
)

// Operand 规则模式中的一个节点
type Operand struct {
	// Kind 为 rel.KindAny 时匹配任意算子
	Kind rel.Kind
	// MatchFamily 为真时按算子族匹配，例如 Join 可匹配所有物理连接
	MatchFamily bool
	// Convention 为空时不限制调用约定
	Convention rel.Convention
	Inputs     []*Operand
	// AnyInputs 不限制输入个数与形状
	AnyInputs bool
}

// OperandOf 固定输入个数的模式
func OperandOf(kind rel.Kind, inputs ...*Operand) *Operand {
	return &Operand{Kind: kind, Inputs: inputs}
}

// AnyOperand 不关心输入的模式
func AnyOperand(kind rel.Kind) *Operand {
	return &Operand{Kind: kind, AnyInputs: true}
}

// WithConvention 返回限制调用约定后的副本
func (o *Operand) WithConvention(c rel.Convention) *Operand {
	cp := *o
	cp.Convention = c
	return &cp
}

// OfFamily 返回按算子族匹配的副本
func (o *Operand) OfFamily() *Operand {
	cp := *o
	cp.MatchFamily = true
	return &cp
}

// Size 模式中的节点数
func (o *Operand) Size() int {
	n := 1
	for _, in := range o.Inputs {
		n += in.Size()
	}
	return n
}

// Matches 只检查当前节点
func (o *Operand) Matches(n *rel.Node) bool {
	if n.Kind() == rel.KindSetRef {
		return false
	}
	switch {
	case o.Kind == rel.KindAny:
	case o.MatchFamily:
		if n.Kind().Family() != o.Kind.Family() {
			return false
		}
	default:
		if n.Kind() != o.Kind {
			return false
		}
	}
	if o.Convention != "" && n.Convention() != o.Convention {
		return false
	}
	if !o.AnyInputs && n.InputCount() != len(o.Inputs) {
		return false
	}
	return true
}
