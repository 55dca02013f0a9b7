package rule

import (
	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
)

// Expander 给出节点第 i 个输入可供匹配的候选算子
type Expander func(n *rel.Node, i int) []*rel.Node

// TreeInputs 树模式下输入就是子节点本身
func TreeInputs(n *rel.Node, i int) []*rel.Node {
	return []*rel.Node{n.Input(i)}
}

// Match 枚举模式在节点上的所有绑定，每个绑定按模式前序排列
func Match(op *Operand, n *rel.Node, expand Expander) [][]*rel.Node {
	if !op.Matches(n) {
		return nil
	}
	results := [][]*rel.Node{{n}}
	for i, child := range op.Inputs {
		var next [][]*rel.Node
		for _, alt := range expand(n, i) {
			for _, sub := range Match(child, alt, expand) {
				for _, prefix := range results {
					binding := make([]*rel.Node, 0, len(prefix)+len(sub))
					binding = append(binding, prefix...)
					binding = append(binding, sub...)
					next = append(next, binding)
				}
			}
		}
		if len(next) == 0 {
			return nil
		}
		results = next
	}
	return results
}

// Bindings 规则在节点上的全部调用，根节点需满足规则的属性要求
func Bindings(r Rule, n *rel.Node, expand Expander) []*Call {
	if !n.Traits().Satisfies(r.Traits().Required) {
		return nil
	}
	var calls []*Call
	for _, b := range Match(r.Operand(), n, expand) {
		calls = append(calls, NewCall(r, b))
	}
	return calls
}
