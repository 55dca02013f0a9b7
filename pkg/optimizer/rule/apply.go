package rule

import (
	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
)

// Guard 在规则触发前检查绑定，返回 false 跳过该绑定
type Guard func(call *Call) bool

// Fire 执行一次调用并对输出做 hint 收尾，不匹配时返回 nil
func Fire(call *Call) *rel.Node {
	out := call.rule.Transform(call)
	if out == nil {
		return nil
	}
	return Propagate(call, out)
}

// TryApply 树模式下在节点上尝试规则，返回第一个产生变化的结果
func TryApply(r Rule, n *rel.Node, guards ...Guard) (*rel.Node, bool) {
	for _, call := range Bindings(r, n, TreeInputs) {
		if !allow(call, guards) {
			continue
		}
		out := Fire(call)
		if out == nil || out.Digest() == n.Digest() {
			continue
		}
		return out, true
	}
	return nil, false
}

func allow(call *Call, guards []Guard) bool {
	for _, g := range guards {
		if !g(call) {
			return false
		}
	}
	return true
}

// Propagate 为规则新建的节点确定 hint 并清除派生来源。
// 由绑定中第 k 个节点派生的节点继承其 hint，继承路径追加 k；
// 由绑定外节点派生的保留原 hint；全新构造的节点没有 hint；已存在的子树与占位符原样复用。
func Propagate(call *Call, out *rel.Node) *rel.Node {
	existing := make(map[*rel.Node]bool)
	rel.Walk(call.Root(), func(n *rel.Node, _ []int) bool {
		if existing[n] {
			return false
		}
		existing[n] = true
		return true
	})
	ordinals := make(map[*rel.Node]int, len(call.rels))
	for k, n := range call.rels {
		if _, ok := ordinals[n]; !ok {
			ordinals[n] = k
		}
	}

	done := make(map[*rel.Node]*rel.Node)
	var visit func(n *rel.Node) *rel.Node
	visit = func(n *rel.Node) *rel.Node {
		if existing[n] || n.Kind() == rel.KindSetRef {
			return n
		}
		if v, ok := done[n]; ok {
			return v
		}
		inputs := n.Inputs()
		for i, in := range inputs {
			inputs[i] = visit(in)
		}
		var hints []rel.Hint
		for _, origin := range n.Origins() {
			if k, ok := ordinals[origin]; ok {
				hints = append(hints, rel.ExtendHints(origin.Hints(), k)...)
			} else {
				hints = append(hints, origin.Hints()...)
			}
		}
		result := n
		if len(inputs) > 0 {
			result = result.WithInputs(inputs...)
		}
		result = result.WithHints(hints)
		done[n] = result
		return result
	}
	return visit(out)
}
