package rel

import (
	"strings"
)

// ExplainLevel 输出详细程度
type ExplainLevel int

const (
	// ExplainBrief 仅算子与参数
	ExplainBrief ExplainLevel = iota
	// ExplainWithHints 额外输出 hint 与物理属性
	ExplainWithHints
)

// Explain 解释计划树
func Explain(n *Node) string {
	return ExplainWith(n, ExplainBrief)
}

// ExplainWith 按指定级别解释计划树
func ExplainWith(n *Node, level ExplainLevel) string {
	var builder strings.Builder
	explainNode(&builder, n, 0, level)
	return builder.String()
}

// explainNode 递归解释
func explainNode(builder *strings.Builder, n *Node, depth int, level ExplainLevel) {
	if n == nil {
		return
	}

	for i := 0; i < depth; i++ {
		builder.WriteString("  ")
	}

	builder.WriteString(DisplayName(n))
	builder.WriteString("(")
	builder.WriteString(n.payload.digest())
	builder.WriteString(")")
	if level >= ExplainWithHints {
		builder.WriteString(" traits=")
		builder.WriteString(n.traits.Digest())
		if len(n.hints) > 0 {
			builder.WriteString(" hints=")
			builder.WriteString(HintsString(n.hints))
		}
	}
	builder.WriteString("\n")

	for _, child := range n.inputs {
		explainNode(builder, child, depth+1, level)
	}
}

// DisplayName 带调用约定前缀的算子名，例如 LogicalJoin、EnumerableMergeJoin
func DisplayName(n *Node) string {
	switch {
	case n.kind == KindSetRef:
		return "Set#" + n.traits.Digest()
	case n.Convention() == ConventionEnumerable:
		return "Enumerable" + n.kind.String()
	default:
		return "Logical" + n.kind.String()
	}
}
