package hint

import (
	"strings"

	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
)

// Predicate 判断 hint 是否适用于某个算子
type Predicate func(h rel.Hint, n *rel.Node) bool

// NodeKind 按算子族匹配
func NodeKind(kinds ...rel.Kind) Predicate {
	return func(_ rel.Hint, n *rel.Node) bool {
		family := n.Kind().Family()
		for _, k := range kinds {
			if family == k {
				return true
			}
		}
		return false
	}
}

// 常用算子谓词
var (
	Join      = NodeKind(rel.KindJoin)
	TableScan = NodeKind(rel.KindTableScan)
	Project   = NodeKind(rel.KindProject)
	Filter    = NodeKind(rel.KindFilter)
	Aggregate = NodeKind(rel.KindAggregate)
	Calc      = NodeKind(rel.KindCalc)
	Sort      = NodeKind(rel.KindSort)
)

// And 全部谓词成立
func And(ps ...Predicate) Predicate {
	return func(h rel.Hint, n *rel.Node) bool {
		for _, p := range ps {
			if !p(h, n) {
				return false
			}
		}
		return true
	}
}

// Or 任一谓词成立
func Or(ps ...Predicate) Predicate {
	return func(h rel.Hint, n *rel.Node) bool {
		for _, p := range ps {
			if p(h, n) {
				return true
			}
		}
		return false
	}
}

// Not 取反
func Not(p Predicate) Predicate {
	return func(h rel.Hint, n *rel.Node) bool {
		return !p(h, n)
	}
}

// JoinWithTables 连接的直接扫描输入与 hint 列表选项中的表名一致（忽略顺序与大小写）
func JoinWithTables() Predicate {
	return And(Join, func(h rel.Hint, n *rel.Node) bool {
		options := h.ListOptions()
		var tables []string
		for _, in := range n.Inputs() {
			if in.Kind() == rel.KindTableScan {
				tables = append(tables, in.AsScan().TableName())
			}
		}
		if len(tables) != len(options) {
			return false
		}
		for _, opt := range options {
			found := false
			for _, t := range tables {
				if strings.EqualFold(opt, t) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	})
}
