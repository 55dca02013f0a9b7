package rel

// Kind 算子类型
type Kind int

const (
	// KindAny 仅用于规则模式，匹配任意算子
	KindAny Kind = iota
	KindTableScan
	KindProject
	KindFilter
	KindCalc
	KindJoin
	KindAggregate
	KindSort
	KindHashJoin
	KindMergeJoin
	KindNestedLoopJoin
	// KindSetRef 等价集合占位符，只出现在代价优化器的备忘录中
	KindSetRef
)

var kindNames = map[Kind]string{
	KindAny:            "Any",
	KindTableScan:      "TableScan",
	KindProject:        "Project",
	KindFilter:         "Filter",
	KindCalc:           "Calc",
	KindJoin:           "Join",
	KindAggregate:      "Aggregate",
	KindSort:           "Sort",
	KindHashJoin:       "HashJoin",
	KindMergeJoin:      "MergeJoin",
	KindNestedLoopJoin: "NestedLoopJoin",
	KindSetRef:         "SetRef",
}

// String 返回算子名称
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Family 返回算子所属的逻辑族，物理连接算法都归属 Join
func (k Kind) Family() Kind {
	switch k {
	case KindHashJoin, KindMergeJoin, KindNestedLoopJoin:
		return KindJoin
	default:
		return k
	}
}

// IsJoin 是否为连接（逻辑或物理）
func (k Kind) IsJoin() bool {
	return k.Family() == KindJoin
}
