package heuristic

import (
	"errors"
	"fmt"

	"github.com/kasuganosora/relopt/pkg/optimizer/rule"
)

var (
	// ErrNoRoot 未设置根节点
	ErrNoRoot = errors.New("heuristic planner: root not set")
	// ErrPlannerBusy 规划器正在运行
	ErrPlannerBusy = errors.New("heuristic planner: already running")
)

// IterationLimitError 阶段内规则应用次数超过上限，通常说明规则集互相抵消无法收敛
type IterationLimitError struct {
	Phase string
	Rule  rule.ID
	Limit int
	Node  string
}

// NewIterationLimitError 创建迭代超限错误
func NewIterationLimitError(phase string, r rule.ID, limit int, node string) *IterationLimitError {
	return &IterationLimitError{Phase: phase, Rule: r, Limit: limit, Node: node}
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("heuristic phase %s exceeded %d iterations, last rule %s on %s", e.Phase, e.Limit, e.Rule, e.Node)
}
