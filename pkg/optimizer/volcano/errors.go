package volcano

import (
	"errors"
	"fmt"

	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
)

var (
	// ErrNoPlan 根集合没有满足所需属性的可执行成员
	ErrNoPlan = errors.New("no plan found")
	// ErrNoRoot 未设置根节点
	ErrNoRoot = errors.New("volcano planner: root not set")
	// ErrPlannerBusy 正在搜索
	ErrPlannerBusy = errors.New("volcano planner: search in progress")
	// ErrInvalidState 当前状态不允许该操作
	ErrInvalidState = errors.New("volcano planner: invalid state")
)

// NoPlanError 提取失败的详细信息，errors.Is(err, ErrNoPlan) 为真
type NoPlanError struct {
	Set      SetID
	Required rel.TraitSet
	Members  int
}

// NewNoPlanError 创建提取失败错误
func NewNoPlanError(set SetID, required rel.TraitSet, members int) *NoPlanError {
	return &NoPlanError{Set: set, Required: required, Members: members}
}

func (e *NoPlanError) Error() string {
	return fmt.Sprintf("%s: set #%d has no implementable member satisfying [%s] (%d members explored)",
		ErrNoPlan, e.Set, e.Required.Digest(), e.Members)
}

func (e *NoPlanError) Unwrap() error {
	return ErrNoPlan
}
