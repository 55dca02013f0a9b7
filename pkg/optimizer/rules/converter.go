package rules

import (
	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
	"github.com/kasuganosora/relopt/pkg/optimizer/rule"
)

// SortConverterID 排序属性转换
const SortConverterID rule.ID = "SortConverter"

type sortConverter struct{}

// SortConverter 在输入之上补 Sort 以满足排序要求
func SortConverter() rule.Converter { return sortConverter{} }

func (sortConverter) ID() rule.ID { return SortConverterID }

func (sortConverter) Dimension() rel.Dimension { return rel.DimCollation }

func (sortConverter) CanConvert(from, to rel.Trait) bool {
	target, ok := to.(rel.Collation)
	if !ok || len(target) == 0 {
		return false
	}
	return !from.Satisfies(to)
}

func (sortConverter) Convert(input *rel.Node, to rel.TraitSet) *rel.Node {
	return rel.New(rel.KindSort, rel.SortPayload{Collation: to.Collation()}, to.Convention(), input)
}
