package cost

import (
	"fmt"
	"math"
)

// Cost 代价，按 CPU+IO 之和全序比较
type Cost struct {
	Rows float64
	CPU  float64
	IO   float64
}

// Zero 零代价
var Zero = Cost{}

// Infinite 无法执行的代价
func Infinite() Cost {
	inf := math.Inf(1)
	return Cost{Rows: inf, CPU: inf, IO: inf}
}

// Value 总代价
func (c Cost) Value() float64 {
	return c.CPU + c.IO
}

// IsInfinite 是否无穷大
func (c Cost) IsInfinite() bool {
	return math.IsInf(c.Value(), 1) || math.IsNaN(c.Value())
}

// Plus 代价相加，行数取右侧（上层）的估计
func (c Cost) Plus(o Cost) Cost {
	return Cost{Rows: o.Rows, CPU: c.CPU + o.CPU, IO: c.IO + o.IO}
}

// Less 先比较总代价，相同时行数少者更优
func (c Cost) Less(o Cost) bool {
	if c.Value() != o.Value() {
		return c.Value() < o.Value()
	}
	return c.Rows < o.Rows
}

func (c Cost) String() string {
	if c.IsInfinite() {
		return "{inf}"
	}
	return fmt.Sprintf("{%.4g rows, %.4g cpu, %.4g io}", c.Rows, c.CPU, c.IO)
}
