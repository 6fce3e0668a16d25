package bandit

import "math"

// matrix 行优先存储的 n×n 稠密方阵。只在包内用于 LinUCB 的
// 设计矩阵，规模很小（特征维度），不引入线性代数库。
type matrix struct {
	n int
	a []float64
}

// newScaledIdentity 返回 λI
func newScaledIdentity(n int, lambda float64) *matrix {
	m := &matrix{n: n, a: make([]float64, n*n)}
	for i := 0; i < n; i++ {
		m.a[i*n+i] = lambda
	}
	return m
}

func (m *matrix) at(i, j int) float64 { return m.a[i*m.n+j] }

// addOuter 原地累加秩一项 f·fᵀ，保持对称性
func (m *matrix) addOuter(f []float64) {
	for i := 0; i < m.n; i++ {
		if f[i] == 0 {
			continue
		}
		row := i * m.n
		for j := 0; j < m.n; j++ {
			m.a[row+j] += f[i] * f[j]
		}
	}
}

// clone 深拷贝，choose 在持锁期间取快照后即可释放锁
func (m *matrix) clone() *matrix {
	c := &matrix{n: m.n, a: make([]float64, len(m.a))}
	copy(c.a, m.a)
	return c
}

// solve 用部分主元高斯消元求解 A·x = v。A 为 SPD 时总有唯一解；
// 奇异（理论上不可达）时返回 false。不修改接收者。
func (m *matrix) solve(v []float64) ([]float64, bool) {
	n := m.n
	// Augmented working copy
	aug := make([]float64, n*(n+1))
	for i := 0; i < n; i++ {
		copy(aug[i*(n+1):i*(n+1)+n], m.a[i*n:(i+1)*n])
		aug[i*(n+1)+n] = v[i]
	}

	for col := 0; col < n; col++ {
		// Partial pivot
		pivot := col
		maxAbs := math.Abs(aug[col*(n+1)+col])
		for r := col + 1; r < n; r++ {
			if abs := math.Abs(aug[r*(n+1)+col]); abs > maxAbs {
				maxAbs = abs
				pivot = r
			}
		}
		if maxAbs == 0 {
			return nil, false
		}
		if pivot != col {
			for k := col; k <= n; k++ {
				aug[col*(n+1)+k], aug[pivot*(n+1)+k] = aug[pivot*(n+1)+k], aug[col*(n+1)+k]
			}
		}

		pv := aug[col*(n+1)+col]
		for r := col + 1; r < n; r++ {
			factor := aug[r*(n+1)+col] / pv
			if factor == 0 {
				continue
			}
			for k := col; k <= n; k++ {
				aug[r*(n+1)+k] -= factor * aug[col*(n+1)+k]
			}
		}
	}

	// Back substitution
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := aug[i*(n+1)+n]
		for k := i + 1; k < n; k++ {
			sum -= aug[i*(n+1)+k] * x[k]
		}
		x[i] = sum / aug[i*(n+1)+i]
	}
	return x, true
}

// isSymmetric 对称性校验，测试用
func (m *matrix) isSymmetric(tol float64) bool {
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			if math.Abs(m.at(i, j)-m.at(j, i)) > tol {
				return false
			}
		}
	}
	return true
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func norm2(a []float64) float64 {
	return math.Sqrt(dot(a, a))
}
