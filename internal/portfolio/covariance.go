// Package portfolio implements constrained mean-variance (Markowitz)
// optimization: covariance assembly, Euclidean projection onto the feasible
// weight set, a projected-gradient minimum-variance solver, and the frontier
// and strategy selection layer built on top of it.
package portfolio

import (
	"gonum.org/v1/gonum/mat"
)

// OuterProduct returns v1 ⊗ v2 as a dense matrix.
func OuterProduct(v1, v2 []float64) [][]float64 {
	var m mat.Dense
	m.Outer(1, mat.NewVecDense(len(v1), v1), mat.NewVecDense(len(v2), v2))
	return rowsFromDense(&m)
}

// HadamardProduct returns the element-wise product of two equally sized
// matrices.
func HadamardProduct(a, b [][]float64) [][]float64 {
	var m mat.Dense
	m.MulElem(denseFromRows(a), denseFromRows(b))
	return rowsFromDense(&m)
}

// BuildCovarianceMatrix combines an annualized volatility vector and a
// correlation matrix into a covariance matrix: Σ = outer(σ, σ) ⊙ C. The
// result is symmetric and positive-semidefinite whenever C is a valid
// correlation matrix.
func BuildCovarianceMatrix(vols []float64, corr [][]float64) [][]float64 {
	return HadamardProduct(OuterProduct(vols, vols), corr)
}

// PortfolioVariance returns the quadratic form wᵀΣw.
func PortfolioVariance(w []float64, cov [][]float64) float64 {
	wv := mat.NewVecDense(len(w), w)
	return mat.Inner(wv, denseFromRows(cov), wv)
}

// PortfolioReturn returns the linear form w·r.
func PortfolioReturn(w, returns []float64) float64 {
	return mat.Dot(mat.NewVecDense(len(w), w), mat.NewVecDense(len(returns), returns))
}

func denseFromRows(rows [][]float64) *mat.Dense {
	r := len(rows)
	if r == 0 {
		return &mat.Dense{}
	}
	c := len(rows[0])
	m := mat.NewDense(r, c, nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m
}

func rowsFromDense(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = m.RawRowView(i)
	}
	return rows
}

// gradVariance writes the variance gradient 2Σw into dst.
func gradVariance(dst, w []float64, cov *mat.Dense) {
	var g mat.VecDense
	g.MulVec(cov, mat.NewVecDense(len(w), w))
	for i := range dst {
		dst[i] = 2 * g.AtVec(i)
	}
}
