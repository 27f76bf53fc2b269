package doe

import (
	"fmt"
	"math"
)

// codedMatrix constructs the coded design matrix for k numeric factors.
func codedMatrix(t DesignType, k int) ([][]float64, error) {
	switch t {
	case FullFactorial2:
		if k < 2 {
			return nil, fmt.Errorf("%s requires at least 2 factors, got %d", t, k)
		}
		return ff2n(k), nil
	case FullFactorial3:
		if k < 2 {
			return nil, fmt.Errorf("%s requires at least 2 factors, got %d", t, k)
		}
		return ff3n(k), nil
	case PlackettBurman:
		if k < 2 {
			return nil, fmt.Errorf("%s requires at least 2 factors, got %d", t, k)
		}
		return pbDesign(k)
	case BoxBehnken:
		if k < 2 {
			return nil, fmt.Errorf("%s requires at least 2 factors, got %d", t, k)
		}
		return bbDesign(k), nil
	case CCC, CCF, CCI:
		if k < 1 {
			return nil, fmt.Errorf("%s requires at least 1 factor, got %d", t, k)
		}
		return ccDesign(k, t), nil
	default:
		return nil, &UnsupportedDesignError{Type: string(t)}
	}
}

// ff2n is the 2-level full factorial: 2^k rows over {-1, +1}.
func ff2n(k int) [][]float64 {
	n := 1 << k
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, k)
		for j := 0; j < k; j++ {
			if i>>(k-1-j)&1 == 1 {
				row[j] = 1
			} else {
				row[j] = -1
			}
		}
		rows[i] = row
	}
	return rows
}

// ff3n is the 3-level full factorial: 3^k rows over {-1, 0, +1}.
func ff3n(k int) [][]float64 {
	n := 1
	for i := 0; i < k; i++ {
		n *= 3
	}
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, k)
		rem := i
		for j := k - 1; j >= 0; j-- {
			row[j] = float64(rem%3) - 1
			rem /= 3
		}
		rows[i] = row
	}
	return rows
}

// pbGenerators are the classical cyclic Plackett-Burman generator rows,
// keyed by run count. Each design has N runs and N-1 columns.
var pbGenerators = map[int][]float64{
	4:  {1, 1, -1},
	8:  {1, 1, 1, -1, 1, -1, -1},
	12: {1, 1, -1, 1, 1, 1, -1, -1, -1, 1, -1},
	16: {1, 1, 1, 1, -1, 1, -1, 1, 1, -1, -1, 1, -1, -1, -1},
	20: {1, 1, -1, -1, 1, 1, 1, 1, -1, 1, -1, 1, -1, -1, -1, -1, 1, 1, -1},
	24: {1, 1, 1, 1, 1, -1, 1, -1, 1, 1, -1, -1, 1, 1, -1, -1, 1, -1, 1, -1, -1, -1, -1},
}

// pbDesign is the Plackett-Burman screening design: the smallest
// supported run count with at least k+1 runs, truncated to k columns.
func pbDesign(k int) ([][]float64, error) {
	n := 0
	for _, candidate := range []int{4, 8, 12, 16, 20, 24} {
		if candidate > k {
			n = candidate
			break
		}
	}
	if n == 0 {
		return nil, fmt.Errorf("plackett-burman supports at most 23 factors, got %d", k)
	}

	gen := pbGenerators[n]
	rows := make([][]float64, n)
	for i := 0; i < n-1; i++ {
		row := make([]float64, k)
		for j := 0; j < k; j++ {
			// Cyclic shift of the generator row.
			row[j] = gen[(j+i)%(n-1)]
		}
		rows[i] = row
	}
	last := make([]float64, k)
	for j := range last {
		last[j] = -1
	}
	rows[n-1] = last
	return rows, nil
}

// bbDesign is the Box-Behnken design: every factor pair at the four
// (+/-1, +/-1) combinations with all other factors at 0, plus one
// center point. For k=2 this degenerates to the 2^2 factorial plus
// center, which is still a valid quadratic-capable design.
func bbDesign(k int) [][]float64 {
	var rows [][]float64
	for a := 0; a < k-1; a++ {
		for b := a + 1; b < k; b++ {
			for _, va := range []float64{-1, 1} {
				for _, vb := range []float64{-1, 1} {
					row := make([]float64, k)
					row[a] = va
					row[b] = vb
					rows = append(rows, row)
				}
			}
		}
	}
	rows = append(rows, make([]float64, k)) // center point
	return rows
}

// ccDesign is the central composite design: a 2^k cube, 2k axial star
// points and one center point. The face variant places the star on the
// cube (alpha=1); circumscribed keeps the cube at +/-1 with the star at
// +/-alpha; inscribed scales the cube inward so the star sits at +/-1.
func ccDesign(k int, face DesignType) [][]float64 {
	alpha := math.Pow(float64(int(1)<<k), 0.25) // rotatable
	cubeScale, starScale := 1.0, alpha
	switch face {
	case CCF:
		cubeScale, starScale = 1.0, 1.0
	case CCI:
		cubeScale, starScale = 1.0/alpha, 1.0
	}

	var rows [][]float64
	for _, cube := range ff2n(k) {
		row := make([]float64, k)
		for j, v := range cube {
			row[j] = v * cubeScale
		}
		rows = append(rows, row)
	}
	for j := 0; j < k; j++ {
		for _, sign := range []float64{-1, 1} {
			row := make([]float64, k)
			row[j] = sign * starScale
			rows = append(rows, row)
		}
	}
	rows = append(rows, make([]float64, k)) // center point
	return rows
}

// gsd is the generalized subset design: the full factorial over the
// given level counts reduced to the balanced fraction whose level-index
// sum is divisible by the reduction factor.
func gsd(counts []int, reduction int) [][]int {
	if reduction < 1 {
		reduction = 1
	}
	total := 1
	for _, c := range counts {
		total *= c
	}

	var rows [][]int
	idx := make([]int, len(counts))
	for i := 0; i < total; i++ {
		sum := 0
		for _, v := range idx {
			sum += v
		}
		if sum%reduction == 0 {
			row := make([]int, len(idx))
			copy(row, idx)
			rows = append(rows, row)
		}
		// Odometer increment.
		for j := len(idx) - 1; j >= 0; j-- {
			idx[j]++
			if idx[j] < counts[j] {
				break
			}
			idx[j] = 0
		}
	}
	return rows
}
