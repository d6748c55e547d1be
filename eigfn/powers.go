package eigfn

import "sort"

// powerRows enumerates every way of assigning an exponent from {0,...,maxPower} to each
// of n principal eigenfunctions. Combinations with replacement are expanded into all of
// their distinct permutations and duplicate rows are removed. Rows are returned in
// lexicographic order.
func powerRows(n, maxPower int) [][]int {
	set := make(map[string][]int)

	for _, c := range combinationsWithReplacement(maxPower, n) {
		permute(c, 0, func(row []int) {
			key := rowKey(row)
			if _, ok := set[key]; !ok {
				r := make([]int, n)
				copy(r, row)
				set[key] = r
			}
		})
	}

	rows := make([][]int, 0, len(set))
	for _, r := range set {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		for k := range rows[i] {
			if rows[i][k] != rows[j][k] {
				return rows[i][k] < rows[j][k]
			}
		}
		return false
	})

	return rows
}

// combinationsWithReplacement returns all non-decreasing sequences of length n over
// {0,...,maxPower}.
func combinationsWithReplacement(maxPower, n int) [][]int {
	var out [][]int
	cur := make([]int, n)

	var rec func(pos, min int)
	rec = func(pos, min int) {
		if pos == n {
			c := make([]int, n)
			copy(c, cur)
			out = append(out, c)
			return
		}
		for v := min; v <= maxPower; v++ {
			cur[pos] = v
			rec(pos+1, v)
		}
	}
	rec(0, 0)

	return out
}

// permute visits every permutation of row, mutating row in place.
func permute(row []int, k int, visit func([]int)) {
	if k == len(row) {
		visit(row)
		return
	}
	for i := k; i < len(row); i++ {
		row[k], row[i] = row[i], row[k]
		permute(row, k+1, visit)
		row[k], row[i] = row[i], row[k]
	}
}

func rowKey(row []int) string {
	b := make([]byte, 0, 2*len(row))
	for _, v := range row {
		b = append(b, byte(v), ',')
	}
	return string(b)
}
