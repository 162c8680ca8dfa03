package ccat

/*
	GF(256) Cauchy matrix, a_ij = 1 / (x_i - y_j), where the x_i and y_j are
	disjoint sets of field elements. Cauchy matrices are always full rank, and
	a Cauchy matrix stacked under an identity matrix stays full rank when any
	rows are removed, which is what makes the erasure code work.

	Rows use x_i = 0..63 and columns use y_j = 64..255. Dividing each column
	by its first-row element leaves the matrix invertible and makes the first
	row all ones, so recoveries on row zero reduce to plain XOR:

		a(x_i, j) = y_j / (x_i + y_j) in GF(256), y_j = j + 64
*/

// matrixElement returns the recovery coefficient for a recovery row and an
// original column. Row zero yields 1 for every column.
func matrixElement(recoveryRow, originalColumn uint8) byte {
	y := originalColumn + matrixRowCount
	return gfDiv(y, recoveryRow^y)
}
