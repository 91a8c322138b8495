package grid

// lattice.go provides a regular-lattice mesh whose tessellation is known
// in closed form: every lattice cube splits into six tetrahedra sharing
// the cube's main diagonal. For lattice points this decomposition *is*
// a Delaunay-compatible tessellation, so it stands in for the external
// triangulation routine in the bundled benchmark model and in tests.

// latticeDirs selects the six tetrahedra of one cube. Each entry gives
// the two corner offsets that join the cube's anchor corner and its
// opposite corner into a tetrahedron.
var latticeDirs = [6][2][3]int{
	{{1, 0, 0}, {1, 1, 0}},
	{{1, 0, 0}, {1, 0, 1}},
	{{0, 1, 0}, {1, 1, 0}},
	{{0, 0, 1}, {1, 0, 1}},
	{{0, 1, 0}, {0, 1, 1}},
	{{0, 0, 1}, {0, 1, 1}},
}

// LatticeMesh builds an n x n x n point lattice spanning a cube of the
// given width centered on the origin, together with a Triangulator
// producing its tessellation. Points on the lattice boundary are sink
// points.
func LatticeMesh(n int, width float64) ([]Vec, []bool, Triangulator) {
	step := width / float64(n-1)
	idx := func(i, j, k int) int { return i + j*n + k*n*n }

	positions := make([]Vec, n*n*n)
	sink := make([]bool, n*n*n)
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				positions[idx(i, j, k)] = Vec{
					float64(i)*step - width/2,
					float64(j)*step - width/2,
					float64(k)*step - width/2,
				}
				if i == 0 || i == n-1 || j == 0 || j == n-1 ||
					k == 0 || k == n-1 {
					sink[idx(i, j, k)] = true
				}
			}
		}
	}

	simplices := make([][4]int, 0, 6*(n-1)*(n-1)*(n-1))
	for k := 0; k < n-1; k++ {
		for j := 0; j < n-1; j++ {
			for i := 0; i < n-1; i++ {
				anchor := [3]int{i, j, k}
				for _, d := range latticeDirs {
					var s [4]int
					s[0] = idx(anchor[0], anchor[1], anchor[2])
					s[1] = idx(anchor[0]+d[0][0], anchor[1]+d[0][1],
						anchor[2]+d[0][2])
					s[2] = idx(anchor[0]+d[1][0], anchor[1]+d[1][1],
						anchor[2]+d[1][2])
					s[3] = idx(anchor[0]+1, anchor[1]+1, anchor[2]+1)
					simplices = append(simplices, s)
				}
			}
		}
	}

	tri := func([]Vec) ([][4]int, error) { return simplices, nil }
	return positions, sink, tri
}
