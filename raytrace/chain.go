// Package raytrace walks rays through the Delaunay mesh and integrates
// the radiative-transfer equation along them, synthesizing spectral-line
// images from a converged population field.
package raytrace

import (
	"math"

	"github.com/astromol/linert/grid"
)

const (
	// epsEdge is the starting edge-closeness tolerance of face tests.
	// Rays grazing a vertex or edge are re-tested with the tolerance
	// widened epsStep at a time before the chain is declared broken.
	epsEdge     = 1e-10
	epsStep     = 100.0
	maxEpsIters = 4
)

// Intersection records one ray-face crossing. It lives only for the
// duration of a traversal.
type Intersection struct {
	Face        int        // face index in the cell (opposite vertex index)
	Orientation int        // +1 the ray exits through the face, -1 it enters
	Bary        [3]float64 // barycentric coordinates on the face
	Dist        float64    // distance along the ray, from the ray origin
	CollPar     float64    // smallest barycentric coordinate: edge closeness
}

// faceVerts returns the three vertex positions of face fi of a cell, in
// the vertex order skipping the opposite vertex.
func faceVerts(g *grid.Grid, c *grid.Cell, fi int) [3]grid.Vec {
	var out [3]grid.Vec
	k := 0
	for i := 0; i < 4; i++ {
		if i == fi {
			continue
		}
		out[k] = g.Points[c.Vert[i]].X
		k++
	}
	return out
}

// faceVertIDs returns the three vertex point indices of face fi.
func faceVertIDs(c *grid.Cell, fi int) [3]int {
	var out [3]int
	k := 0
	for i := 0; i < 4; i++ {
		if i == fi {
			continue
		}
		out[k] = c.Vert[i]
		k++
	}
	return out
}

// intersectFace intersects a ray with the plane of a cell face and
// computes the barycentric coordinates of the hit. opp is the position of
// the vertex opposite the face, used to orient the face normal outward.
func intersectFace(orig, dir grid.Vec, v [3]grid.Vec, opp grid.Vec) (Intersection, bool) {
	e0 := v[1].Sub(v[0])
	e1 := v[2].Sub(v[0])
	norm := e0.Cross(e1)

	// Outward means away from the opposite vertex.
	if norm.Dot(opp.Sub(v[0])) > 0 {
		norm = norm.Scale(-1)
	}

	denom := dir.Dot(norm)
	if denom == 0 {
		// Ray parallel to the face plane.
		return Intersection{Orientation: 0}, false
	}
	orient := 1
	if denom < 0 {
		orient = -1
	}

	t := v[0].Sub(orig).Dot(norm) / denom
	hit := orig.Add(dir.Scale(t))

	// Barycentric coordinates from the standard 2x2 solve in the face
	// plane.
	w := hit.Sub(v[0])
	d00 := e0.Dot(e0)
	d01 := e0.Dot(e1)
	d11 := e1.Dot(e1)
	d0w := e0.Dot(w)
	d1w := e1.Dot(w)
	det := d00*d11 - d01*d01
	if det == 0 {
		// Degenerate (collinear) face.
		return Intersection{Orientation: 0}, false
	}
	b1 := (d11*d0w - d01*d1w) / det
	b2 := (d00*d1w - d01*d0w) / det
	b0 := 1 - b1 - b2

	inter := Intersection{
		Orientation: orient,
		Bary:        [3]float64{b0, b1, b2},
		Dist:        t,
		CollPar:     math.Min(b0, math.Min(b1, b2)),
	}
	return inter, true
}

// exitFace finds the genuine exit face of the current cell: a face the
// ray leaves through (positive orientation) whose barycentric hit lies
// inside the face within eps. Among marginal candidates the one farthest
// from any edge wins, which resolves rays passing near a shared edge.
func exitFace(g *grid.Grid, c *grid.Cell, orig, dir grid.Vec,
	entryFace int, minDist, eps float64) (Intersection, bool) {

	best := Intersection{CollPar: math.Inf(-1)}
	found := false

	for fi := 0; fi < 4; fi++ {
		if fi == entryFace {
			continue
		}
		v := faceVerts(g, c, fi)
		opp := g.Points[c.Vert[fi]].X
		inter, ok := intersectFace(orig, dir, v, opp)
		if !ok || inter.Orientation <= 0 {
			continue
		}
		// CollPar is dimensionless; the backward-step guard scales the
		// tolerance by the face size so it stays meaningful at any mesh
		// scale.
		span := v[1].Sub(v[0]).Norm()
		if inter.CollPar < -eps || inter.Dist < minDist-eps*span {
			continue
		}
		if !found || inter.CollPar > best.CollPar {
			inter.Face = fi
			best = inter
			found = true
		}
	}

	return best, found
}

// FindEntry locates the cell a ray first enters from outside the mesh.
// The tessellation tiles the convex hull of the points, so an outside
// ray crosses inward through at most one boundary face. The boundary
// faces of the cells touching the mesh point nearest the ray's
// bounding-sphere entry are tried first; the exhaustive boundary scan is
// the fallback for rays that graze the hull far from any point. ok is
// false when the ray misses the mesh entirely.
func FindEntry(g *grid.Grid, orig, dir grid.Vec) (cell, face int, entry Intersection, ok bool) {
	probe, hit := sphereEntry(g, orig, dir)
	if !hit {
		return 0, 0, Intersection{}, false
	}

	near := g.NearestPoint(probe)
	if cell, face, entry, ok = scanBoundary(g, orig, dir, near); ok {
		return cell, face, entry, true
	}
	return scanBoundary(g, orig, dir, -1)
}

// sphereEntry intersects the ray with the bounding sphere of the mesh
// and returns the position where the ray enters it. hit is false when
// the ray misses the sphere, which rules out any boundary crossing.
func sphereEntry(g *grid.Grid, orig, dir grid.Vec) (pos grid.Vec, hit bool) {
	var c grid.Vec
	for i := range g.Points {
		c = c.Add(g.Points[i].X)
	}
	c = c.Scale(1 / float64(len(g.Points)))

	r2 := 0.0
	for i := range g.Points {
		d := g.Points[i].X.Sub(c)
		if dd := d.Dot(d); dd > r2 {
			r2 = dd
		}
	}

	oc := c.Sub(orig)
	tca := oc.Dot(dir)
	d2 := oc.Dot(oc) - tca*tca
	if d2 > r2 {
		return grid.Vec{}, false
	}
	half := math.Sqrt(r2 - d2)
	if tca+half < 0 {
		// The sphere lies behind the ray origin.
		return grid.Vec{}, false
	}
	tin := tca - half
	if tin < 0 {
		tin = 0
	}
	return orig.Add(dir.Scale(tin)), true
}

// scanBoundary tests domain-boundary faces for the inward crossing of
// the ray. With vert >= 0 only the cells touching that vertex are
// tested; vert < 0 scans every cell.
func scanBoundary(g *grid.Grid, orig, dir grid.Vec, vert int) (cell, face int, entry Intersection, ok bool) {
	bestDist := math.Inf(1)

	for ci := range g.Cells {
		c := &g.Cells[ci]
		if vert >= 0 && c.Vert[0] != vert && c.Vert[1] != vert &&
			c.Vert[2] != vert && c.Vert[3] != vert {
			continue
		}
		for fi := 0; fi < 4; fi++ {
			if c.Neigh[fi] != -1 {
				continue
			}
			v := faceVerts(g, c, fi)
			opp := g.Points[c.Vert[fi]].X
			inter, hit := intersectFace(orig, dir, v, opp)
			if !hit || inter.Orientation >= 0 {
				continue
			}
			if inter.CollPar < -epsEdge || inter.Dist <= 0 {
				continue
			}
			if inter.Dist < bestDist {
				inter.Face = fi
				cell, face, entry = ci, fi, inter
				bestDist = inter.Dist
				ok = true
			}
		}
	}

	return cell, face, entry, ok
}

// FollowRay walks the chain of Delaunay cells a ray crosses, starting
// from the given entry cell and face, until the ray leaves through a
// domain-boundary face. For each crossed cell it records the cell id and
// the exit intersection; the entry intersection of cell k is the exit of
// cell k-1 (or the supplied entry record for the first cell).
//
// Numerically degenerate steps (near-vertex or edge-on hits) are retried
// with a widened tolerance; if no exit face emerges, or the step count
// exceeds the cell count, the chain is reported broken and the caller
// skips the ray.
func FollowRay(g *grid.Grid, orig, dir grid.Vec, entryCell, entryFace int,
	entry Intersection) (cells []int, exits []Intersection, ok bool) {

	maxSteps := len(g.Cells) + 1
	cur, curFace := entryCell, entryFace
	minDist := entry.Dist

	for step := 0; step < maxSteps; step++ {
		c := &g.Cells[cur]

		eps := epsEdge
		inter, found := exitFace(g, c, orig, dir, curFace, minDist, eps)
		for it := 0; !found && it < maxEpsIters; it++ {
			eps *= epsStep
			inter, found = exitFace(g, c, orig, dir, curFace, minDist, eps)
		}
		if !found {
			return nil, nil, false
		}

		cells = append(cells, cur)
		exits = append(exits, inter)
		minDist = inter.Dist

		next := c.Neigh[inter.Face]
		if next == -1 {
			return cells, exits, true
		}

		// The entry face of the next cell is the one shared with this
		// cell.
		curFace = -1
		for fi := 0; fi < 4; fi++ {
			if g.Cells[next].Neigh[fi] == cur {
				curFace = fi
				break
			}
		}
		cur = next
	}

	// Step cap exceeded: degenerate geometry caused a traversal loop.
	return nil, nil, false
}
