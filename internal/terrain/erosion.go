package terrain

// neighbours8 lists the Moore neighbourhood offsets.
var neighbours8 = [...]struct{ dx, dz int }{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Relax runs thermal erosion over grid in place. Every iteration reads from a
// snapshot taken at its start and writes into a fresh buffer, so the outcome
// does not depend on visiting order. Only interior cells shed material; the
// outer ring can receive but never erodes. Relax returns the number of
// transfers made by the final iteration that ran; it stops early once an
// iteration moves nothing, because every later one would be a no-op too.
func Relax(grid *HeightGrid, iterations int, talus, factor float64) int {
	if grid == nil || iterations <= 0 || grid.Width < 3 || grid.Depth < 3 {
		return 0
	}

	transfers := 0
	for it := 0; it < iterations; it++ {
		snapshot := grid.Values
		next := append([]float64(nil), snapshot...)
		transfers = 0

		for z := 1; z < grid.Depth-1; z++ {
			for x := 1; x < grid.Width-1; x++ {
				idx := grid.index(x, z)
				h := snapshot[idx]
				for _, n := range neighbours8 {
					nIdx := grid.index(x+n.dx, z+n.dz)
					diff := h - snapshot[nIdx]
					if diff <= talus {
						continue
					}
					amount := factor * (diff - talus)
					next[idx] -= amount
					next[nIdx] += amount
					transfers++
				}
			}
		}

		grid.Values = next
		if transfers == 0 {
			break
		}
	}
	return transfers
}
