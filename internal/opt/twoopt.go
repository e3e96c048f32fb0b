package opt

const (
	twoOptMaxPasses = 1000
	twoOptEps       = 1e-6
)

// twoOpt applies first-improvement 2-opt to a copy of route: reverse the first
// segment whose reversal shortens the two boundary edges, then rescan. The
// pinned head and tail never move. An unpinned route end has no boundary edge
// there, so open head and tail segments may be reversed too.
func (in *instance) twoOpt(route []int) []int {
	best := append([]int(nil), route...)
	lo := len(in.head)
	hi := len(best) - len(in.tail) - 1
	if hi-lo < 1 {
		return best
	}
	for pass := 0; pass < twoOptMaxPasses; pass++ {
		if !in.twoOptPass(best, lo, hi) {
			break
		}
	}
	return best
}

func (in *instance) twoOptPass(r []int, lo, hi int) bool {
	d := in.tbl.meters
	last := len(r) - 1
	for a := lo; a < hi; a++ {
		for b := a + 1; b <= hi; b++ {
			var before, after float64
			if a > 0 {
				before += d[r[a-1]][r[a]]
				after += d[r[a-1]][r[b]]
			}
			if b < last {
				before += d[r[b]][r[b+1]]
				after += d[r[a]][r[b+1]]
			}
			if after+twoOptEps < before {
				reverse(r[a : b+1])
				return true
			}
		}
	}
	return false
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
