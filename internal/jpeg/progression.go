package jpeg

// scanSpec is one entry of the progressive scan script.
type scanSpec struct {
	comps []int // frame component indices
	ss    int
	se    int
	ah    int
	al    int
}

// simpleProgression builds the standard progressive scan script: the
// three-component luma/chroma ladder for YCbCr-shaped frames, otherwise the
// generic successive-approximation script (one DC scan, then per-component
// AC scans at two precision levels, then the refinement passes).
func simpleProgression(f *frame) []scanSpec {
	n := len(f.comps)
	if n == 3 {
		return []scanSpec{
			{comps: []int{0, 1, 2}, ss: 0, se: 0, ah: 0, al: 1},
			{comps: []int{0}, ss: 1, se: 5, ah: 0, al: 2},
			{comps: []int{2}, ss: 1, se: 63, ah: 0, al: 1},
			{comps: []int{1}, ss: 1, se: 63, ah: 0, al: 1},
			{comps: []int{0}, ss: 6, se: 63, ah: 0, al: 2},
			{comps: []int{0}, ss: 1, se: 63, ah: 2, al: 1},
			{comps: []int{0, 1, 2}, ss: 0, se: 0, ah: 1, al: 0},
			{comps: []int{2}, ss: 1, se: 63, ah: 1, al: 0},
			{comps: []int{1}, ss: 1, se: 63, ah: 1, al: 0},
			{comps: []int{0}, ss: 1, se: 63, ah: 1, al: 0},
		}
	}

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	var scans []scanSpec
	scans = append(scans, scanSpec{comps: all, ss: 0, se: 0, ah: 0, al: 1})
	for c := 0; c < n; c++ {
		scans = append(scans, scanSpec{comps: []int{c}, ss: 1, se: 5, ah: 0, al: 2})
	}
	for c := 0; c < n; c++ {
		scans = append(scans, scanSpec{comps: []int{c}, ss: 6, se: 63, ah: 0, al: 2})
	}
	for c := 0; c < n; c++ {
		scans = append(scans, scanSpec{comps: []int{c}, ss: 1, se: 63, ah: 2, al: 1})
	}
	scans = append(scans, scanSpec{comps: all, ss: 0, se: 0, ah: 1, al: 0})
	for c := 0; c < n; c++ {
		scans = append(scans, scanSpec{comps: []int{c}, ss: 1, se: 63, ah: 1, al: 0})
	}
	return scans
}
