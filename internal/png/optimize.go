package png

// Optimize losslessly recompresses a PNG: every filter strategy is scored
// with a fast deflate, the winner is re-encoded through zopfli, and small
// palette images get one extra attempt with the palette dropped. The result
// is returned only when it is strictly smaller than the source; nil means
// no improvement.
func Optimize(src []byte) ([]byte, error) {
	img, err := Decode(src)
	if err != nil {
		return nil, err
	}

	strategy := bestStrategy(img)
	out, err := Encode(img, strategy, ZopfliDeflate)
	if err != nil {
		return nil, err
	}

	// Tiny palette images sometimes shrink further without the PLTE
	// overhead.
	if len(out) < 4096 && img.ColorType == Palette {
		flat := paletteFreeImage(img)
		out2, err := Encode(flat, bestStrategy(flat), ZopfliDeflate)
		if err == nil && len(out2) < len(out) {
			out = out2
		}
	}

	if len(out) < len(src) && len(out) > 0 {
		return out, nil
	}
	return nil, nil
}

// bestStrategy scores all eight filter strategies with the fast deflate and
// returns the one producing the smallest output.
func bestStrategy(img *Image) FilterStrategy {
	best := StrategyZero
	bestSize := -1
	for _, s := range Strategies {
		out, err := Encode(img, s, FastDeflate)
		if err != nil {
			continue
		}
		if bestSize < 0 || len(out) < bestSize {
			best = s
			bestSize = len(out)
		}
	}
	return best
}
