package binance

// Window is a half-open [StartMs, EndMs) slice of the requested range.
type Window struct {
	StartMs int64
	EndMs   int64
}

// PlanWindows splits [startMs, endMs) into fixed-span windows; the last
// window is clipped to endMs. Pure, no I/O. Smaller spans trade request count
// for reliability: a failed chunk loses less data.
func PlanWindows(startMs, endMs, spanMs int64) []Window {
	if startMs >= endMs {
		return nil
	}
	if spanMs <= 0 {
		spanMs = endMs - startMs
	}
	out := make([]Window, 0, (endMs-startMs)/spanMs+1)
	for cur := startMs; cur < endMs; cur += spanMs {
		end := cur + spanMs
		if end > endMs {
			end = endMs
		}
		out = append(out, Window{StartMs: cur, EndMs: end})
	}
	return out
}
