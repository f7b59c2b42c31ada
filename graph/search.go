package graph

// lowerBoundFrom returns the first position in a from-sorted slice whose
// source is >= v.
func lowerBoundFrom[V VertexID, W any](edges []Edge[V, W], v V) int {
	lo, hi := 0, len(edges)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if edges[mid].From < v {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// upperBoundFrom returns the first position in a from-sorted slice whose
// source is > v.
func upperBoundFrom[V VertexID, W any](edges []Edge[V, W], v V) int {
	lo, hi := 0, len(edges)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if edges[mid].From <= v {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// countVertexInRange counts edges with source exactly v within a
// from-sorted slice.
func countVertexInRange[V VertexID, W any](edges []Edge[V, W], v V) int {
	st := lowerBoundFrom(edges, v)
	n := 0
	for i := st; i < len(edges) && edges[i].From == v; i++ {
		n++
	}
	return n
}

// exponentialSearchFrom finds the first position >= start whose source is
// >= v. Most of the time the next source is near the cursor, so a short
// scan then steps growing eightfold beat a full binary search.
func exponentialSearchFrom[V VertexID, W any](edges []Edge[V, W], start int, v V) int {
	rest := edges[start:]
	if len(rest) == 0 || rest[0].From >= v {
		return start
	}

	const scan = 4
	if len(rest) <= scan {
		return start + lowerBoundFrom(rest, v)
	}
	for j := 1; j <= scan; j++ {
		if rest[j].From >= v {
			return start + j
		}
	}

	const multiplier = 8
	last := scan
	i := scan * multiplier
	for i < len(rest) && rest[i].From < v {
		last = i
		i *= multiplier
	}
	if i > len(rest) {
		i = len(rest)
	}
	return start + last + 1 + lowerBoundFrom(rest[last+1:i], v)
}
