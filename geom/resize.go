package geom

import "math"

// ResizeCropArea returns the crop area that results from dragging handle h by
// (dx, dy) since the drag started. orig is the area at drag start; the result
// is always derived from it, never from the previous move event.
//
// bounds is the display surface; the result stays inside [0,W]x[0,H] and is
// at least MinCropSize on each side, or as much of it as bounds allows. With aspect > 0 the result keeps
// W/H == aspect: edge drags rebuild the other dimension and re-center it,
// corner drags keep the opposite corner fixed and follow whichever dimension
// moved further.
//
// A result that would be non-finite or inverted is replaced by orig.
func ResizeCropArea(orig Rect, h Handle, dx, dy float64, bounds Size, aspect float64) Rect {
	var out Rect
	switch {
	case h == Move:
		out = Rect{
			X: Clamp(orig.X+dx, 0, bounds.W-orig.W),
			Y: Clamp(orig.Y+dy, 0, bounds.H-orig.H),
			W: orig.W,
			H: orig.H,
		}
	case h.IsResize():
		out = intersect(resize(orig, h, dx, dy, bounds, aspect), bounds)
	default:
		return orig
	}
	if !out.Valid() {
		return orig
	}
	return out
}

// intersect clips r to [0,W]x[0,H].
func intersect(r Rect, bounds Size) Rect {
	r.X = Clamp(r.X, 0, bounds.W)
	r.Y = Clamp(r.Y, 0, bounds.H)
	if r.Right() > bounds.W {
		r.W = bounds.W - r.X
	}
	if r.Bottom() > bounds.H {
		r.H = bounds.H - r.Y
	}
	return r
}

// minSize is the smallest (w, h) allowed. With a locked ratio the shorter side
// sets the floor and the longer side follows it. A display smaller than that
// lowers the floor to fit, keeping the ratio when one is locked.
func minSize(aspect float64, bounds Size) (float64, float64) {
	if aspect <= 0 {
		return math.Min(MinCropSize, bounds.W), math.Min(MinCropSize, bounds.H)
	}
	w := math.Max(MinCropSize, MinCropSize*aspect)
	h := w / aspect
	switch {
	case w > bounds.W && bounds.W/w <= bounds.H/h:
		w = bounds.W
		h = w / aspect
	case h > bounds.H:
		h = bounds.H
		w = h * aspect
	}
	return w, h
}

func resize(orig Rect, h Handle, dx, dy float64, bounds Size, aspect float64) Rect {
	minW, minH := minSize(aspect, bounds)
	left, top, right, bottom := orig.X, orig.Y, orig.Right(), orig.Bottom()

	switch {
	case h.movesLeft():
		left = Clamp(left+dx, 0, right-minW)
	case h.movesRight():
		right = Clamp(right+dx, left+minW, bounds.W)
	}
	switch {
	case h.movesTop():
		top = Clamp(top+dy, 0, bottom-minH)
	case h.movesBottom():
		bottom = Clamp(bottom+dy, top+minH, bounds.H)
	}

	r := Rect{X: left, Y: top, W: right - left, H: bottom - top}
	if aspect <= 0 {
		return r
	}

	switch h {
	case N, S:
		return lockVertical(orig, r, h, bounds, aspect)
	case E, W:
		return lockHorizontal(orig, r, h, bounds, aspect)
	}
	return lockCorner(orig, r, h, bounds, aspect)
}

// lockVertical handles n/s drags: height drives, width follows centered on
// the original horizontal center.
func lockVertical(orig, r Rect, h Handle, bounds Size, aspect float64) Rect {
	r.W = r.H * aspect
	if r.W > bounds.W {
		r.W = bounds.W
		newH := r.W / aspect
		if h == N {
			r.Y = r.Bottom() - newH
		}
		r.H = newH
	}
	r.X = Clamp(orig.Center().X-r.W/2, 0, bounds.W-r.W)
	return r
}

// lockHorizontal handles e/w drags: width drives, height follows centered on
// the original vertical center.
func lockHorizontal(orig, r Rect, h Handle, bounds Size, aspect float64) Rect {
	r.H = r.W / aspect
	if r.H > bounds.H {
		r.H = bounds.H
		newW := r.H * aspect
		if h == W {
			r.X = r.Right() - newW
		}
		r.W = newW
	}
	r.Y = Clamp(orig.Center().Y-r.H/2, 0, bounds.H-r.H)
	return r
}

// lockCorner handles corner drags. The corner opposite h stays where it was.
func lockCorner(orig, r Rect, h Handle, bounds Size, aspect float64) Rect {
	minW, _ := minSize(aspect, bounds)

	// Anchor and the room available from it towards the dragged corner.
	ax, ay := orig.X, orig.Y
	availW, availH := bounds.W-ax, bounds.H-ay
	if h.movesLeft() {
		ax = orig.Right()
		availW = ax
	}
	if h.movesTop() {
		ay = orig.Bottom()
		availH = ay
	}

	w, ht := r.W, r.H
	if math.Abs(w-orig.W) >= math.Abs(ht-orig.H) {
		ht = w / aspect
	} else {
		w = ht * aspect
	}
	if w > availW {
		w = availW
		ht = w / aspect
	}
	if ht > availH {
		ht = availH
		w = ht * aspect
	}
	if w < minW {
		w = minW
		ht = w / aspect
	}

	out := Rect{X: ax, Y: ay, W: w, H: ht}
	if h.movesLeft() {
		out.X = ax - w
	}
	if h.movesTop() {
		out.Y = ay - ht
	}
	return out
}
