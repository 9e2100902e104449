package tensor

import "github.com/pkg/errors"

// Stack joins equally shaped tensors along a new leading dimension.
func Stack(ts []*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, errors.New("tensor: stack of zero tensors")
	}
	inner := ts[0].shape
	size := len(ts[0].data)
	data := make([]float64, 0, size*len(ts))
	for i, t := range ts {
		if !SameShape(t.shape, inner) {
			return nil, errors.Errorf("tensor: stack element %d has shape %v, want %v", i, t.shape, inner)
		}
		data = append(data, t.data...)
	}
	return FromSlice(data, append([]int{len(ts)}, inner...)...)
}

// Pad2D zero-pads the last two dimensions. The result is a new tensor; t is
// left untouched. All amounts must be non-negative.
func (t *Tensor) Pad2D(top, bottom, left, right int) (*Tensor, error) {
	if len(t.shape) < 2 {
		return nil, errors.Errorf("tensor: pad2d needs rank >= 2, got shape %v", t.shape)
	}
	if top < 0 || bottom < 0 || left < 0 || right < 0 {
		return nil, errors.Errorf("tensor: negative padding (%d,%d,%d,%d)", top, bottom, left, right)
	}
	if top == 0 && bottom == 0 && left == 0 && right == 0 {
		return t, nil
	}

	r := len(t.shape)
	h, w := t.shape[r-2], t.shape[r-1]
	ph, pw := h+top+bottom, w+left+right
	planes := len(t.data) / (h * w)

	shape := t.Shape()
	shape[r-2], shape[r-1] = ph, pw
	out := New(shape...)
	for p := 0; p < planes; p++ {
		src := t.data[p*h*w:]
		dst := out.data[p*ph*pw:]
		for y := 0; y < h; y++ {
			copy(dst[(y+top)*pw+left:(y+top)*pw+left+w], src[y*w:y*w+w])
		}
	}
	return out, nil
}

// Crop2D removes the given margins from the last two dimensions. It is the
// inverse of Pad2D.
func (t *Tensor) Crop2D(top, bottom, left, right int) (*Tensor, error) {
	if len(t.shape) < 2 {
		return nil, errors.Errorf("tensor: crop2d needs rank >= 2, got shape %v", t.shape)
	}
	if top == 0 && bottom == 0 && left == 0 && right == 0 {
		return t, nil
	}
	r := len(t.shape)
	ph, pw := t.shape[r-2], t.shape[r-1]
	h, w := ph-top-bottom, pw-left-right
	if top < 0 || bottom < 0 || left < 0 || right < 0 || h <= 0 || w <= 0 {
		return nil, errors.Errorf("tensor: cannot crop (%d,%d,%d,%d) from shape %v", top, bottom, left, right, t.shape)
	}
	planes := len(t.data) / (ph * pw)

	shape := t.Shape()
	shape[r-2], shape[r-1] = h, w
	out := New(shape...)
	for p := 0; p < planes; p++ {
		src := t.data[p*ph*pw:]
		dst := out.data[p*h*w:]
		for y := 0; y < h; y++ {
			copy(dst[y*w:y*w+w], src[(y+top)*pw+left:(y+top)*pw+left+w])
		}
	}
	return out, nil
}
