package dynconv

import (
	"github.com/FlavioCFOliveira/GoACNN/internal/tensor"
)

// Im2Col unrolls every kh x kw receptive field of x (C,H,W) taken at the
// given stride into one row of the column matrix.
//
// Row i*wOut+j holds the patch x[:, i*stride:i*stride+kh, j*stride:j*stride+kw]
// flattened channel-major, then row, then column, which is the same order a
// (C_out, C, kh, kw) kernel flattens in.
func Im2Col(x *tensor.Tensor, kh, kw, stride int) (col *tensor.Tensor, hOut, wOut int, err error) {
	if x.Rank() != 3 {
		return nil, 0, 0, shapeErrorf("im2col", "input must be (C,H,W), got %v", x.Shape())
	}
	if kh < 1 || kw < 1 {
		return nil, 0, 0, shapeErrorf("im2col", "kernel must be at least 1x1, got %dx%d", kh, kw)
	}
	c, h, w := x.Dim(0), x.Dim(1), x.Dim(2)
	hOut, wOut, err = OutputSize(h, w, kh, kw, stride, Valid)
	if err != nil {
		return nil, 0, 0, err
	}

	rowLen := c * kh * kw
	col = tensor.New(hOut*wOut, rowLen)
	src := x.Data()
	dst := col.Data()
	for i := 0; i < hOut; i++ {
		for j := 0; j < wOut; j++ {
			row := dst[(i*wOut+j)*rowLen:]
			k := 0
			for ch := 0; ch < c; ch++ {
				plane := src[ch*h*w:]
				for p := 0; p < kh; p++ {
					base := (i*stride+p)*w + j*stride
					copy(row[k:k+kw], plane[base:base+kw])
					k += kw
				}
			}
		}
	}
	return col, hOut, wOut, nil
}

// Col2Im folds a column matrix back into a (C,H,W) tensor, summing the
// contributions of overlapping patches. It is the adjoint of Im2Col.
func Col2Im(col *tensor.Tensor, c, h, w, kh, kw, stride int) (*tensor.Tensor, error) {
	hOut, wOut, err := OutputSize(h, w, kh, kw, stride, Valid)
	if err != nil {
		return nil, err
	}
	rowLen := c * kh * kw
	if col.Rank() != 2 || col.Dim(0) != hOut*wOut || col.Dim(1) != rowLen {
		return nil, shapeErrorf("col2im", "column matrix %v does not match (%d,%d)", col.Shape(), hOut*wOut, rowLen)
	}

	out := tensor.New(c, h, w)
	src := col.Data()
	dst := out.Data()
	for i := 0; i < hOut; i++ {
		for j := 0; j < wOut; j++ {
			row := src[(i*wOut+j)*rowLen:]
			k := 0
			for ch := 0; ch < c; ch++ {
				plane := dst[ch*h*w:]
				for p := 0; p < kh; p++ {
					base := (i*stride+p)*w + j*stride
					for q := 0; q < kw; q++ {
						plane[base+q] += row[k]
						k++
					}
				}
			}
		}
	}
	return out, nil
}
