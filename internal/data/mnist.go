package data

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	idxImagesMagic = 2051
	idxLabelsMagic = 2049
)

// openMaybeGzip opens path, or path+".gz" when only the compressed file
// exists, and returns a reader over the decompressed bytes.
func openMaybeGzip(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err == nil {
		return f, nil
	}
	if !os.IsNotExist(err) {
		return nil, errors.WithStack(err)
	}
	gf, gerr := os.Open(path + ".gz")
	if gerr != nil {
		return nil, errors.Wrapf(err, "neither %s nor %s.gz", path, path)
	}
	zr, err := gzip.NewReader(bufio.NewReader(gf))
	if err != nil {
		gf.Close()
		return nil, errors.Wrapf(err, "%s.gz", path)
	}
	return &gzipFile{Reader: zr, f: gf}, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if ferr := g.f.Close(); err == nil {
		err = ferr
	}
	return err
}

// ReadIDXImages reads an IDX image file:
//
//	magic number: 0x00000803 (2051)
//	number of images, rows, cols: 4 bytes each, big endian
//	pixel data: unsigned bytes (0-255)
//
// Pixels are scaled to [0,1].
func ReadIDXImages(r io.Reader) (pixels []float64, n, rows, cols int, err error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, 0, 0, 0, errors.Wrap(err, "idx images header")
	}
	if header[0] != idxImagesMagic {
		return nil, 0, 0, 0, errors.Errorf("idx images: invalid magic number %d, want %d", header[0], idxImagesMagic)
	}
	n, rows, cols = int(header[1]), int(header[2]), int(header[3])
	raw := make([]byte, n*rows*cols)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, 0, 0, 0, errors.Wrapf(err, "idx images: reading %d images", n)
	}
	pixels = make([]float64, len(raw))
	for i, b := range raw {
		pixels[i] = float64(b) / 255
	}
	return pixels, n, rows, cols, nil
}

// ReadIDXLabels reads an IDX label file (magic 2049, count, one byte per label).
func ReadIDXLabels(r io.Reader) ([]int, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrap(err, "idx labels header")
	}
	if header[0] != idxLabelsMagic {
		return nil, errors.Errorf("idx labels: invalid magic number %d, want %d", header[0], idxLabelsMagic)
	}
	raw := make([]byte, header[1])
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, errors.Wrapf(err, "idx labels: reading %d labels", header[1])
	}
	labels := make([]int, len(raw))
	for i, b := range raw {
		labels[i] = int(b)
	}
	return labels, nil
}

// LoadMNIST reads the training or test split from dir using the standard
// file names, accepting gzip-compressed files.
func LoadMNIST(dir string, train bool) (*Dataset, error) {
	prefix := "t10k"
	if train {
		prefix = "train"
	}
	imgPath := filepath.Join(dir, prefix+"-images-idx3-ubyte")
	lblPath := filepath.Join(dir, prefix+"-labels-idx1-ubyte")

	imgFile, err := openMaybeGzip(imgPath)
	if err != nil {
		return nil, errors.Wrap(err, "mnist")
	}
	defer imgFile.Close()
	pixels, n, rows, cols, err := ReadIDXImages(bufio.NewReader(imgFile))
	if err != nil {
		return nil, errors.Wrapf(err, "mnist %s", imgPath)
	}

	lblFile, err := openMaybeGzip(lblPath)
	if err != nil {
		return nil, errors.Wrap(err, "mnist")
	}
	defer lblFile.Close()
	labels, err := ReadIDXLabels(bufio.NewReader(lblFile))
	if err != nil {
		return nil, errors.Wrapf(err, "mnist %s", lblPath)
	}
	if len(labels) != n {
		return nil, errors.Errorf("mnist: %d images but %d labels", n, len(labels))
	}
	return NewDataset(pixels, labels, [3]int{1, rows, cols})
}
