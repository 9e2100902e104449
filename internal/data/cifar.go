package data

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	cifarSide   = 32
	cifarColors = 3
	cifarImage  = cifarSide * cifarSide * cifarColors
	// 1 byte label + 3072 bytes image, channel-planar RGB
	cifarRecord = 1 + cifarImage
)

// ReadCIFAR10 reads records from a CIFAR-10 binary batch. Pixels are scaled
// to [0,1] and keep the file's (C,H,W) layout.
func ReadCIFAR10(r io.Reader) ([]float64, []int, error) {
	var pixels []float64
	var labels []int
	buf := make([]byte, cifarRecord)
	for {
		_, err := io.ReadFull(r, buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrapf(err, "cifar10: record %d", len(labels))
		}
		if buf[0] > 9 {
			return nil, nil, errors.Errorf("cifar10: record %d has label %d", len(labels), buf[0])
		}
		labels = append(labels, int(buf[0]))
		for _, b := range buf[1:] {
			pixels = append(pixels, float64(b)/255)
		}
	}
	return pixels, labels, nil
}

func readCIFARFile(path string) ([]float64, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	defer f.Close()
	return ReadCIFAR10(bufio.NewReader(f))
}

// LoadCIFAR10 reads data_batch_1..5.bin (train) or test_batch.bin from dir.
func LoadCIFAR10(dir string, train bool) (*Dataset, error) {
	files := []string{"test_batch.bin"}
	if train {
		files = files[:0]
		for i := 1; i <= 5; i++ {
			files = append(files, fmt.Sprintf("data_batch_%d.bin", i))
		}
	}
	var pixels []float64
	var labels []int
	for _, name := range files {
		p, l, err := readCIFARFile(filepath.Join(dir, name))
		if err != nil {
			return nil, errors.Wrapf(err, "cifar10 %s", name)
		}
		pixels = append(pixels, p...)
		labels = append(labels, l...)
	}
	return NewDataset(pixels, labels, [3]int{cifarColors, cifarSide, cifarSide})
}
