package train

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

var csvHeader = []string{"step", "loss", "accuracy"}

func recordRow(r Record) []string {
	return []string{
		strconv.Itoa(r.Step),
		strconv.FormatFloat(r.Loss, 'f', 6, 64),
		strconv.FormatFloat(r.Accuracy, 'f', 4, 64),
	}
}

// WriteCSV writes records as step,loss,accuracy rows under a header.
func WriteCSV(filename string, records []Record) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.WithStack(err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(csvHeader); err != nil {
		return errors.Wrap(err, filename)
	}
	for _, r := range records {
		if err := w.Write(recordRow(r)); err != nil {
			return errors.Wrap(err, filename)
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), filename)
}

// CSVLogger streams every logged training record to a CSV file.
type CSVLogger struct {
	BaseCallback
	Filename string
	Append   bool

	file   *os.File
	writer *csv.Writer
}

// NewCSVLogger creates a new CSVLogger.
func NewCSVLogger(filename string, append bool) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
	}
}

func (c *CSVLogger) OnTrainBegin(t *Trainer) {
	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}

	file, err := os.OpenFile(c.Filename, mode, 0644)
	if err != nil {
		t.Logger().Printf("CSVLogger: failed to open file %s: %v", c.Filename, err)
		return
	}
	c.file = file
	c.writer = csv.NewWriter(file)

	// Write header if not appending or if file is empty
	info, err := file.Stat()
	if err == nil && (info.Size() == 0 || !c.Append) {
		c.writer.Write(csvHeader)
		c.writer.Flush()
	}
}

func (c *CSVLogger) OnBatchEnd(rec Record, t *Trainer) {
	if c.writer == nil {
		return
	}
	if err := c.writer.Write(recordRow(rec)); err != nil {
		t.Logger().Printf("CSVLogger: failed to write record: %v", err)
	}
	c.writer.Flush()
}

func (c *CSVLogger) OnTrainEnd(t *Trainer) {
	if c.file != nil {
		c.writer.Flush()
		c.file.Close()
		c.file = nil
		c.writer = nil
	}
}
