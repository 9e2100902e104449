package net

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/pkg/errors"
)

const (
	paramsMagic   = "acnn-params"
	paramsVersion = 2
)

// paramsHeader precedes the parameter vector. Version 2 files follow the
// parameters with a state vector of StateCount values.
type paramsHeader struct {
	Magic      string
	Version    int
	Count      int
	StateCount int
}

// EncodeParams writes the parameters of p to w using gob encoding, followed
// by its state when p is Stateful.
func EncodeParams(w io.Writer, p Parametric) error {
	params := p.Params()
	state := StateOf(p)
	encoder := gob.NewEncoder(w)
	h := paramsHeader{Magic: paramsMagic, Version: paramsVersion, Count: len(params), StateCount: len(state)}
	if err := encoder.Encode(h); err != nil {
		return errors.Wrap(err, "failed to encode header")
	}
	if err := encoder.Encode(params); err != nil {
		return errors.Wrap(err, "failed to encode parameters")
	}
	if err := encoder.Encode(state); err != nil {
		return errors.Wrap(err, "failed to encode state")
	}
	return nil
}

// DecodeParams reads parameters written by EncodeParams into p. The parameter
// and state counts must match. Version 1 files carry no state and leave the
// state of p untouched.
func DecodeParams(r io.Reader, p Parametric) error {
	decoder := gob.NewDecoder(r)
	var h paramsHeader
	if err := decoder.Decode(&h); err != nil {
		return errors.Wrap(err, "failed to read header")
	}
	if h.Magic != paramsMagic {
		return errors.Errorf("not a parameter file (magic %q)", h.Magic)
	}
	if want := len(p.Params()); h.Count != want {
		return errors.Errorf("parameter count %d does not match model (%d)", h.Count, want)
	}
	var params []float64
	if err := decoder.Decode(&params); err != nil {
		return errors.Wrap(err, "failed to read parameters")
	}
	if len(params) != h.Count {
		return errors.Errorf("expected %d parameters, read %d", h.Count, len(params))
	}

	var state []float64
	if h.Version >= 2 {
		if want := len(StateOf(p)); h.StateCount != want {
			return errors.Errorf("state count %d does not match model (%d)", h.StateCount, want)
		}
		if err := decoder.Decode(&state); err != nil {
			return errors.Wrap(err, "failed to read state")
		}
		if len(state) != h.StateCount {
			return errors.Errorf("expected %d state values, read %d", h.StateCount, len(state))
		}
	}
	p.SetParams(params)
	if s, ok := p.(Stateful); ok && state != nil {
		s.SetState(state)
	}
	return nil
}

// SaveParams writes the parameters of p to filename.
func SaveParams(filename string, p Parametric) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	if err := EncodeParams(file, p); err != nil {
		file.Close()
		return err
	}
	return errors.Wrap(file.Close(), "failed to close file")
}

// LoadParams reads parameters from filename into p.
func LoadParams(filename string, p Parametric) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()
	return DecodeParams(file, p)
}
