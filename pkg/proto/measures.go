// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package proto

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/dtn7/cboring"
	"github.com/hashicorp/go-multierror"
)

// MinInterval is the smallest aggregation interval in seconds. Measures with a smaller interval are published
// instantly for each measurement.
const MinInterval = 1e-5

// Measure describes a telemetry signal.
type Measure struct {
	ID          string
	Application string
	Title       string
	Unit        string
	// Channel overrides the default measurement channel, if set.
	Channel string
	// Interval in seconds to aggregate measurements over.
	Interval float64
	// PerEntity measures are reported and aggregated separately for each entity.
	PerEntity bool
}

// Aggregated reports whether measurements of this Measure are collected into windows.
func (m Measure) Aggregated() bool {
	return m.Interval > MinInterval
}

// CheckValid returns an error for an unusable Measure.
func (m Measure) CheckValid() (errs error) {
	if m.ID == "" {
		errs = multierror.Append(errs, errors.New("measure id is empty"))
	}
	if math.IsNaN(m.Interval) || math.IsInf(m.Interval, 0) || m.Interval < 0 {
		errs = multierror.Append(errs, fmt.Errorf("measure interval %v is not a non-negative number", m.Interval))
	}
	return
}

func (m *Measure) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(7, w); err != nil {
		return err
	}
	if err := writeTextStrings(w, m.ID, m.Application, m.Title, m.Unit, m.Channel); err != nil {
		return err
	}
	if err := cboring.WriteFloat64(m.Interval, w); err != nil {
		return err
	}
	return cboring.WriteBoolean(m.PerEntity, w)
}

func (m *Measure) UnmarshalCbor(r io.Reader) error {
	if err := expectArrayLength(r, "Measure", 7); err != nil {
		return err
	}
	if err := readTextStrings(r, &m.ID, &m.Application, &m.Title, &m.Unit, &m.Channel); err != nil {
		return err
	}
	if err := readFloats(r, &m.Interval); err != nil {
		return err
	}
	return readBooleans(r, &m.PerEntity)
}

const (
	measuresRequestCode uint64 = 0
	measuresMeasureCode uint64 = 1
)

// Measures is the message type of the rti/measures channel. Exactly one of its fields should be set.
type Measures struct {
	RequestMeasures bool
	Measure         *Measure
}

func (m *Measures) TypeName() string {
	return "Measures"
}

func (m *Measures) MarshalCbor(w io.Writer) error {
	switch {
	case m.Measure != nil:
		return marshalOneof(measuresMeasureCode, m.Measure, w)
	case m.RequestMeasures:
		return marshalOneof(measuresRequestCode, nil, w)
	default:
		return fmt.Errorf("Measures: no content")
	}
}

func (m *Measures) UnmarshalCbor(r io.Reader) error {
	code, hasContent, err := unmarshalOneofHeader(r)
	if err != nil {
		return err
	}

	*m = Measures{}
	switch {
	case code == measuresRequestCode && !hasContent:
		m.RequestMeasures = true
		return nil
	case code == measuresMeasureCode && hasContent:
		m.Measure = new(Measure)
		return cboring.Unmarshal(m.Measure, r)
	default:
		return fmt.Errorf("Measures: %w %d", ErrUnknownTypeCode, code)
	}
}

// Window aggregates several measurements of one interval.
type Window struct {
	Count uint64
	Mean  float64
	Min   float64
	Max   float64
	// Duration in seconds covered by this Window.
	Duration float64
}

func (win *Window) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(5, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(win.Count, w); err != nil {
		return err
	}
	return writeFloats(w, win.Mean, win.Min, win.Max, win.Duration)
}

func (win *Window) UnmarshalCbor(r io.Reader) error {
	if err := expectArrayLength(r, "Window", 5); err != nil {
		return err
	}
	if n, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		win.Count = n
	}
	return readFloats(r, &win.Mean, &win.Min, &win.Max, &win.Duration)
}

// Measurement is either a single Value or an aggregated Window of a Measure.
type Measurement struct {
	MeasureID string
	ClientID  string
	EntityID  string
	Value     float64
	Window    *Window
}

func (m *Measurement) TypeName() string {
	return "Measurement"
}

func (m *Measurement) MarshalCbor(w io.Writer) error {
	var arrLen uint64 = 4
	if m.Window != nil {
		arrLen = 5
	}

	if err := cboring.WriteArrayLength(arrLen, w); err != nil {
		return err
	}
	if err := writeTextStrings(w, m.MeasureID, m.ClientID, m.EntityID); err != nil {
		return err
	}
	if err := cboring.WriteFloat64(m.Value, w); err != nil {
		return err
	}

	if m.Window != nil {
		return cboring.Marshal(m.Window, w)
	}
	return nil
}

func (m *Measurement) UnmarshalCbor(r io.Reader) error {
	n, err := cboring.ReadArrayLength(r)
	if err != nil {
		return err
	} else if n != 4 && n != 5 {
		return fmt.Errorf("Measurement: expected array of four or five elements, got %d", n)
	}

	if err := readTextStrings(r, &m.MeasureID, &m.ClientID, &m.EntityID); err != nil {
		return err
	}
	if err := readFloats(r, &m.Value); err != nil {
		return err
	}

	if n == 5 {
		m.Window = new(Window)
		return cboring.Unmarshal(m.Window, r)
	}
	m.Window = nil
	return nil
}
