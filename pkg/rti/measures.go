// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package rti

import (
	"math"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/inhumate/rti-go/pkg/proto"
)

type pendingKey struct {
	measureID string
	entityID  string
}

// pendingAggregation collects the values of one measure, and one entity for per entity measures, until the
// measure's interval has passed.
type pendingAggregation struct {
	measure   proto.Measure
	entityID  string
	values    []float64
	lastFlush time.Time
}

// RegisterMeasure declares a measure used by this Client. It is announced while connected unless some client already
// announced a measure of the same id.
func (c *Client) RegisterMeasure(m proto.Measure) error {
	if err := m.CheckValid(); err != nil {
		return err
	}

	m.Application = c.opts.Application
	c.usedMeasures[m.ID] = m

	if _, known := c.knownMeasures[m.ID]; known {
		return nil
	}
	c.knownMeasures[m.ID] = m

	if !c.opts.Incognito {
		c.publishInternal(MeasuresChannel, &proto.Measures{Measure: &m})
	}
	return nil
}

// RequestMeasures asks all clients to announce their measures.
func (c *Client) RequestMeasures() error {
	return c.PublishMessage(MeasuresChannel, &proto.Measures{RequestMeasures: true}, true)
}

// KnownMeasures returns all measures learned from any client, including this one, ordered by id.
func (c *Client) KnownMeasures() []proto.Measure {
	measures := make([]proto.Measure, 0, len(c.knownMeasures))
	for _, m := range c.knownMeasures {
		measures = append(measures, m)
	}
	sort.Slice(measures, func(i, j int) bool { return measures[i].ID < measures[j].ID })
	return measures
}

// KnownMeasure returns a measure by its id, if known.
func (c *Client) KnownMeasure(id string) (proto.Measure, bool) {
	m, ok := c.knownMeasures[id]
	return m, ok
}

// SetMeasurementIntervalTimeScale scales the time passed between measurement windows, e.g., for simulations running
// faster or slower than real time.
func (c *Client) SetMeasurementIntervalTimeScale(scale float64) {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		c.logger.WithField("scale", scale).Warn("Ignoring invalid measurement interval time scale")
		return
	}
	c.timeScale = scale
}

func (c *Client) publishMeasures() {
	ids := make([]string, 0, len(c.usedMeasures))
	for id := range c.usedMeasures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		m := c.usedMeasures[id]
		c.publishInternal(MeasuresChannel, &proto.Measures{Measure: &m})
	}
}

func (c *Client) onMeasures(_ string, msg *proto.Measures) {
	switch {
	case msg.RequestMeasures:
		if !c.opts.Incognito {
			c.publishMeasures()
		}

	case msg.Measure != nil:
		c.knownMeasures[msg.Measure.ID] = *msg.Measure
	}
}

// Measure a value of the measure with the given id. Unknown measures are registered without an interval.
func (c *Client) Measure(id string, value float64) {
	c.MeasureWith(c.resolveMeasure(id), "", value)
}

// MeasureEntity measures a value for an entity. The entity is ignored unless the measure is per entity.
func (c *Client) MeasureEntity(id, entityID string, value float64) {
	c.MeasureWith(c.resolveMeasure(id), entityID, value)
}

func (c *Client) resolveMeasure(id string) proto.Measure {
	if m, ok := c.usedMeasures[id]; ok {
		return m
	} else if m, ok := c.knownMeasures[id]; ok {
		return m
	}
	return proto.Measure{ID: id, Application: c.opts.Application}
}

// MeasureWith measures a value of the given measure, registering it first if not used yet.
//
// Measures without an interval are published immediately while connected. Otherwise, values are collected and
// published as one measurement per interval.
func (c *Client) MeasureWith(m proto.Measure, entityID string, value float64) {
	if _, used := c.usedMeasures[m.ID]; !used {
		if err := c.RegisterMeasure(m); err != nil {
			c.notifyError("measure", err.Error())
			return
		}
	}

	if !m.PerEntity {
		entityID = ""
	}

	if !m.Aggregated() {
		c.publishMeasurement(m, &proto.Measurement{
			MeasureID: m.ID,
			ClientID:  c.opts.ClientID,
			EntityID:  entityID,
			Value:     value,
		})
		return
	}

	key := pendingKey{measureID: m.ID, entityID: entityID}
	pa, ok := c.pending[key]
	if !ok {
		pa = &pendingAggregation{entityID: entityID, lastFlush: c.now()}
		c.pending[key] = pa
	}
	pa.measure = m
	pa.values = append(pa.values, value)
}

func (c *Client) publishMeasurement(m proto.Measure, measurement *proto.Measurement) {
	if c.phase != Connected {
		c.logger.WithField("measure", m.ID).Debug("Dropping measurement while not connected")
		return
	}

	channel := m.Channel
	if channel == "" {
		channel = MeasurementChannel
	}

	kind := measurementInstant
	if measurement.Window != nil {
		kind = measurementWindow
	}
	c.metrics.measurements.WithLabelValues(kind).Inc()

	if err := c.PublishMessage(channel, measurement, true); err != nil {
		c.logger.WithError(err).WithField("measure", m.ID).Debug("Publishing measurement errored")
	}
}

// collectMeasurements publishes the pending values of each measure whose interval has passed.
func (c *Client) collectMeasurements() {
	if c.phase != Connected {
		return
	}

	keys := make([]pendingKey, 0, len(c.pending))
	for key := range c.pending {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].measureID != keys[j].measureID {
			return keys[i].measureID < keys[j].measureID
		}
		return keys[i].entityID < keys[j].entityID
	})

	now := c.now()
	for _, key := range keys {
		c.flush(c.pending[key], now)
	}
}

func (c *Client) flush(pa *pendingAggregation, now time.Time) {
	elapsed := now.Sub(pa.lastFlush).Seconds() * c.timeScale
	if elapsed < pa.measure.Interval {
		return
	}
	pa.lastFlush = now

	measurement := &proto.Measurement{
		MeasureID: pa.measure.ID,
		ClientID:  c.opts.ClientID,
		EntityID:  pa.entityID,
	}

	switch len(pa.values) {
	case 0:
		return

	case 1:
		measurement.Value = pa.values[0]

	default:
		measurement.Window = newWindow(pa.values, elapsed)
	}
	pa.values = pa.values[:0]

	c.logger.WithFields(log.Fields{
		"measure": pa.measure.ID,
		"entity":  pa.entityID,
		"window":  measurement.Window != nil,
	}).Debug("Publishing collected measurement")
	c.publishMeasurement(pa.measure, measurement)
}

func newWindow(values []float64, duration float64) *proto.Window {
	w := &proto.Window{
		Min:      math.Inf(1),
		Max:      math.Inf(-1),
		Duration: duration,
	}

	var sum float64
	for _, v := range values {
		w.Count++
		sum += v
		w.Min = math.Min(w.Min, v)
		w.Max = math.Max(w.Max, v)
	}
	if w.Count > 0 {
		w.Mean = sum / float64(w.Count)
	}
	return w
}
