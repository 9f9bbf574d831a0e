package observation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/healthshare/healthshare/internal/platform/fhir"
)

// DataType tags a category of health data. Any string is accepted; tags
// outside the known set degrade to generic handling.
type DataType string

const (
	Steps         DataType = "steps"
	HeartRate     DataType = "heartRate"
	Sleep         DataType = "sleep"
	BloodPressure DataType = "bloodPressure"
	Weight        DataType = "weight"
	BloodGlucose  DataType = "bloodGlucose"
)

// KnownDataTypes lists the supported tags in presentation order.
var KnownDataTypes = []DataType{Steps, HeartRate, Sleep, BloodPressure, Weight, BloodGlucose}

var displayNames = map[DataType]string{
	Steps:         "Steps",
	HeartRate:     "Heart Rate",
	Sleep:         "Sleep",
	BloodPressure: "Blood Pressure",
	Weight:        "Weight",
	BloodGlucose:  "Blood Glucose",
}

// Known reports whether tag has dedicated conversion rules.
func (d DataType) Known() bool {
	_, ok := codeTable[d]
	return ok
}

// DisplayName returns a human-readable label for the tag.
func (d DataType) DisplayName() string {
	if name, ok := displayNames[d]; ok {
		return name
	}
	if d == "" {
		return ""
	}
	s := string(d)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Observation is the wire form of one reading. Which fields are meaningful
// depends on the data type; pointers distinguish absent from zero.
type Observation struct {
	Value     *float64 `json:"value,omitempty"`
	Unit      string   `json:"unit,omitempty"`
	Systolic  *float64 `json:"systolic,omitempty"`
	Diastolic *float64 `json:"diastolic,omitempty"`
	Hours     *float64 `json:"hours,omitempty"`
	Minutes   *float64 `json:"minutes,omitempty"`
	Quality   string   `json:"quality,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// Reading is the resolved, shape-checked form of an Observation. The set of
// implementations is closed: Scalar, DualComponent and DurationQuality.
type Reading interface {
	populate(tag DataType, res *fhir.Observation)
}

// Scalar is a single measured value.
type Scalar struct {
	Value float64
	Unit  string
}

// DualComponent is a systolic/diastolic pair in mmHg.
type DualComponent struct {
	Systolic  float64
	Diastolic float64
}

// DurationQuality is a duration with an optional free-text quality.
type DurationQuality struct {
	Hours   float64
	Minutes float64
	Quality string
}

// TotalMinutes returns the duration in whole and fractional minutes.
func (d DurationQuality) TotalMinutes() float64 {
	return d.Hours*60 + d.Minutes
}

// ValidationError reports an observation that does not match the shape its
// data type requires.
type ValidationError struct {
	DataType DataType
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s observation: %s %s", e.DataType, e.Field, e.Reason)
}

func missing(tag DataType, field string) *ValidationError {
	return &ValidationError{DataType: tag, Field: field, Reason: "is required"}
}

// Resolve checks obs against the shape tag requires and returns the typed
// reading.
func Resolve(tag DataType, obs Observation) (Reading, error) {
	if obs.Timestamp == "" {
		return nil, missing(tag, "timestamp")
	}
	if _, err := time.Parse(time.RFC3339Nano, obs.Timestamp); err != nil {
		return nil, &ValidationError{DataType: tag, Field: "timestamp", Reason: "is not an ISO-8601 instant"}
	}

	switch tag {
	case BloodPressure:
		if obs.Systolic == nil {
			return nil, missing(tag, "systolic")
		}
		if obs.Diastolic == nil {
			return nil, missing(tag, "diastolic")
		}
		if err := finite(tag, "systolic", *obs.Systolic); err != nil {
			return nil, err
		}
		if err := finite(tag, "diastolic", *obs.Diastolic); err != nil {
			return nil, err
		}
		return DualComponent{Systolic: *obs.Systolic, Diastolic: *obs.Diastolic}, nil
	case Sleep:
		r := DurationQuality{Quality: obs.Quality}
		if obs.Hours != nil {
			if err := finite(tag, "hours", *obs.Hours); err != nil {
				return nil, err
			}
			r.Hours = *obs.Hours
		}
		if obs.Minutes != nil {
			if err := finite(tag, "minutes", *obs.Minutes); err != nil {
				return nil, err
			}
			r.Minutes = *obs.Minutes
		}
		return r, nil
	default:
		if obs.Value == nil {
			return nil, missing(tag, "value")
		}
		if err := finite(tag, "value", *obs.Value); err != nil {
			return nil, err
		}
		return Scalar{Value: *obs.Value, Unit: obs.Unit}, nil
	}
}

func finite(tag DataType, field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{DataType: tag, Field: field, Reason: "must be a finite number"}
	}
	return nil
}

// Validate returns a *ValidationError when obs does not match tag's shape.
func Validate(tag DataType, obs Observation) error {
	_, err := Resolve(tag, obs)
	return err
}

// IsValid reports whether obs matches the shape tag requires.
func IsValid(tag DataType, obs Observation) bool {
	return Validate(tag, obs) == nil
}

// Format renders a reading for display, e.g. "124/79 mmHg". Invalid
// observations render as "No data available".
func Format(tag DataType, obs Observation) string {
	reading, err := Resolve(tag, obs)
	if err != nil {
		return "No data available"
	}
	switch r := reading.(type) {
	case DualComponent:
		return fmt.Sprintf("%s/%s mmHg", num(r.Systolic), num(r.Diastolic))
	case DurationQuality:
		return fmt.Sprintf("%sh %sm", num(r.Hours), num(r.Minutes))
	case Scalar:
		switch tag {
		case HeartRate:
			return num(r.Value) + " bpm"
		case Steps:
			return num(r.Value) + " steps"
		}
		unit := r.Unit
		if unit == "" {
			unit = CodeFor(tag).Unit
		}
		return num(r.Value) + " " + unit
	}
	return "No data available"
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
