package measurement

// Kind identifies a logical sensor channel.
type Kind int

const (
	Accelerometer Kind = iota
	Gravity
	Gyroscope
	Attitude
	Magnetometer

	numKinds
)

var kindNames = [...]string{"accelerometer", "gravity", "gyroscope", "attitude", "magnetometer"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Kinds returns every channel kind in declaration order.
func Kinds() []Kind {
	ks := make([]Kind, numKinds)
	for i := range ks {
		ks[i] = Kind(i)
	}
	return ks
}

// Variant selects between calibrated and uncalibrated sensor output.
// Uncalibrated measurements carry bias estimates; calibrated ones do not.
type Variant int

const (
	Calibrated Variant = iota
	Uncalibrated
)

func (v Variant) String() string {
	if v == Uncalibrated {
		return "uncalibrated"
	}
	return "calibrated"
}

// Accuracy is the hardware-reported accuracy classification of a sample.
// AccuracyUnspecified means the hardware did not report one.
type Accuracy int

const (
	AccuracyUnspecified Accuracy = iota
	AccuracyUnreliable
	AccuracyLow
	AccuracyMedium
	AccuracyHigh
)

var accuracyNames = [...]string{"unspecified", "unreliable", "low", "medium", "high"}

func (a Accuracy) String() string {
	if a < 0 || int(a) >= len(accuracyNames) {
		return "unknown"
	}
	return accuracyNames[a]
}

// Measurement is a single reading on one channel.
//
// X, Y, Z hold the channel's physical values (m/s², rad/s, µT depending on
// Kind). For Attitude the four quaternion components live in X, Y, Z, W.
// Bias components are meaningful only when HasBias is set, which happens
// for uncalibrated variants; a calibrated sample reports the bias as
// absent, not as zero.
//
// Timestamp is a monotonic hardware timestamp in nanoseconds.
type Measurement struct {
	Kind    Kind    `json:"kind"`
	Variant Variant `json:"variant"`

	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w,omitempty"` // attitude quaternion scalar component

	BiasX   float64 `json:"bias_x,omitempty"`
	BiasY   float64 `json:"bias_y,omitempty"`
	BiasZ   float64 `json:"bias_z,omitempty"`
	HasBias bool    `json:"has_bias,omitempty"`

	Timestamp int64    `json:"timestamp_ns"`
	Accuracy  Accuracy `json:"accuracy,omitempty"`
}

// Copy returns an independent instance with identical field values.
func (m *Measurement) Copy() *Measurement {
	c := *m
	return &c
}

// CopyFrom overwrites m in place with src's field values.
// src is left unmodified.
func (m *Measurement) CopyFrom(src *Measurement) {
	*m = *src
}
