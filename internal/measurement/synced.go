package measurement

// Synced is a time-aligned snapshot across the configured channels: one
// reference timestamp plus, per channel, either the chosen measurement or
// nil when that channel has nothing valid at the reference time.
//
// The synchronizer owns a Synced instance until it is handed to the output
// listener and reuses it afterwards; listeners that keep data across calls
// must Copy it.
type Synced struct {
	Timestamp int64 `json:"timestamp_ns"` // reference timestamp, nanoseconds

	Accelerometer *Measurement `json:"accelerometer,omitempty"`
	Gravity       *Measurement `json:"gravity,omitempty"`
	Gyroscope     *Measurement `json:"gyroscope,omitempty"`
	Attitude      *Measurement `json:"attitude,omitempty"`
	Magnetometer  *Measurement `json:"magnetometer,omitempty"`
}

func (s *Synced) slot(k Kind) **Measurement {
	switch k {
	case Accelerometer:
		return &s.Accelerometer
	case Gravity:
		return &s.Gravity
	case Gyroscope:
		return &s.Gyroscope
	case Attitude:
		return &s.Attitude
	case Magnetometer:
		return &s.Magnetometer
	}
	return nil
}

// Get returns the measurement held for channel k, or nil if absent.
func (s *Synced) Get(k Kind) *Measurement {
	p := s.slot(k)
	if p == nil {
		return nil
	}
	return *p
}

// Set stores m as channel k's contribution. m may be nil to mark absence.
func (s *Synced) Set(k Kind, m *Measurement) {
	if p := s.slot(k); p != nil {
		*p = m
	}
}

// Clear resets the timestamp and marks every slot absent.
func (s *Synced) Clear() {
	*s = Synced{}
}

// Copy returns a deep copy safe to retain after the listener returns.
func (s *Synced) Copy() *Synced {
	c := &Synced{Timestamp: s.Timestamp}
	for _, k := range Kinds() {
		if m := s.Get(k); m != nil {
			c.Set(k, m.Copy())
		}
	}
	return c
}
