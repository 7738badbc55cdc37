package risk

// Tally counts labels across a run.
type Tally struct {
	Total    int `json:"total" yaml:"total"`
	High     int `json:"high" yaml:"high"`
	Moderate int `json:"moderate" yaml:"moderate"`
	Low      int `json:"low" yaml:"low"`
}

// Count builds a Tally from labeled results.
func Count(items []Labeled) Tally {
	var t Tally
	for _, it := range items {
		t.Add(it.Label)
	}
	return t
}

func (t *Tally) Add(l Label) {
	t.Total++
	switch l {
	case High:
		t.High++
	case Moderate:
		t.Moderate++
	default:
		t.Low++
	}
}

// DetectionRate is the percentage of studies flagged High or Moderate.
func (t Tally) DetectionRate() float64 {
	if t.Total == 0 {
		return 0
	}
	return 100 * float64(t.High+t.Moderate) / float64(t.Total)
}

// Share returns the percentage of studies carrying label l.
func (t Tally) Share(l Label) float64 {
	if t.Total == 0 {
		return 0
	}
	var n int
	switch l {
	case High:
		n = t.High
	case Moderate:
		n = t.Moderate
	default:
		n = t.Low
	}
	return 100 * float64(n) / float64(t.Total)
}
