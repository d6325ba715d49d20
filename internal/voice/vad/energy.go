package vad

import "math"

// EnergyEngine is the default Engine: a dBFS energy gate against
// Config.ThresholdDB, the same style of threshold comparison the
// wake-word listener's sensitivity mapping uses, just applied directly
// to a frame's RMS instead of to a sensitivity knob. A concrete ML-based
// Engine can replace it without the capture pipeline noticing, since
// everything downstream only depends on the Engine interface.
type EnergyEngine struct {
	thresholdDB     float64
	uncertaintyBand float64
}

// NewEnergyEngine builds an EnergyEngine gating at cfg.ThresholdDB, with
// a narrow band above the gate reported as Uncertain rather than Speech
// so the smoother has something to debounce instead of chattering
// directly between Silence and Speech on borderline frames.
func NewEnergyEngine(cfg Config) *EnergyEngine {
	return &EnergyEngine{thresholdDB: cfg.ThresholdDB, uncertaintyBand: 3}
}

// ProcessFrame classifies one frame by its RMS level in dBFS against the
// configured threshold.
func (e *EnergyEngine) ProcessFrame(frame []float32) Decision {
	db := dbfs(rms(frame))
	switch {
	case db >= e.thresholdDB+e.uncertaintyBand:
		return DecisionSpeech
	case db >= e.thresholdDB:
		return DecisionUncertain
	default:
		return DecisionSilence
	}
}

func rms(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range frame {
		sumSq += float64(s) * float64(s)
	}
	return math.Sqrt(sumSq / float64(len(frame)))
}

// dbfs converts a linear RMS amplitude (full scale = 1.0) to decibels.
// Silence (amplitude 0) maps to a very low floor rather than -Inf so
// callers can compare it against any realistic threshold.
func dbfs(amplitude float64) float64 {
	if amplitude <= 0 {
		return -120
	}
	return 20 * math.Log10(amplitude)
}
