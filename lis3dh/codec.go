package lis3dh

import (
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Errors returned while encoding a sensor configuration or talking to the
// chip. Bus errors from the underlying I2C transport are passed through
// unchanged; nothing here retries.
var (
	// ErrUnexpectedDevice means WHO_AM_I did not identify an LIS3DH.
	ErrUnexpectedDevice = errors.New("unexpected device: WHO_AM_I mismatch")
	// ErrInvalidParameter means a rate, range, threshold or duration argument
	// is outside the values the chip supports.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrConflictingDetection means free-fall and wake-up detection were both
	// requested; the single interrupt generator can only serve one.
	ErrConflictingDetection = errors.New("free-fall and wake-up detection are mutually exclusive")
	// ErrIncompatibleRateDuration means the free-fall duration truncates to
	// zero sample intervals at the configured data rate.
	ErrIncompatibleRateDuration = errors.New("free-fall duration is too short for the configured data rate")
)

// DataRate is an output data rate the chip supports, in Hz.
type DataRate int

// The seven data rates selectable in normal and high-resolution modes.
const (
	DataRate1Hz   DataRate = 1
	DataRate10Hz  DataRate = 10
	DataRate25Hz  DataRate = 25
	DataRate50Hz  DataRate = 50
	DataRate100Hz DataRate = 100
	DataRate200Hz DataRate = 200
	DataRate400Hz DataRate = 400
)

// CTRL_REG1 rate codes, keyed by data rate. Code 0 is power-down, which is
// written directly by Disable rather than encoded here.
var dataRateCodes = map[DataRate]byte{
	DataRate1Hz:   1,
	DataRate10Hz:  2,
	DataRate25Hz:  3,
	DataRate50Hz:  4,
	DataRate100Hz: 5,
	DataRate200Hz: 6,
	DataRate400Hz: 7,
}

func (rate DataRate) period() time.Duration {
	return time.Second / time.Duration(rate)
}

// Range is a full-scale measurement range the chip supports, in ±g.
type Range int

// The four selectable full-scale ranges.
const (
	Range2G  Range = 2
	Range4G  Range = 4
	Range8G  Range = 8
	Range16G Range = 16
)

// CTRL_REG4 full-scale codes, keyed by range.
var rangeCodes = map[Range]byte{
	Range2G:  0,
	Range4G:  1,
	Range8G:  2,
	Range16G: 3,
}

// Sensitivity of one raw count in milli-g, keyed by range. The 16g entry is
// not linear with the others; that is a datasheet quirk, not a typo.
var rangeSensitivityMg = map[Range]int{
	Range2G:  1,
	Range4G:  2,
	Range8G:  4,
	Range16G: 12,
}

// INT1_THS granularity divisor, keyed by range.
var rangeThresholdDivisor = map[Range]int{
	Range2G:  16,
	Range4G:  8,
	Range8G:  62,
	Range16G: 186,
}

// Default detection thresholds in milli-g.
const (
	defaultFreeFallThresholdMg = 372
	defaultWakeUpThresholdMg   = 64
)

// SensorConfig is everything Enable needs to configure the chip: sampling
// parameters plus, optionally, one of the two motion-detection modes.
type SensorConfig struct {
	DataRate DataRate
	Range    Range

	// DetectFreeFall and DetectWakeUp are mutually exclusive.
	DetectFreeFall bool
	DetectWakeUp   bool

	// FreeFallDuration is how long all three axes must stay below the
	// threshold before the interrupt fires. Required for free-fall detection.
	FreeFallDuration time.Duration

	// DetectionThreshold is in milli-g. Zero selects the mode's default
	// (372 mg for free-fall, 64 mg for wake-up).
	DetectionThreshold int

	// LatchInterrupt keeps the interrupt asserted until INT1_SRC is read.
	LatchInterrupt bool
}

// registerConfig is the encoded form of a SensorConfig: the exact bytes
// Enable writes to the chip, in write order.
type registerConfig struct {
	ctrl1, ctrl2, ctrl3, ctrl4, ctrl5 byte
	int1Ths, int1Duration, int1Cfg    byte

	// needsReferenceRead marks that the REFERENCE register must be read once
	// after configuration to reset the high-pass filter's baseline. The read
	// matters for its side effect only.
	needsReferenceRead bool
}

// encodeEnable translates a SensorConfig into register bytes. It performs
// all parameter validation; no register is written if it fails.
func encodeEnable(cfg SensorConfig) (registerConfig, error) {
	rateCode, ok := dataRateCodes[cfg.DataRate]
	if !ok {
		return registerConfig{}, errors.Wrapf(ErrInvalidParameter, "unsupported data rate %d Hz", cfg.DataRate)
	}
	rangeCode, ok := rangeCodes[cfg.Range]
	if !ok {
		return registerConfig{}, errors.Wrapf(ErrInvalidParameter, "unsupported measurement range %d g", cfg.Range)
	}
	if cfg.DetectFreeFall && cfg.DetectWakeUp {
		return registerConfig{}, ErrConflictingDetection
	}
	if cfg.DetectionThreshold < 0 {
		return registerConfig{}, errors.Wrapf(ErrInvalidParameter,
			"detection threshold must be non-negative, got %d mg", cfg.DetectionThreshold)
	}

	regs := registerConfig{
		ctrl1: rateCode<<4 | ctrl1AxesXYZ,
		ctrl4: rangeCode<<4 | ctrl4HighResolution,
	}

	if cfg.DetectFreeFall {
		if cfg.FreeFallDuration <= 0 {
			return registerConfig{}, errors.Wrapf(ErrInvalidParameter,
				"free-fall duration must be positive, got %v", cfg.FreeFallDuration)
		}
		duration, err := encodeDuration(cfg.DataRate, cfg.FreeFallDuration)
		if err != nil {
			return registerConfig{}, err
		}
		regs.ctrl3 |= ctrl3IA1OnInt1
		regs.int1Duration = duration
		// Fire only while X, Y and Z are all below the threshold at once.
		regs.int1Cfg = int1CfgAndMode | int1CfgXLow | int1CfgYLow | int1CfgZLow
	}

	if cfg.DetectWakeUp {
		regs.ctrl2 |= ctrl2HighPassIA1
		regs.ctrl3 |= ctrl3IA1OnInt1
		// Movement recognition: any axis above the threshold.
		regs.int1Cfg = int1CfgXHigh | int1CfgYHigh | int1CfgZHigh
		regs.needsReferenceRead = true
	}

	if cfg.DetectFreeFall || cfg.DetectWakeUp {
		thresholdMg := cfg.DetectionThreshold
		if thresholdMg == 0 {
			if cfg.DetectFreeFall {
				thresholdMg = defaultFreeFallThresholdMg
			} else {
				thresholdMg = defaultWakeUpThresholdMg
			}
		}
		regs.int1Ths = byte(thresholdMg / rangeThresholdDivisor[cfg.Range])
		if cfg.LatchInterrupt {
			regs.ctrl5 |= ctrl5LatchInt1
		}
	}

	return regs, nil
}

// encodeDuration converts a free-fall duration into INT1_DURATION sample
// counts at the given rate. At 1 Hz the register counts whole seconds; at
// 400 Hz the milliseconds are scaled by 4 before dividing to stay within
// the register's range.
func encodeDuration(rate DataRate, d time.Duration) (byte, error) {
	var counts int64
	switch rate {
	case DataRate1Hz:
		counts = int64(d / time.Second)
	case DataRate400Hz:
		counts = d.Milliseconds() * 4 / 10
	default:
		counts = d.Milliseconds() * int64(rate) / 1000
	}
	if counts == 0 {
		return 0, errors.Wrapf(ErrIncompatibleRateDuration, "%v at %d Hz", d, rate)
	}
	if counts > 0x7F {
		return 0, errors.Wrapf(ErrInvalidParameter,
			"free-fall duration %v does not fit the duration register at %d Hz", d, rate)
	}
	return byte(counts), nil
}

// One raw count in m/s² before range scaling: standard gravity, converted
// from milli-g, divided by 16 because high-resolution readings occupy the
// top 12 of 16 bits.
const countToMetersPerSecSq = 9.80665 / 1000.0 / 16.0

// decodeAcceleration converts raw two's-complement axis counts into m/s²
// at the given range.
func decodeAcceleration(rawX, rawY, rawZ int16, fullScale Range) r3.Vector {
	factor := float64(rangeSensitivityMg[fullScale]) * countToMetersPerSecSq
	return r3.Vector{
		X: float64(rawX) * factor,
		Y: float64(rawY) * factor,
		Z: float64(rawZ) * factor,
	}
}

// InterruptSource reports which axis conditions raised the interrupt. On
// real hardware, reading INT1_SRC clears a latched interrupt, so a source
// is returned at most once per event.
type InterruptSource struct {
	XLow, XHigh bool
	YLow, YHigh bool
	ZLow, ZHigh bool
}

func decodeInterruptSource(raw byte) InterruptSource {
	return InterruptSource{
		XLow:  raw&int1CfgXLow != 0,
		XHigh: raw&int1CfgXHigh != 0,
		YLow:  raw&int1CfgYLow != 0,
		YHigh: raw&int1CfgYHigh != 0,
		ZLow:  raw&int1CfgZLow != 0,
		ZHigh: raw&int1CfgZHigh != 0,
	}
}

// Active reports whether any axis condition is set.
func (s InterruptSource) Active() bool {
	return s.XLow || s.XHigh || s.YLow || s.YHigh || s.ZLow || s.ZHigh
}
