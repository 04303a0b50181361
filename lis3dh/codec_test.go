package lis3dh

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

var allDataRates = []DataRate{
	DataRate1Hz, DataRate10Hz, DataRate25Hz, DataRate50Hz,
	DataRate100Hz, DataRate200Hz, DataRate400Hz,
}

var allRanges = []Range{Range2G, Range4G, Range8G, Range16G}

func TestEncodeEnableControlRegisters(t *testing.T) {
	for _, rate := range allDataRates {
		for _, fullScale := range allRanges {
			regs, err := encodeEnable(SensorConfig{DataRate: rate, Range: fullScale})
			test.That(t, err, test.ShouldBeNil)

			// All three axes always enabled.
			test.That(t, regs.ctrl1&0b111, test.ShouldEqual, byte(0b111))
			test.That(t, regs.ctrl1>>4, test.ShouldEqual, dataRateCodes[rate])
			// High-resolution mode always forced on.
			test.That(t, regs.ctrl4&0b1000, test.ShouldEqual, byte(0b1000))
			test.That(t, regs.ctrl4>>4, test.ShouldEqual, rangeCodes[fullScale])

			// Without a detection mode, everything else stays zero.
			test.That(t, regs.ctrl2, test.ShouldEqual, byte(0))
			test.That(t, regs.ctrl3, test.ShouldEqual, byte(0))
			test.That(t, regs.ctrl5, test.ShouldEqual, byte(0))
			test.That(t, regs.int1Cfg, test.ShouldEqual, byte(0))
			test.That(t, regs.int1Ths, test.ShouldEqual, byte(0))
			test.That(t, regs.int1Duration, test.ShouldEqual, byte(0))
			test.That(t, regs.needsReferenceRead, test.ShouldBeFalse)
		}
	}
}

func TestEncodeEnableRejectsBadParameters(t *testing.T) {
	t.Run("unsupported data rate", func(t *testing.T) {
		_, err := encodeEnable(SensorConfig{DataRate: 3, Range: Range2G})
		test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)
	})

	t.Run("unsupported range", func(t *testing.T) {
		_, err := encodeEnable(SensorConfig{DataRate: DataRate100Hz, Range: 6})
		test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)
	})

	t.Run("negative threshold", func(t *testing.T) {
		_, err := encodeEnable(SensorConfig{
			DataRate:           DataRate100Hz,
			Range:              Range2G,
			DetectWakeUp:       true,
			DetectionThreshold: -1,
		})
		test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)
	})

	t.Run("non-positive free-fall duration", func(t *testing.T) {
		_, err := encodeEnable(SensorConfig{
			DataRate:       DataRate100Hz,
			Range:          Range2G,
			DetectFreeFall: true,
		})
		test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)
	})
}

func TestEncodeEnableConflictingDetection(t *testing.T) {
	// Both modes together must fail for every rate/range combination.
	for _, rate := range allDataRates {
		for _, fullScale := range allRanges {
			_, err := encodeEnable(SensorConfig{
				DataRate:         rate,
				Range:            fullScale,
				DetectFreeFall:   true,
				DetectWakeUp:     true,
				FreeFallDuration: time.Second,
			})
			test.That(t, errors.Is(err, ErrConflictingDetection), test.ShouldBeTrue)
		}
	}
}

func TestEncodeEnableFreeFall(t *testing.T) {
	regs, err := encodeEnable(SensorConfig{
		DataRate:         DataRate100Hz,
		Range:            Range2G,
		DetectFreeFall:   true,
		FreeFallDuration: 300 * time.Millisecond,
	})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, regs.ctrl3, test.ShouldEqual, byte(0x40))
	// 300 ms at 100 Hz is 30 sample intervals.
	test.That(t, regs.int1Duration, test.ShouldEqual, byte(30))
	// AND mode, all axes below threshold.
	test.That(t, regs.int1Cfg, test.ShouldEqual, byte(0b1001_0101))
	// Default threshold of 372 mg at 16 mg/LSB.
	test.That(t, regs.int1Ths, test.ShouldEqual, byte(23))
	test.That(t, regs.ctrl2, test.ShouldEqual, byte(0))
	test.That(t, regs.needsReferenceRead, test.ShouldBeFalse)
}

func TestEncodeEnableWakeUp(t *testing.T) {
	regs, err := encodeEnable(SensorConfig{
		DataRate:     DataRate50Hz,
		Range:        Range2G,
		DetectWakeUp: true,
	})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, regs.ctrl2, test.ShouldEqual, byte(0b0000_1001))
	test.That(t, regs.ctrl3, test.ShouldEqual, byte(0x40))
	// Movement recognition, all axes above threshold.
	test.That(t, regs.int1Cfg, test.ShouldEqual, byte(0b0010_1010))
	// Default threshold of 64 mg at 16 mg/LSB.
	test.That(t, regs.int1Ths, test.ShouldEqual, byte(4))
	test.That(t, regs.int1Duration, test.ShouldEqual, byte(0))
	test.That(t, regs.needsReferenceRead, test.ShouldBeTrue)
}

func TestEncodeEnableLatch(t *testing.T) {
	t.Run("latch set with detection active", func(t *testing.T) {
		regs, err := encodeEnable(SensorConfig{
			DataRate:       DataRate100Hz,
			Range:          Range2G,
			DetectWakeUp:   true,
			LatchInterrupt: true,
		})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, regs.ctrl5, test.ShouldEqual, byte(0b0000_1000))
	})

	t.Run("latch ignored without detection", func(t *testing.T) {
		regs, err := encodeEnable(SensorConfig{
			DataRate:       DataRate100Hz,
			Range:          Range2G,
			LatchInterrupt: true,
		})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, regs.ctrl5, test.ShouldEqual, byte(0))
	})
}

func TestEncodeDuration(t *testing.T) {
	t.Run("whole seconds at 1 Hz", func(t *testing.T) {
		counts, err := encodeDuration(DataRate1Hz, 2500*time.Millisecond)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, counts, test.ShouldEqual, byte(2))

		_, err = encodeDuration(DataRate1Hz, 900*time.Millisecond)
		test.That(t, errors.Is(err, ErrIncompatibleRateDuration), test.ShouldBeTrue)
	})

	t.Run("milliseconds scaled by rate", func(t *testing.T) {
		counts, err := encodeDuration(DataRate200Hz, 25*time.Millisecond)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, counts, test.ShouldEqual, byte(5))

		counts, err = encodeDuration(DataRate10Hz, 400*time.Millisecond)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, counts, test.ShouldEqual, byte(4))
	})

	t.Run("400 Hz uses the 4/10 scaling", func(t *testing.T) {
		counts, err := encodeDuration(DataRate400Hz, 10*time.Millisecond)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, counts, test.ShouldEqual, byte(4))

		// 1 ms at 400 Hz truncates to zero intervals.
		_, err = encodeDuration(DataRate400Hz, time.Millisecond)
		test.That(t, errors.Is(err, ErrIncompatibleRateDuration), test.ShouldBeTrue)
	})

	t.Run("duration register is 7 bits", func(t *testing.T) {
		_, err := encodeDuration(DataRate100Hz, 2*time.Second)
		test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)
	})
}

func TestThresholdEncoding(t *testing.T) {
	for _, tc := range []struct {
		fullScale   Range
		thresholdMg int
		want        byte
	}{
		{Range2G, 372, 23},
		{Range4G, 372, 46},
		{Range8G, 372, 6},
		{Range16G, 372, 2},
		{Range2G, 64, 4},
	} {
		regs, err := encodeEnable(SensorConfig{
			DataRate:           DataRate100Hz,
			Range:              tc.fullScale,
			DetectWakeUp:       true,
			DetectionThreshold: tc.thresholdMg,
		})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, regs.int1Ths, test.ShouldEqual, tc.want)
	}
}

func TestDecodeAcceleration(t *testing.T) {
	t.Run("one 12-bit count at 2g", func(t *testing.T) {
		// The raw reading occupies the top 12 of 16 bits, so a raw value of
		// 16 is one high-resolution count: 1 mg, or 9.80665/1000 m/s².
		v := decodeAcceleration(16, 16, 16, Range2G)
		test.That(t, v.X, test.ShouldAlmostEqual, 0.00980665, 1e-12)
		test.That(t, v.Y, test.ShouldAlmostEqual, 0.00980665, 1e-12)
		test.That(t, v.Z, test.ShouldAlmostEqual, 0.00980665, 1e-12)
	})

	t.Run("range sensitivity", func(t *testing.T) {
		base := decodeAcceleration(16, 0, 0, Range2G).X
		test.That(t, decodeAcceleration(16, 0, 0, Range4G).X, test.ShouldAlmostEqual, 2*base, 1e-12)
		test.That(t, decodeAcceleration(16, 0, 0, Range8G).X, test.ShouldAlmostEqual, 4*base, 1e-12)
		// 16g is deliberately non-linear relative to the others.
		test.That(t, decodeAcceleration(16, 0, 0, Range16G).X, test.ShouldAlmostEqual, 12*base, 1e-12)
	})

	t.Run("linear in the raw counts", func(t *testing.T) {
		v1 := decodeAcceleration(100, 200, 300, Range4G)
		v3 := decodeAcceleration(300, 600, 900, Range4G)
		test.That(t, v3.X, test.ShouldAlmostEqual, 3*v1.X, 1e-12)
		test.That(t, v3.Y, test.ShouldAlmostEqual, 3*v1.Y, 1e-12)
		test.That(t, v3.Z, test.ShouldAlmostEqual, 3*v1.Z, 1e-12)
	})

	t.Run("negative counts", func(t *testing.T) {
		v := decodeAcceleration(-16, 0, 0, Range2G)
		test.That(t, v.X, test.ShouldAlmostEqual, -0.00980665, 1e-12)
	})
}

func TestDecodeInterruptSource(t *testing.T) {
	t.Run("single bits", func(t *testing.T) {
		source := decodeInterruptSource(0b000001)
		test.That(t, source, test.ShouldResemble, InterruptSource{XLow: true})

		source = decodeInterruptSource(0b100000)
		test.That(t, source, test.ShouldResemble, InterruptSource{ZHigh: true})
	})

	t.Run("all 64 combinations decode independently", func(t *testing.T) {
		for raw := byte(0); raw < 64; raw++ {
			source := decodeInterruptSource(raw)
			test.That(t, source.XLow, test.ShouldEqual, raw&0b000001 != 0)
			test.That(t, source.XHigh, test.ShouldEqual, raw&0b000010 != 0)
			test.That(t, source.YLow, test.ShouldEqual, raw&0b000100 != 0)
			test.That(t, source.YHigh, test.ShouldEqual, raw&0b001000 != 0)
			test.That(t, source.ZLow, test.ShouldEqual, raw&0b010000 != 0)
			test.That(t, source.ZHigh, test.ShouldEqual, raw&0b100000 != 0)
			test.That(t, source.Active(), test.ShouldEqual, raw != 0)
		}
	})
}
