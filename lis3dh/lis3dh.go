//go:build linux

// Package lis3dh implements the movementsensor interface for the ST LIS3DH
// three-axis accelerometer. The datasheet for this chip is at
// https://www.st.com/resource/en/datasheet/lis3dh.pdf
//
// We support reading acceleration off the chip in high-resolution mode at
// any of its seven data rates and four full-scale ranges, plus the chip's
// two motion-detection modes on interrupt generator 1: free-fall (all axes
// below a threshold for a minimum duration) and wake-up (any axis above a
// threshold after high-pass filtering). Detection events are counted by
// polling the read-to-clear INT1_SRC register and surface in Readings.
//
// The chip has two possible I2C addresses, selected by the SDO/SA0 pin:
//   - strapped low or floating, it uses the default address of 0x18
//   - strapped high, it uses the alternate address of 0x19
//
// If you use the alternate address, set "use_alt_i2c_address" to true in
// this component's configuration.
package lis3dh

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	geo "github.com/kellydunn/golang-geo"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/rdk/components/board/genericlinux/buses"
	"go.viam.com/rdk/components/movementsensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"
)

// Model for the ST LIS3DH movement sensor.
var Model = resource.NewModel("viam", "st", "lis3dh")

// Config is used to configure the attributes of the chip.
type Config struct {
	I2cBus                 string           `json:"i2c_bus"`
	UseAlternateI2CAddress bool             `json:"use_alt_i2c_address,omitempty"`
	DataRateHz             int              `json:"data_rate_hz,omitempty"`
	RangeG                 int              `json:"range_g,omitempty"`
	FreeFall               *DetectionConfig `json:"freefall,omitempty"`
	WakeUp                 *DetectionConfig `json:"wakeup,omitempty"`
}

// DetectionConfig configures one of the chip's motion-detection modes.
type DetectionConfig struct {
	ThresholdMg    int  `json:"threshold_mg,omitempty"`
	DurationMs     int  `json:"duration_ms,omitempty"`
	LatchInterrupt bool `json:"latch_interrupt,omitempty"`
}

// Validate ensures all parts of the config are valid, and then returns the
// list of things we depend on.
func (conf *Config) Validate(path string) ([]string, error) {
	if conf.I2cBus == "" {
		return nil, resource.NewConfigValidationFieldRequiredError(path, "i2c_bus")
	}
	if conf.FreeFall != nil && conf.WakeUp != nil {
		return nil, resource.NewConfigValidationError(path, ErrConflictingDetection)
	}
	if conf.DataRateHz != 0 {
		if _, ok := dataRateCodes[DataRate(conf.DataRateHz)]; !ok {
			return nil, resource.NewConfigValidationError(path,
				errors.Errorf("data_rate_hz must be one of 1, 10, 25, 50, 100, 200, 400; got %d", conf.DataRateHz))
		}
	}
	if conf.RangeG != 0 {
		if _, ok := rangeCodes[Range(conf.RangeG)]; !ok {
			return nil, resource.NewConfigValidationError(path,
				errors.Errorf("range_g must be one of 2, 4, 8, 16; got %d", conf.RangeG))
		}
	}
	return nil, nil
}

// sensorConfig translates the component attributes into the register-level
// configuration, filling in the defaults (100 Hz, ±2g).
func (conf *Config) sensorConfig() SensorConfig {
	cfg := SensorConfig{
		DataRate: DataRate100Hz,
		Range:    Range2G,
	}
	if conf.DataRateHz != 0 {
		cfg.DataRate = DataRate(conf.DataRateHz)
	}
	if conf.RangeG != 0 {
		cfg.Range = Range(conf.RangeG)
	}
	if conf.FreeFall != nil {
		cfg.DetectFreeFall = true
		cfg.FreeFallDuration = time.Duration(conf.FreeFall.DurationMs) * time.Millisecond
		cfg.DetectionThreshold = conf.FreeFall.ThresholdMg
		cfg.LatchInterrupt = conf.FreeFall.LatchInterrupt
	}
	if conf.WakeUp != nil {
		cfg.DetectWakeUp = true
		cfg.DetectionThreshold = conf.WakeUp.ThresholdMg
		cfg.LatchInterrupt = conf.WakeUp.LatchInterrupt
	}
	return cfg
}

func init() {
	resource.RegisterComponent(movementsensor.API, Model,
		resource.Registration[movementsensor.MovementSensor, *Config]{
			Constructor: newLis3dh,
		})
}

type lis3dh struct {
	resource.Named
	resource.AlwaysRebuild

	dev    *Device
	logger logging.Logger

	// Lock the mutex before reading or writing anything below it. The mutex
	// also serializes access to dev between the polling goroutine and Close.
	mu                 sync.Mutex
	linearAcceleration r3.Vector
	freeFallCount      int
	wakeUpCount        int

	// Stores the most recent error from the background goroutine. Overloaded
	// boards can have flaky I2C buses, so only report an error if at least 5
	// of the last 10 attempts have failed.
	err movementsensor.LastError

	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
}

func newLis3dh(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (movementsensor.MovementSensor, error) {
	return makeLis3dh(ctx, deps, conf, logger, nil)
}

// makeLis3dh is separate from newLis3dh so unit tests can pass in a mock
// I2C bus; a nil bus opens the real one named in the config.
func makeLis3dh(
	ctx context.Context,
	_ resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
	mockBus buses.I2C,
) (movementsensor.MovementSensor, error) {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}

	bus := mockBus
	if bus == nil {
		bus, err = buses.NewI2cBus(newConf.I2cBus)
		if err != nil {
			return nil, errors.Wrapf(err, "can't open I2C bus '%s' for LIS3DH sensor", newConf.I2cBus)
		}
	}

	address := DefaultI2CAddress
	if newConf.UseAlternateI2CAddress {
		address = AlternateI2CAddress
	}
	logger.CDebugf(ctx, "using address 0x%X for LIS3DH sensor", address)

	dev, err := NewDevice(ctx, bus, address, logger)
	if err != nil {
		return nil, err
	}

	sensorCfg := newConf.sensorConfig()
	if err := dev.Enable(ctx, sensorCfg); err != nil {
		return nil, errors.Wrap(err, "enabling LIS3DH sensor")
	}

	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	sensor := &lis3dh{
		Named:      conf.ResourceName().AsNamed(),
		dev:        dev,
		logger:     logger,
		err:        movementsensor.NewLastError(10, 5),
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
	}

	sensor.activeBackgroundWorkers.Add(1)
	utils.PanicCapturingGo(func() {
		defer sensor.activeBackgroundWorkers.Done()
		// Poll at the chip's own sample period; reading faster only returns
		// duplicate samples.
		timer := time.NewTicker(sensorCfg.DataRate.period())
		defer timer.Stop()

		for {
			select {
			case <-timer.C:
				sensor.pollChip(cancelCtx, sensorCfg)
			case <-cancelCtx.Done():
				return
			}
		}
	})

	return sensor, nil
}

// pollChip takes one acceleration sample and, when a detection mode is
// configured, drains the read-to-clear interrupt source register. Only the
// polling goroutine calls this, so the bus reads happen outside the mutex
// and the lock is held just long enough to publish the new state.
func (s *lis3dh) pollChip(ctx context.Context, cfg SensorConfig) {
	acceleration, err := s.dev.ReadAcceleration(ctx)
	s.err.Set(err)
	if err != nil {
		s.logger.CInfof(ctx, "error reading LIS3DH sensor: %s", err)
		return
	}

	var source InterruptSource
	if s.dev.Detecting() {
		source, err = s.dev.ReadInterruptSource(ctx)
		s.err.Set(err)
		if err != nil {
			s.logger.CInfof(ctx, "error reading LIS3DH interrupt source: %s", err)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.linearAcceleration = acceleration
	if source.Active() {
		if cfg.DetectFreeFall {
			s.freeFallCount++
		} else {
			s.wakeUpCount++
		}
	}
}

func (s *lis3dh) LinearAcceleration(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lastError := s.err.Get(); lastError != nil {
		return r3.Vector{}, lastError
	}
	return s.linearAcceleration, nil
}

func (s *lis3dh) LinearVelocity(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
	return r3.Vector{}, movementsensor.ErrMethodUnimplementedLinearVelocity
}

func (s *lis3dh) AngularVelocity(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error) {
	return spatialmath.AngularVelocity{}, movementsensor.ErrMethodUnimplementedAngularVelocity
}

func (s *lis3dh) CompassHeading(ctx context.Context, extra map[string]interface{}) (float64, error) {
	return 0, movementsensor.ErrMethodUnimplementedCompassHeading
}

func (s *lis3dh) Orientation(ctx context.Context, extra map[string]interface{}) (spatialmath.Orientation, error) {
	return nil, movementsensor.ErrMethodUnimplementedOrientation
}

func (s *lis3dh) Position(ctx context.Context, extra map[string]interface{}) (*geo.Point, float64, error) {
	return geo.NewPoint(0, 0), 0, movementsensor.ErrMethodUnimplementedPosition
}

func (s *lis3dh) Accuracy(ctx context.Context, extra map[string]interface{}) (*movementsensor.Accuracy, error) {
	return &movementsensor.Accuracy{}, movementsensor.ErrMethodUnimplementedAccuracy
}

func (s *lis3dh) Properties(ctx context.Context, extra map[string]interface{}) (*movementsensor.Properties, error) {
	return &movementsensor.Properties{
		LinearAccelerationSupported: true,
	}, nil
}

func (s *lis3dh) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	readings, err := movementsensor.DefaultAPIReadings(ctx, s, extra)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev.Detecting() {
		readings["freefall_count"] = s.freeFallCount
		readings["wakeup_count"] = s.wakeUpCount
	}
	return readings, nil
}

func (s *lis3dh) Close(ctx context.Context) error {
	s.cancelFunc()
	s.activeBackgroundWorkers.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev.Disable(ctx)
}
