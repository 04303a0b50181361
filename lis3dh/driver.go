package lis3dh

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/rdk/components/board/genericlinux/buses"
	"go.viam.com/rdk/logging"
)

const (
	// How long the chip needs after power-on before registers respond.
	powerUpDelay = 5 * time.Millisecond
	// How long the chip needs after reconfiguration before samples are valid.
	settleDelay = 7 * time.Millisecond
)

// Device is a synchronous register-level handle on one LIS3DH. It is owned
// by a single caller at a time; wrap it in a lock (as the movement sensor
// component does) before sharing it across goroutines.
type Device struct {
	bus    buses.I2C
	addr   byte
	logger logging.Logger

	// fullScale is set by the most recent successful Enable and scales every
	// subsequent acceleration read.
	fullScale Range
	enabled   bool
	detecting bool
}

// NewDevice waits out the chip's power-up time, then verifies WHO_AM_I
// before anything else is written. The device starts out disabled.
func NewDevice(ctx context.Context, bus buses.I2C, addr byte, logger logging.Logger) (*Device, error) {
	d := &Device{
		bus:    bus,
		addr:   addr,
		logger: logger,
	}

	if !goutils.SelectContextOrWait(ctx, powerUpDelay) {
		return nil, ctx.Err()
	}

	id, err := d.readByte(ctx, RegWhoAmI)
	if err != nil {
		return nil, errors.Wrapf(err, "can't read WHO_AM_I from I2C address 0x%X", addr)
	}
	if id != deviceID {
		return nil, errors.Wrapf(ErrUnexpectedDevice,
			"WHO_AM_I at address 0x%X returned 0x%X, want 0x%X", addr, id, deviceID)
	}
	return d, nil
}

// Enable validates and applies a sensor configuration, then waits for the
// chip to settle. On success the device samples at the configured rate and
// range and, if requested, raises INT1 under the configured condition. A
// bus failure partway through can leave the chip partially configured; the
// caller recovers by calling Enable again.
func (d *Device) Enable(ctx context.Context, cfg SensorConfig) error {
	regs, err := encodeEnable(cfg)
	if err != nil {
		return err
	}

	writes := []struct {
		register byte
		value    byte
	}{
		{RegCtrl1, regs.ctrl1},
		{RegCtrl2, regs.ctrl2},
		{RegCtrl3, regs.ctrl3},
		{RegCtrl4, regs.ctrl4},
		{RegCtrl5, regs.ctrl5},
		{RegInt1Ths, regs.int1Ths},
		{RegInt1Duration, regs.int1Duration},
		{RegInt1Cfg, regs.int1Cfg},
	}
	for _, w := range writes {
		if err := d.writeByte(ctx, w.register, w.value); err != nil {
			return errors.Wrapf(err, "writing register 0x%X", w.register)
		}
	}

	if regs.needsReferenceRead {
		// Read-side-effect only: this resets the high-pass filter's internal
		// reference level. The value itself is discarded.
		if _, err := d.readByte(ctx, RegReference); err != nil {
			return errors.Wrap(err, "resetting high-pass filter reference")
		}
	}

	if !goutils.SelectContextOrWait(ctx, settleDelay) {
		return ctx.Err()
	}

	d.fullScale = cfg.Range
	d.enabled = true
	d.detecting = cfg.DetectFreeFall || cfg.DetectWakeUp
	return nil
}

// EnableLatched is Enable with the interrupt latch forced on.
//
// Deprecated: set LatchInterrupt on the SensorConfig and call Enable.
func (d *Device) EnableLatched(ctx context.Context, cfg SensorConfig) error {
	cfg.LatchInterrupt = true
	return d.Enable(ctx, cfg)
}

// Disable powers the chip down. The register configuration is otherwise
// retained, so a later Enable starts from a clean slate anyway.
func (d *Device) Disable(ctx context.Context) error {
	if err := d.writeByte(ctx, RegCtrl1, 0); err != nil {
		return errors.Wrap(err, "powering down")
	}
	d.enabled = false
	d.detecting = false
	return nil
}

// Detecting reports whether the most recent Enable configured a motion
// detection mode, i.e. whether INT1_SRC is worth polling.
func (d *Device) Detecting() bool {
	return d.detecting
}

// ReadAcceleration performs a fresh read of all three axes and returns them
// in m/s². Nothing is cached between calls.
func (d *Device) ReadAcceleration(ctx context.Context) (r3.Vector, error) {
	if !d.enabled {
		return r3.Vector{}, errors.New("sensor is not enabled")
	}

	// One auto-incrementing block read covers OUT_X_L through OUT_Z_H.
	raw, err := d.readBlock(ctx, RegOutXLow|autoIncrement, 6)
	if err != nil {
		return r3.Vector{}, errors.Wrap(err, "reading acceleration registers")
	}
	if len(raw) < 6 {
		return r3.Vector{}, errors.Errorf("short acceleration read: got %d bytes, want 6", len(raw))
	}

	x := int16(binary.LittleEndian.Uint16(raw[0:2]))
	y := int16(binary.LittleEndian.Uint16(raw[2:4]))
	z := int16(binary.LittleEndian.Uint16(raw[4:6]))
	return decodeAcceleration(x, y, z, d.fullScale), nil
}

// ReadInterruptSource reads INT1_SRC and reports which axis conditions
// fired. The read also clears a latched interrupt on the hardware.
func (d *Device) ReadInterruptSource(ctx context.Context) (InterruptSource, error) {
	raw, err := d.readByte(ctx, RegInt1Src)
	if err != nil {
		return InterruptSource{}, errors.Wrap(err, "reading interrupt source")
	}
	return decodeInterruptSource(raw), nil
}

func (d *Device) readByte(ctx context.Context, register byte) (byte, error) {
	result, err := d.readBlock(ctx, register, 1)
	if err != nil {
		return 0, err
	}
	return result[0], nil
}

func (d *Device) readBlock(ctx context.Context, register byte, length uint8) ([]byte, error) {
	handle, err := d.bus.OpenHandle(d.addr)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := handle.Close(); err != nil {
			d.logger.Error(err)
		}
	}()

	return handle.ReadBlockData(ctx, register, length)
}

func (d *Device) writeByte(ctx context.Context, register, value byte) error {
	handle, err := d.bus.OpenHandle(d.addr)
	if err != nil {
		return err
	}
	defer func() {
		if err := handle.Close(); err != nil {
			d.logger.Error(err)
		}
	}()

	return handle.WriteByteData(ctx, register, value)
}
