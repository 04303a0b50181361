package lis3dh

// The chip has two possible I2C addresses, selected by the SDO/SA0 pin:
// strapped low (or floating) it uses 0x18, strapped high it uses 0x19.
const (
	DefaultI2CAddress   byte = 0x18
	AlternateI2CAddress byte = 0x19
)

// Register map, from the LIS3DH datasheet.
const (
	RegWhoAmI       byte = 0x0F
	RegCtrl1        byte = 0x20
	RegCtrl2        byte = 0x21
	RegCtrl3        byte = 0x22
	RegCtrl4        byte = 0x23
	RegCtrl5        byte = 0x24
	RegReference    byte = 0x26
	RegOutXLow      byte = 0x28
	RegInt1Cfg      byte = 0x30
	RegInt1Src      byte = 0x31
	RegInt1Ths      byte = 0x32
	RegInt1Duration byte = 0x33
)

// WHO_AM_I always reads back this value on a real LIS3DH.
const deviceID byte = 0x33

// Setting the high bit of a register address makes multi-byte reads
// auto-increment through consecutive registers.
const autoIncrement byte = 0x80

// CTRL_REG1: low 3 bits enable the X, Y and Z axes; the high nibble holds
// the output data rate code.
const ctrl1AxesXYZ byte = 0b111

// CTRL_REG2: route high-pass filtered data to the outputs and to interrupt
// generator 1. Required for wake-up detection so static gravity does not
// mask motion on the Z axis.
const ctrl2HighPassIA1 byte = 0b0000_1001

// CTRL_REG3: route interrupt generator 1 to the INT1 pin.
const ctrl3IA1OnInt1 byte = 0b0100_0000

// CTRL_REG4: force high-resolution (12-bit) mode.
const ctrl4HighResolution byte = 0b1000

// CTRL_REG5: latch the interrupt until INT1_SRC is read.
const ctrl5LatchInt1 byte = 0b0000_1000

// INT1_CFG bits.
const (
	int1CfgXLow  byte = 1 << 0
	int1CfgXHigh byte = 1 << 1
	int1CfgYLow  byte = 1 << 2
	int1CfgYHigh byte = 1 << 3
	int1CfgZLow  byte = 1 << 4
	int1CfgZHigh byte = 1 << 5
	// AND-combination of the enabled axis conditions.
	int1CfgAndMode byte = 1 << 7
)
