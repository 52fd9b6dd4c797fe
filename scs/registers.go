package scs

// Register represents a cell in the SCSCL memory table.
type Register struct {
	Address  byte
	Size     int // 1 or 2 bytes
	ReadOnly bool
}

// SCSCL memory table, per the SCS Series Memory Table Analysis sheet.
// EEPROM registers persist across power cycles; SRAM registers are volatile.
var (
	// EEPROM
	RegVersion       = Register{Address: 0x03, Size: 2, ReadOnly: true}
	RegID            = Register{Address: 0x05, Size: 1}
	RegBaudRate      = Register{Address: 0x06, Size: 1}
	RegMinAngleLimit = Register{Address: 0x09, Size: 2}
	RegMaxAngleLimit = Register{Address: 0x0B, Size: 2}
	RegCWDead        = Register{Address: 0x1A, Size: 1}
	RegCCWDead       = Register{Address: 0x1B, Size: 1}

	// SRAM (control)
	RegTorqueEnable = Register{Address: 0x28, Size: 1}
	RegGoalPosition = Register{Address: 0x2A, Size: 2}
	RegGoalTime     = Register{Address: 0x2C, Size: 2}
	RegGoalSpeed    = Register{Address: 0x2E, Size: 2}
	RegLock         = Register{Address: 0x30, Size: 1}

	// SRAM (feedback)
	RegPresentPosition = Register{Address: 0x38, Size: 2, ReadOnly: true}
	RegPresentSpeed    = Register{Address: 0x3A, Size: 2, ReadOnly: true}
	RegPresentLoad     = Register{Address: 0x3C, Size: 2, ReadOnly: true}
	RegPresentVoltage  = Register{Address: 0x3E, Size: 1, ReadOnly: true}
	RegPresentTemp     = Register{Address: 0x3F, Size: 1, ReadOnly: true}
	RegMoving          = Register{Address: 0x42, Size: 1, ReadOnly: true}
	RegPresentCurrent  = Register{Address: 0x45, Size: 2, ReadOnly: true}
)

// Command value limits.
const (
	MaxPosition      = 1023
	MaxPositionSpeed = 1500
	MinMotorSpeed    = -1023
	MaxMotorSpeed    = 1023
)

// Angle-limit parameter blocks written to RegMinAngleLimit to switch
// operating modes. Min=1/Max=1023 selects position-servo mode; min=max=0 is
// the documented way to put an SCSCL controller into continuous rotation.
var (
	servoModeLimits = []byte{0x00, 0x01, 0x03, 0xFF}
	motorModeLimits = []byte{0x00, 0x00, 0x00, 0x00}
)
