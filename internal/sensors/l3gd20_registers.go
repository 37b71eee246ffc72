// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"github.com/relabs-tech/gesture_lock/internal/gyro"
)

// BitField describes one field inside a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo is register map metadata for the debug tools.
type RegisterInfo struct {
	Address     byte       `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R" or "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// RegisterValue is a register read back from the device.
type RegisterValue struct {
	RegisterInfo
	Value byte `json:"value"`
}

func (v RegisterValue) String() string {
	return fmt.Sprintf("0x%02X %-12s = 0x%02X  %08b", v.Address, v.Name, v.Value, v.Value)
}

// L3GD20RegisterMap returns the documented registers of the gyro.
func L3GD20RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: gyro.RegWhoAmI, Name: "WHO_AM_I", Description: "Device identification", Access: "R", Default: "0xD4"},

		// Control
		{Address: gyro.RegCtrl1, Name: "CTRL_REG1", Description: "Data rate, bandwidth, power mode, axis enable", Access: "RW", Default: "0x07",
			BitFields: []BitField{
				{Bits: "7:6", Name: "DR", Description: "Output data rate", Values: "0=95/100Hz, 1=190/200Hz, 2=380/400Hz, 3=760/800Hz"},
				{Bits: "5:4", Name: "BW", Description: "Bandwidth selection", Values: "cut-off depends on DR"},
				{Bits: "3", Name: "PD", Description: "Power down", Values: "0=Power-down, 1=Normal/sleep"},
				{Bits: "2", Name: "Zen", Description: "Z axis enable", Values: "0=Disabled, 1=Enabled"},
				{Bits: "1", Name: "Xen", Description: "X axis enable", Values: "0=Disabled, 1=Enabled"},
				{Bits: "0", Name: "Yen", Description: "Y axis enable", Values: "0=Disabled, 1=Enabled"},
			}},
		{Address: gyro.RegCtrl2, Name: "CTRL_REG2", Description: "High-pass filter", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "5:4", Name: "HPM", Description: "High-pass filter mode", Values: "0=Normal (reset reading), 1=Reference, 2=Normal, 3=Autoreset"},
				{Bits: "3:0", Name: "HPCF", Description: "High-pass cut-off", Values: "depends on DR"},
			}},
		{Address: gyro.RegCtrl3, Name: "CTRL_REG3", Description: "Interrupt routing", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "I1_Int1", Description: "Interrupt enable on INT1", Values: "0=Disabled, 1=Enabled"},
				{Bits: "6", Name: "I1_Boot", Description: "Boot status on INT1", Values: "0=Disabled, 1=Enabled"},
				{Bits: "5", Name: "H_Lactive", Description: "Interrupt active level on INT1", Values: "0=High, 1=Low"},
				{Bits: "4", Name: "PP_OD", Description: "Output mode", Values: "0=Push-pull, 1=Open drain"},
				{Bits: "3", Name: "I2_DRDY", Description: "Data ready on DRDY/INT2", Values: "0=Disabled, 1=Enabled"},
				{Bits: "2", Name: "I2_WTM", Description: "FIFO watermark on DRDY/INT2", Values: "0=Disabled, 1=Enabled"},
				{Bits: "1", Name: "I2_ORun", Description: "FIFO overrun on DRDY/INT2", Values: "0=Disabled, 1=Enabled"},
				{Bits: "0", Name: "I2_Empty", Description: "FIFO empty on DRDY/INT2", Values: "0=Disabled, 1=Enabled"},
			}},
		{Address: gyro.RegCtrl4, Name: "CTRL_REG4", Description: "Data format and full scale", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "BDU", Description: "Block data update", Values: "0=Continuous, 1=After MSB and LSB read"},
				{Bits: "6", Name: "BLE", Description: "Endianness", Values: "0=LSB at lower address, 1=MSB at lower address"},
				{Bits: "5:4", Name: "FS", Description: "Full scale", Values: "0=245dps, 1=500dps, 2=2000dps, 3=2000dps"},
				{Bits: "0", Name: "SIM", Description: "SPI mode", Values: "0=4-wire, 1=3-wire"},
			}},
		{Address: gyro.RegCtrl5, Name: "CTRL_REG5", Description: "FIFO and filter enable", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "BOOT", Description: "Reboot memory content", Values: "1=Reboot"},
				{Bits: "6", Name: "FIFO_EN", Description: "FIFO enable", Values: "0=Disabled, 1=Enabled"},
				{Bits: "4", Name: "HPen", Description: "High-pass filter enable", Values: "0=Disabled, 1=Enabled"},
			}},

		// Status and output
		{Address: gyro.RegStatus, Name: "STATUS_REG", Description: "Data available and overrun", Access: "R",
			BitFields: []BitField{
				{Bits: "7", Name: "ZYXOR", Description: "X, Y, Z overrun"},
				{Bits: "3", Name: "ZYXDA", Description: "X, Y, Z new data available"},
			}},
		{Address: gyro.RegOutXL, Name: "OUT_X_L", Description: "X rate low byte", Access: "R"},
		{Address: gyro.RegOutXH, Name: "OUT_X_H", Description: "X rate high byte", Access: "R"},
		{Address: gyro.RegOutYL, Name: "OUT_Y_L", Description: "Y rate low byte", Access: "R"},
		{Address: gyro.RegOutYH, Name: "OUT_Y_H", Description: "Y rate high byte", Access: "R"},
		{Address: gyro.RegOutZL, Name: "OUT_Z_L", Description: "Z rate low byte", Access: "R"},
		{Address: gyro.RegOutZH, Name: "OUT_Z_H", Description: "Z rate high byte", Access: "R"},

		// FIFO
		{Address: gyro.RegFIFOCtrl, Name: "FIFO_CTRL_REG", Description: "FIFO mode and watermark", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:5", Name: "FM", Description: "FIFO mode", Values: "0=Bypass, 1=FIFO, 2=Stream, 3=Stream-to-FIFO, 4=Bypass-to-Stream"},
				{Bits: "4:0", Name: "WTM", Description: "Watermark level"},
			}},
		{Address: gyro.RegFIFOSrc, Name: "FIFO_SRC_REG", Description: "FIFO status", Access: "R"},

		// INT1 threshold interrupt
		{Address: gyro.RegInt1Cfg, Name: "INT1_CFG", Description: "INT1 event configuration", Access: "RW", Default: "0x00"},
		{Address: gyro.RegInt1Src, Name: "INT1_SRC", Description: "INT1 source", Access: "R"},
		{Address: gyro.RegInt1THSXH, Name: "INT1_THS_XH", Description: "X threshold high byte", Access: "RW", Default: "0x00"},
		{Address: gyro.RegInt1THSXL, Name: "INT1_THS_XL", Description: "X threshold low byte", Access: "RW", Default: "0x00"},
		{Address: gyro.RegInt1THSYH, Name: "INT1_THS_YH", Description: "Y threshold high byte", Access: "RW", Default: "0x00"},
		{Address: gyro.RegInt1THSYL, Name: "INT1_THS_YL", Description: "Y threshold low byte", Access: "RW", Default: "0x00"},
		{Address: gyro.RegInt1THSZH, Name: "INT1_THS_ZH", Description: "Z threshold high byte", Access: "RW", Default: "0x00"},
		{Address: gyro.RegInt1THSZL, Name: "INT1_THS_ZL", Description: "Z threshold low byte", Access: "RW", Default: "0x00"},
		{Address: gyro.RegInt1Dur, Name: "INT1_DURATION", Description: "INT1 minimum event duration", Access: "RW", Default: "0x00"},
	}
}

// RegisterReader reads one register by address.
type RegisterReader interface {
	ReadRegister(addr byte) (byte, error)
}

// DumpRegisters reads every register in the map from dev.
func DumpRegisters(dev RegisterReader) ([]RegisterValue, error) {
	regs := L3GD20RegisterMap()
	out := make([]RegisterValue, 0, len(regs))
	for _, r := range regs {
		v, err := dev.ReadRegister(r.Address)
		if err != nil {
			return out, err
		}
		out = append(out, RegisterValue{RegisterInfo: r, Value: v})
	}
	return out, nil
}
