// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gyro

import "fmt"

// L3GD20-class register addresses.
const (
	RegWhoAmI    = 0x0F
	RegCtrl1     = 0x20 // ODR, bandwidth, power, axis enable
	RegCtrl2     = 0x21 // high-pass filter
	RegCtrl3     = 0x22 // interrupt routing
	RegCtrl4     = 0x23 // full-scale selection
	RegCtrl5     = 0x24 // FIFO / filter enable
	RegStatus    = 0x27
	RegOutXL     = 0x28
	RegOutXH     = 0x29
	RegOutYL     = 0x2A
	RegOutYH     = 0x2B
	RegOutZL     = 0x2C
	RegOutZH     = 0x2D
	RegFIFOCtrl  = 0x2E
	RegFIFOSrc   = 0x2F
	RegInt1Cfg   = 0x30
	RegInt1Src   = 0x31
	RegInt1THSXH = 0x32
	RegInt1THSXL = 0x33
	RegInt1THSYH = 0x34
	RegInt1THSYL = 0x35
	RegInt1THSZH = 0x36
	RegInt1THSZL = 0x37
	RegInt1Dur   = 0x38
)

// Control bits.
const (
	PowerOn  = 0x0F // normal mode, X/Y/Z enabled
	PowerOff = 0x00

	Int2DataReady = 0x08 // route data-ready to DRDY/INT2

	// SPI address flags.
	ReadFlag          = 0x80
	AutoIncrementFlag = 0x40
)

// Rate is an output data rate / bandwidth code written to CTRL_REG1.
type Rate byte

const (
	ODR100Cutoff12_5 Rate = 0x00
	ODR100Cutoff25   Rate = 0x10
	ODR200Cutoff12_5 Rate = 0x40
	ODR200Cutoff25   Rate = 0x50
	ODR200Cutoff50   Rate = 0x60
	ODR200Cutoff70   Rate = 0x70
	ODR400Cutoff20   Rate = 0x80
	ODR400Cutoff25   Rate = 0x90
	ODR400Cutoff50   Rate = 0xA0
	ODR400Cutoff110  Rate = 0xB0
	ODR800Cutoff30   Rate = 0xC0
	ODR800Cutoff35   Rate = 0xD0
	ODR800Cutoff50   Rate = 0xE0
	ODR800Cutoff110  Rate = 0xF0
)

// Hz returns the output data rate in Hz.
func (r Rate) Hz() int {
	switch r >> 6 {
	case 0:
		return 100
	case 1:
		return 200
	case 2:
		return 400
	default:
		return 800
	}
}

func (r Rate) String() string {
	return fmt.Sprintf("%dHz(0x%02X)", r.Hz(), byte(r))
}

// ParseRate maps a config name such as "200_50" (ODR Hz _ cutoff Hz) to a Rate.
func ParseRate(s string) (Rate, error) {
	rates := map[string]Rate{
		"100_12.5": ODR100Cutoff12_5,
		"100_25":   ODR100Cutoff25,
		"200_12.5": ODR200Cutoff12_5,
		"200_25":   ODR200Cutoff25,
		"200_50":   ODR200Cutoff50,
		"200_70":   ODR200Cutoff70,
		"400_20":   ODR400Cutoff20,
		"400_25":   ODR400Cutoff25,
		"400_50":   ODR400Cutoff50,
		"400_110":  ODR400Cutoff110,
		"800_30":   ODR800Cutoff30,
		"800_35":   ODR800Cutoff35,
		"800_50":   ODR800Cutoff50,
		"800_110":  ODR800Cutoff110,
	}
	r, ok := rates[s]
	if !ok {
		return 0, fmt.Errorf("unknown output data rate %q", s)
	}
	return r, nil
}

// Scale is a full-scale range code written to CTRL_REG4.
type Scale byte

const (
	Scale245DPS     Scale = 0x00
	Scale500DPS     Scale = 0x10
	Scale2000DPS    Scale = 0x20
	Scale2000DPSAlt Scale = 0x30
)

// Sensitivities in °/s per count.
const (
	Sensitivity245DPS  = 0.00875
	Sensitivity500DPS  = 0.0175
	Sensitivity2000DPS = 0.07
)

// Sensitivity returns the °/s-per-count factor for s.
func (s Scale) Sensitivity() (float64, bool) {
	switch s {
	case Scale245DPS:
		return Sensitivity245DPS, true
	case Scale500DPS:
		return Sensitivity500DPS, true
	case Scale2000DPS, Scale2000DPSAlt:
		return Sensitivity2000DPS, true
	}
	return 0, false
}

// ParseScale maps a range in °/s (245, 500, 2000) to a Scale.
func ParseScale(dps int) (Scale, error) {
	switch dps {
	case 245:
		return Scale245DPS, nil
	case 500:
		return Scale500DPS, nil
	case 2000:
		return Scale2000DPS, nil
	}
	return 0, fmt.Errorf("%w: %d dps (want 245, 500 or 2000)", ErrUnknownScale, dps)
}

// Conversion from angular rate to tangential velocity.
const (
	DegreesToRadians = 0.0175
	MountRadius      = 1 // metres from the pivot
)

// LinearVelocity converts an angular rate in °/s to m/s at MountRadius.
func LinearVelocity(dps float64) float64 {
	return dps * DegreesToRadians * MountRadius
}
