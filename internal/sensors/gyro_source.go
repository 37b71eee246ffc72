// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors talks to the gesture lock hardware: the L3GD20-class gyro
// on SPI, its data-ready line, and a simulated stand-in for bench work.
package sensors

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/gesture_lock/internal/gyro"
	"github.com/relabs-tech/gesture_lock/internal/imu"
)

// WHO_AM_I values of the parts this driver has been used with.
var knownIDs = map[byte]string{
	0xD3: "I3G4250D",
	0xD4: "L3GD20",
	0xD7: "L3GD20H",
}

// L3GD20 is a rotation sensor on an SPI bus, mode 3, 8-bit words.
type L3GD20 struct {
	name string
	mu   sync.Mutex
	port spi.Port
	conn spi.Conn
	id   byte
}

// OpenL3GD20 initialises the periph host and opens the gyro on spiDev.
func OpenL3GD20(spiDev string, speed physic.Frequency) (*L3GD20, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gyro: periph host init: %w", err)
	}
	p, err := spireg.Open(spiDev)
	if err != nil {
		return nil, fmt.Errorf("gyro: open SPI %s: %w", spiDev, err)
	}
	g, err := NewL3GD20(spiDev, p, speed)
	if err != nil {
		p.Close()
		return nil, err
	}
	return g, nil
}

// NewL3GD20 connects to the gyro through an already opened port.
func NewL3GD20(name string, p spi.Port, speed physic.Frequency) (*L3GD20, error) {
	c, err := p.Connect(speed, spi.Mode3, 8)
	if err != nil {
		return nil, fmt.Errorf("gyro: %s connect: %w", name, err)
	}
	g := &L3GD20{name: name, port: p, conn: c}

	id, err := g.ReadRegister(gyro.RegWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("gyro: %s WHO_AM_I: %w", name, err)
	}
	g.id = id
	if part, ok := knownIDs[id]; ok {
		log.Printf("gyro: %s is %s (WHO_AM_I=0x%02X)", name, part, id)
	} else {
		log.Printf("gyro: WARNING: %s returned unexpected WHO_AM_I 0x%02X", name, id)
	}
	return g, nil
}

// ID returns the WHO_AM_I value read when the device was opened.
func (g *L3GD20) ID() byte { return g.id }

// ReadRegister reads a single register.
func (g *L3GD20) ReadRegister(addr byte) (byte, error) {
	w := []byte{addr | gyro.ReadFlag, 0x00}
	r := make([]byte, len(w))
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.conn.Tx(w, r); err != nil {
		return 0, fmt.Errorf("gyro: %s read 0x%02X: %w", g.name, addr, err)
	}
	return r[1], nil
}

// WriteRegister writes a single register.
func (g *L3GD20) WriteRegister(addr, value byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.conn.Tx([]byte{addr, value}, nil); err != nil {
		return fmt.Errorf("gyro: %s write 0x%02X=0x%02X: %w", g.name, addr, value, err)
	}
	return nil
}

// ReadRaw burst-reads OUT_X_L..OUT_Z_H.
func (g *L3GD20) ReadRaw() (imu.Raw, error) {
	w := make([]byte, 7)
	w[0] = gyro.RegOutXL | gyro.ReadFlag | gyro.AutoIncrementFlag
	r := make([]byte, len(w))
	g.mu.Lock()
	err := g.conn.Tx(w, r)
	g.mu.Unlock()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("gyro: %s read sample: %w", g.name, err)
	}
	return imu.Raw{
		X: int16(binary.LittleEndian.Uint16(r[1:3])),
		Y: int16(binary.LittleEndian.Uint16(r[3:5])),
		Z: int16(binary.LittleEndian.Uint16(r[5:7])),
	}, nil
}

// Close releases the SPI port.
func (g *L3GD20) Close() error {
	if c, ok := g.port.(spi.PortCloser); ok {
		return c.Close()
	}
	return nil
}
