package sensors

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/relabs-tech/gesture_lock/internal/events"
	"github.com/relabs-tech/gesture_lock/internal/gyro"
	"github.com/relabs-tech/gesture_lock/internal/imu"
)

var whoAmI = conntest.IO{W: []byte{0x8F, 0x00}, R: []byte{0x00, 0xD4}}

func playback(ops ...conntest.IO) *spitest.Playback {
	return &spitest.Playback{Playback: conntest.Playback{Ops: append([]conntest.IO{whoAmI}, ops...), DontPanic: true}}
}

func TestL3GD20_ReadRaw(t *testing.T) {
	p := playback(conntest.IO{
		W: []byte{0xE8, 0, 0, 0, 0, 0, 0},
		R: []byte{0x00, 0x34, 0x12, 0xFF, 0xFF, 0x00, 0x80},
	})
	g, err := NewL3GD20("spitest", p, physic.MegaHertz)
	require.NoError(t, err)
	assert.Equal(t, byte(0xD4), g.ID())

	raw, err := g.ReadRaw()
	require.NoError(t, err)
	assert.Equal(t, imu.Raw{X: 0x1234, Y: -1, Z: -32768}, raw)
	require.NoError(t, g.Close())
}

func TestL3GD20_DriverConfigure(t *testing.T) {
	p := playback(
		conntest.IO{W: []byte{gyro.RegCtrl1, byte(gyro.ODR200Cutoff50) | gyro.PowerOn}},
		conntest.IO{W: []byte{gyro.RegCtrl3, gyro.Int2DataReady}},
		conntest.IO{W: []byte{gyro.RegCtrl4, byte(gyro.Scale500DPS)}},
		conntest.IO{W: []byte{gyro.RegCtrl1, gyro.PowerOff}},
	)
	g, err := NewL3GD20("spitest", p, physic.MegaHertz)
	require.NoError(t, err)

	d := gyro.NewDriver(g, -1)
	prof, err := d.Configure(gyro.ODR200Cutoff50, gyro.Scale500DPS)
	require.NoError(t, err)
	assert.Equal(t, 0.0175, prof.Sensitivity)
	require.NoError(t, d.Shutdown())
	require.NoError(t, g.Close(), "every expected transfer happened")
}

func TestL3GD20_ReadError(t *testing.T) {
	p := playback()
	g, err := NewL3GD20("spitest", p, physic.MegaHertz)
	require.NoError(t, err)
	_, err = g.ReadRaw()
	assert.Error(t, err)
}

func TestDumpRegisters(t *testing.T) {
	m := NewMockGyro(Wave)
	require.NoError(t, m.WriteRegister(gyro.RegCtrl4, 0x10))

	vals, err := DumpRegisters(m)
	require.NoError(t, err)
	require.Len(t, vals, len(L3GD20RegisterMap()))
	byName := map[string]byte{}
	for _, v := range vals {
		byName[v.Name] = v.Value
	}
	assert.Equal(t, byte(0xD4), byName["WHO_AM_I"])
	assert.Equal(t, byte(0x10), byName["CTRL_REG4"])
	assert.Contains(t, vals[0].String(), "WHO_AM_I")
}

func TestDataReadyLine(t *testing.T) {
	pin := &gpiotest.Pin{N: "DRDY", EdgesChan: make(chan gpio.Level)}
	sig := events.New().SensorDataReady

	line, err := NewDataReadyLine(pin, sig)
	require.NoError(t, err)
	assert.Equal(t, gpio.PullDown, pin.Pull())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		line.Run(ctx)
	}()

	pin.EdgesChan <- gpio.High
	wctx, wcancel := context.WithTimeout(context.Background(), time.Second)
	defer wcancel()
	require.NoError(t, sig.Wait(wctx))

	cancel()
	wg.Wait()
}

func TestDataReadyLine_Prime(t *testing.T) {
	pin := &gpiotest.Pin{N: "DRDY", EdgesChan: make(chan gpio.Level, 1)}
	sig := events.New().SensorDataReady
	line, err := NewDataReadyLine(pin, sig)
	require.NoError(t, err)

	line.Prime()
	assert.False(t, sig.Pending(), "low line raises nothing")

	require.NoError(t, pin.Out(gpio.High))
	line.Prime()
	assert.True(t, sig.Pending())
}

func TestMockGyro_Script(t *testing.T) {
	m := NewMockGyro(Wave)
	m.Noise = 0
	now := time.Unix(0, 0)
	m.now = func() time.Time { return now }

	raw, err := m.ReadRaw()
	require.NoError(t, err)
	assert.Equal(t, imu.Raw{}, raw, "powered down reads zero")

	require.NoError(t, m.WriteRegister(gyro.RegCtrl1, 0x6F))
	raw, _ = m.ReadRaw()
	assert.Equal(t, m.Bias, raw, "still during settle")

	now = now.Add(m.Settle + 375*time.Millisecond)
	raw, _ = m.ReadRaw()
	assert.InDelta(t, 3000+24, float64(raw.X), 1)

	now = now.Add(m.Duration)
	raw, _ = m.ReadRaw()
	assert.Equal(t, m.Bias, raw, "still after the gesture")
}

func TestMockGyro_CalibratesToZero(t *testing.T) {
	m := NewMockGyro(Wave)
	d := gyro.NewDriver(m, -1)
	_, err := d.Configure(gyro.ODR200Cutoff50, gyro.Scale500DPS)
	require.NoError(t, err)
	_, err = d.Calibrate()
	require.NoError(t, err)

	c, err := d.ReadCalibrated()
	require.NoError(t, err)
	assert.Equal(t, imu.Calibrated{}, c, "noise floor is gated out")
}

func TestRunMockDataReady(t *testing.T) {
	sig := events.New().SensorDataReady
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		RunMockDataReady(ctx, sig, gyro.ODR800Cutoff110)
	}()

	wctx, wcancel := context.WithTimeout(context.Background(), time.Second)
	defer wcancel()
	require.NoError(t, sig.Wait(wctx))
	cancel()
	<-done
}
