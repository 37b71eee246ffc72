package gesture

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gesture_lock/internal/imu"
)

func c(x, y, z float64) imu.Calibrated { return imu.Calibrated{X: x, Y: y, Z: z} }

func TestTrim(t *testing.T) {
	tests := []struct {
		name string
		in   Sequence
		want Sequence
	}{
		{"empty", Sequence{}, Sequence{}},
		{"all zero", Sequence{c(0, 0, 0), c(0, 0, 0)}, Sequence{}},
		{"below epsilon", Sequence{c(1e-6, -1e-6, 0), c(0, 0, 0)}, Sequence{}},
		{"leading and trailing",
			Sequence{c(0, 0, 0), c(1, 0, 0), c(0, 0, 0), c(0, 2, 0), c(0, 0, 0)},
			Sequence{c(1, 0, 0), c(0, 0, 0), c(0, 2, 0)}},
		{"single axis keeps sample", Sequence{c(0, 0, 0.5)}, Sequence{c(0, 0, 0.5)}},
		{"nothing to trim", Sequence{c(1, 1, 1), c(2, 2, 2)}, Sequence{c(1, 1, 1), c(2, 2, 2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Trim(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Trim() mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(got, Trim(got)); diff != "" {
				t.Errorf("Trim not idempotent (-first +second):\n%s", diff)
			}
		})
	}
}

func TestTrim_EndpointsNonZero(t *testing.T) {
	got := Trim(Sequence{c(0, 0, 0), c(0, -3, 0), c(4, 0, 0), c(0, 0, 0)})
	require.Len(t, got, 2)
	assert.False(t, nearZero(got[0]))
	assert.False(t, nearZero(got[len(got)-1]))
}

func TestSequenceAxis(t *testing.T) {
	s := Sequence{c(1, 2, 3), c(4, 5, 6)}
	assert.Equal(t, []float64{1, 4}, s.Axis(0))
	assert.Equal(t, []float64{2, 5}, s.Axis(1))
	assert.Equal(t, []float64{3, 6}, s.Axis(2))
}

func TestTravelDistance(t *testing.T) {
	s := Sequence{c(100, -100, 0), c(100, -100, 0)}
	d := TravelDistance(s, 50*time.Millisecond)
	// 100 °/s × 0.0175 rad/° × 1 m × 0.05 s, twice
	assert.InDelta(t, 0.175, d[0], 1e-9)
	assert.InDelta(t, 0.175, d[1], 1e-9)
	assert.Zero(t, d[2])
}

func TestStore_FirstEnrollWins(t *testing.T) {
	s := NewStore()
	_, ok := s.Reference()
	require.False(t, ok)

	first := Sequence{c(1, 2, 3)}
	require.NoError(t, s.Enroll(first))
	assert.True(t, s.Enrolled())

	err := s.Enroll(Sequence{c(9, 9, 9), c(8, 8, 8)})
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)

	ref, ok := s.Reference()
	require.True(t, ok)
	assert.Equal(t, first, ref)
}

func TestStore_ReferenceIsIsolated(t *testing.T) {
	s := NewStore()
	enrolled := Sequence{c(1, 2, 3), c(4, 5, 6)}
	require.NoError(t, s.Enroll(enrolled))
	enrolled[0] = c(0, 0, 0)

	ref, ok := s.Reference()
	require.True(t, ok)
	ref[1] = c(9, 9, 9)

	again, _ := s.Reference()
	assert.Equal(t, Sequence{c(1, 2, 3), c(4, 5, 6)}, again)
}

func TestStore_RejectsEmpty(t *testing.T) {
	s := NewStore()
	assert.ErrorIs(t, s.Enroll(nil), ErrEmptySequence)
	assert.ErrorIs(t, s.Enroll(Sequence{}), ErrEmptySequence)
	assert.False(t, s.Enrolled())
}

type memBlobs struct {
	data    map[uint32][]byte
	failErr error
}

func (m *memBlobs) StoreBlob(addr uint32, b []byte) error {
	if m.failErr != nil {
		return m.failErr
	}
	if m.data == nil {
		m.data = map[uint32][]byte{}
	}
	m.data[addr] = append([]byte(nil), b...)
	return nil
}

func (m *memBlobs) LoadBlob(addr uint32, n int) ([]byte, error) {
	b, ok := m.data[addr]
	if !ok {
		return nil, errors.New("not found")
	}
	if n > len(b) {
		n = len(b)
	}
	return b[:n], nil
}

func TestStore_PersistRestore(t *testing.T) {
	src := NewStore()
	ref := Sequence{c(1.5, -2.25, 0.125), c(10, 20, -30)}
	require.NoError(t, src.Enroll(ref))

	bs := &memBlobs{}
	require.NoError(t, src.Persist(bs, 0x08040000))

	dst := NewStore()
	require.NoError(t, dst.Restore(bs, 0x08040000))
	got, ok := dst.Reference()
	require.True(t, ok)
	if diff := cmp.Diff(ref, got); diff != "" {
		t.Errorf("restored reference mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_PersistErrors(t *testing.T) {
	assert.ErrorIs(t, NewStore().Persist(&memBlobs{}, 0), ErrNoReference)

	s := NewStore()
	require.NoError(t, s.Enroll(Sequence{c(1, 1, 1)}))
	boom := errors.New("flash busy")
	assert.ErrorIs(t, s.Persist(&memBlobs{failErr: boom}, 0), boom)

	assert.Error(t, NewStore().Restore(&memBlobs{}, 0))
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode([]byte("nope"))
	assert.Error(t, err)

	blob := Encode(Sequence{c(1, 2, 3), c(4, 5, 6)})
	_, err = Decode(blob[:len(blob)-1])
	assert.Error(t, err)
}
