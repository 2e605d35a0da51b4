package account

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Indemos/Terminal-sub003/internal/instrument"
)

func TestPerformanceAccruesSequence(t *testing.T) {
	a := New("demo", 1000)
	prior := a.Performance.Value()

	for _, delta := range []float64{10, -3, 7, 0, -2} {
		a.Performance.Add(delta)
	}

	assert.InDelta(t, prior+12, a.Performance.Value(), 1e-9)
}

func TestPerformanceConcurrentAdds(t *testing.T) {
	a := New("demo", 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				a.Performance.Add(0.5)
			}
		}()
	}
	wg.Wait()

	assert.InDelta(t, 2500, a.Performance.Value(), 1e-9)
}

func TestInstrumentSnapshotsAreStable(t *testing.T) {
	spy := instrument.New("SPY")
	a := New("demo", 0, spy)

	before := a.Instruments()
	a.SetInstrument(instrument.New("QQQ"))

	// The old snapshot is untouched by the replacement.
	require.Len(t, before, 1)
	require.Len(t, a.Instruments(), 2)
	assert.Same(t, spy, a.Instrument("SPY"))
}
