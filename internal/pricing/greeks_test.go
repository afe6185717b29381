package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensitivitiesReferenceScenario(t *testing.T) {
	spec := ContractSpec{Spot: 100, Strike: 100, Time: 0.25, Rate: 0.05, Kind: Call}

	res, err := Sensitivities(spec, 0.20)
	require.NoError(t, err)

	// d1 = 0.175: Φ(d1) = 0.56946, S·√T·φ(d1) = 19.644
	assert.InDelta(t, 0.56946, res.Delta, 1e-4)
	assert.InDelta(t, 19.644, res.Vega, 1e-3)

	d, err := Delta(spec, 0.20)
	require.NoError(t, err)
	v, err := Vega(spec, 0.20)
	require.NoError(t, err)
	assert.Equal(t, res.Delta, d)
	assert.Equal(t, res.Vega, v)

	spec.Kind = Put
	d, err = Delta(spec, 0.20)
	require.NoError(t, err)
	assert.InDelta(t, 0.56946-1, d, 1e-4)

	putVega, err := Vega(spec, 0.20)
	require.NoError(t, err)
	assert.Equal(t, v, putVega)
}

func TestDeltaBounds(t *testing.T) {
	for _, s := range []float64{1, 50, 100, 150, 1e4} {
		for _, k := range []float64{1, 80, 100, 120, 1e4} {
			for _, tm := range []float64{1.0 / 365, 0.25, 5} {
				for _, r := range []float64{-0.02, 0, 0.1} {
					for _, sigma := range []float64{1e-4, 0.2, 1, 4} {
						call := ContractSpec{Spot: s, Strike: k, Time: tm, Rate: r, Kind: Call}
						put := call
						put.Kind = Put

						dc, err := Delta(call, sigma)
						require.NoError(t, err)
						dp, err := Delta(put, sigma)
						require.NoError(t, err)

						if dc < 0 || dc > 1 {
							t.Fatalf("call delta %v out of [0,1] for S=%v K=%v T=%v r=%v sigma=%v", dc, s, k, tm, r, sigma)
						}
						if dp < -1 || dp > 0 {
							t.Fatalf("put delta %v out of [-1,0] for S=%v K=%v T=%v r=%v sigma=%v", dp, s, k, tm, r, sigma)
						}
					}
				}
			}
		}
	}
}

func TestVegaNonNegativeAndVanishesAwayFromMoney(t *testing.T) {
	atm, err := Vega(ContractSpec{Spot: 100, Strike: 100, Time: 1, Rate: 0.01, Kind: Call}, 0.3)
	require.NoError(t, err)

	prev := atm
	for _, k := range []float64{150, 300, 1000, 1e5} {
		v, err := Vega(ContractSpec{Spot: 100, Strike: k, Time: 1, Rate: 0.01, Kind: Call}, 0.3)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, prev, "vega should shrink as strike %v moves out of the money", k)
		prev = v
	}
	assert.Less(t, prev, 1e-12)

	deepITM, err := Vega(ContractSpec{Spot: 100, Strike: 1e-3, Time: 1, Rate: 0.01, Kind: Put}, 0.3)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deepITM, 0.0)
	assert.Less(t, deepITM, 1e-12)
}

func TestDeltaRejectsUnknownKind(t *testing.T) {
	spec := ContractSpec{Spot: 100, Strike: 100, Time: 0.25, Rate: 0.05, Kind: OptionKind(7)}

	_, err := Delta(spec, 0.2)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = Sensitivities(spec, 0.2)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSensitivitiesRejectDegenerateInput(t *testing.T) {
	tests := []struct {
		name  string
		spec  ContractSpec
		sigma float64
	}{
		{"zero sigma", ContractSpec{Spot: 100, Strike: 100, Time: 0.25, Kind: Call}, 0},
		{"zero time", ContractSpec{Spot: 100, Strike: 100, Time: 0, Kind: Call}, 0.2},
		{"zero spot", ContractSpec{Spot: 0, Strike: 100, Time: 0.25, Kind: Put}, 0.2},
		{"negative strike", ContractSpec{Spot: 100, Strike: -1, Time: 0.25, Kind: Put}, 0.2},
		{"NaN sigma", ContractSpec{Spot: 100, Strike: 100, Time: 0.25, Kind: Put}, math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Delta(tt.spec, tt.sigma)
			require.ErrorIs(t, err, ErrInvalidInput)
			_, err = Vega(tt.spec, tt.sigma)
			require.ErrorIs(t, err, ErrInvalidInput)
			_, err = Sensitivities(tt.spec, tt.sigma)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}
