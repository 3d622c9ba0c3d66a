package inventory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/inventory"
)

func chain(deltas ...int64) []*entity.StockMovement {
	var out []*entity.StockMovement
	var qty int64
	for i, d := range deltas {
		out = append(out, &entity.StockMovement{
			ID:             "m" + string(rune('a'+i)),
			Seq:            int64(i + 1),
			QuantityBefore: qty,
			QuantityDelta:  d,
			QuantityAfter:  qty + d,
		})
		qty += d
	}
	return out
}

func TestProject_CadenaValida(t *testing.T) {
	qty, err := inventory.Project(chain(10, -3, 5, -12))
	require.NoError(t, err)
	assert.Equal(t, int64(0), qty)
}

func TestProject_SinMovimientosEsCero(t *testing.T) {
	qty, err := inventory.Project(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), qty)
}

func TestProject_EslabonRoto(t *testing.T) {
	movs := chain(10, -3)
	movs[1].QuantityBefore = 9
	movs[1].QuantityAfter = 6

	_, err := inventory.Project(movs)
	assert.ErrorIs(t, err, domain.ErrLedgerCorrupted)
}

func TestProject_SumaIncorrecta(t *testing.T) {
	movs := chain(10)
	movs[0].QuantityAfter = 11

	_, err := inventory.Project(movs)
	assert.ErrorIs(t, err, domain.ErrLedgerCorrupted)
}

func TestProject_HuecoEnSeq(t *testing.T) {
	movs := chain(1, 1)
	movs[1].Seq = 3

	_, err := inventory.Project(movs)
	assert.ErrorIs(t, err, domain.ErrLedgerCorrupted)
}

func TestCostCalculator_PromedioPonderado(t *testing.T) {
	// 10 u a 100 + 10 u a 200 = 150
	got := inventory.CostCalculator(10, decimal.NewFromInt(100), 10, decimal.NewFromInt(200))
	assert.True(t, got.Equal(decimal.NewFromInt(150)), "got %s", got)
}

func TestCostCalculator_StockNegativoSoloCuentaEntrada(t *testing.T) {
	got := inventory.CostCalculator(-4, decimal.NewFromInt(999), 5, decimal.NewFromInt(20))
	assert.True(t, got.Equal(decimal.NewFromInt(20)), "got %s", got)
}
