package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/example/slot-scheduler/internal/domain/reservation"
)

func TestWriteXLSX(t *testing.T) {
	h := reservation.History{
		{Date: "July 10", Time: "11:30am", Category: "11:30 and 2:30", FirstName: "Katya", LastName: "Bloomberg"},
		{Date: "July 10", Time: "5:30pm", Category: "5:30", FirstName: "Alice", LastName: "Moore"},
		{Date: "July 13", Time: "2:30pm", Category: "11:30 and 2:30", FirstName: "Katya", LastName: "Bloomberg"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, h))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"All", "Bloomberg, Katya", "Moore, Alice"}, f.GetSheetList())

	rows, err := f.GetRows("All")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, columns, rows[0])
	assert.Equal(t, []string{"July 13", "2:30pm", "11:30 and 2:30", "Katya", "Bloomberg"}, rows[3])

	rows, err = f.GetRows("Bloomberg, Katya")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "OBrien, Ann", sheetName("O/Brien, Ann"))
	assert.Len(t, []rune(sheetName("Wolfeschlegelsteinhausenbergerdorff, Hubert")), 31)
}
