package csvfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "Date,Time,Temperature_C,Dew_Point_C,Humidity_%,Wind,Speed_kmh,Gust_kmh,Pressure_hPa,Precip_Rate_mm,Precip_Accum_mm,UV,Solar_w/m2\n"

func TestRead(t *testing.T) {
	input := header +
		"2024/05/01,10:00 AM,18.5,10.2,60,NE,4,6,1013.2,0,1.2,3,420\n" +
		"\n" +
		"2024/05/01,10:05 AM,\"18,7\",10.1,59,N,5,7,1013.1,0,1.2,3,430\n"

	rows, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "2024/05/01", rows[0].Columns[domain.ColDate])
	assert.Equal(t, "NE", rows[0].Columns[domain.ColWindDirection])
	assert.Equal(t, "420", rows[0].Columns[domain.ColSolarRadiation])

	// The blank line still counts toward line numbers.
	assert.Equal(t, 4, rows[1].Line)
	assert.Equal(t, "18,7", rows[1].Columns[domain.ColTemperature])
}

func TestRead_ShortRowKeepsPresentColumns(t *testing.T) {
	rows, err := Read(strings.NewReader(header + "2024/05/01,10:00 AM,18.5\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, ok := rows[0].Columns[domain.ColUV]
	assert.False(t, ok)

	_, err = rows[0].Extract()
	require.Error(t, err)
}

func TestRead_StripsByteOrderMark(t *testing.T) {
	rows, err := Read(strings.NewReader("\ufeff" + header + "2024/05/01,10:00 AM,18.5,10.2,60,NE,4,6,1013.2,0,1.2,3,420\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024/05/01", rows[0].Columns[domain.ColDate])
}

func TestRead_Empty(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	require.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(header+"2024/05/01,10:00 AM,18.5,10.2,60,NE,4,6,1013.2,0,1.2,3,420\n"), 0o600))

	rows, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestReadFile_MockExport(t *testing.T) {
	rows, err := ReadFile(filepath.Join("..", "..", "..", "data", "mock", "station_export.csv"))
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
	for _, row := range rows {
		_, err := row.Extract()
		assert.NoError(t, err, "line %d", row.Line)
	}
}
