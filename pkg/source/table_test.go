package source

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raterudder/solarprep/pkg/types"
)

func TestDecodeInstallations(t *testing.T) {
	t.Run("Basic", func(t *testing.T) {
		in := "installationId,timezone\n1001,America/Chicago\n1002, America/Denver\n"
		insts, err := DecodeInstallations(strings.NewReader(in))
		require.NoError(t, err)
		assert.Equal(t, []types.Installation{
			{ID: "1001", Timezone: "America/Chicago"},
			{ID: "1002", Timezone: "America/Denver"},
		}, insts)
	})

	t.Run("UnnamedHeader", func(t *testing.T) {
		in := "a,b\n1001,America/New_York\n"
		insts, err := DecodeInstallations(strings.NewReader(in))
		require.NoError(t, err)
		require.Len(t, insts, 1)
		assert.Equal(t, "America/New_York", insts[0].Timezone)
	})

	t.Run("Coordinates", func(t *testing.T) {
		in := "timezone,id,latitude,longitude\n" +
			"America/Denver,2001,39.7392,-104.9903\n" +
			"America/Chicago,2002,,\n"
		insts, err := DecodeInstallations(strings.NewReader(in))
		require.NoError(t, err)
		require.Len(t, insts, 2)
		assert.Equal(t, "2001", insts[0].ID)
		require.NotNil(t, insts[0].Coordinate)
		assert.Equal(t, types.Coordinate{Latitude: 39.7392, Longitude: -104.9903}, *insts[0].Coordinate)
		assert.Nil(t, insts[1].Coordinate)
	})

	t.Run("InvalidTimezone", func(t *testing.T) {
		in := "installationId,timezone\n1001,Mars/Olympus\n"
		_, err := DecodeInstallations(strings.NewReader(in))
		assert.ErrorContains(t, err, "1001")
	})

	t.Run("InvalidLatitude", func(t *testing.T) {
		in := "id,timezone,lat,lng\n1001,America/Chicago,north,-87\n"
		_, err := DecodeInstallations(strings.NewReader(in))
		assert.ErrorContains(t, err, "latitude")
	})

	t.Run("Empty", func(t *testing.T) {
		insts, err := DecodeInstallations(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, insts)
	})
}

func TestInstallationIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.csv")
	require.NoError(t, WriteInstallationIDs(path, []string{"1001", "1003"}))

	ids, err := LoadInstallationIDs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"1001", "1003"}, ids)

	_, err = LoadInstallationIDs(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestInstallationSet(t *testing.T) {
	dir := t.TempDir()
	tzPath := filepath.Join(dir, "timezones.csv")
	coord := types.Coordinate{Latitude: 40.1, Longitude: -75.2}
	require.NoError(t, WriteInstallations(tzPath, []types.Installation{
		{ID: "1001", Timezone: "America/Chicago"},
		{ID: "1002", Timezone: "America/New_York", Coordinate: &coord},
	}))

	t.Run("All", func(t *testing.T) {
		insts, err := NewInstallationSet(tzPath, "").Load()
		require.NoError(t, err)
		require.Len(t, insts, 2)
		assert.Equal(t, &coord, insts[1].Coordinate)
	})

	t.Run("Restricted", func(t *testing.T) {
		listPath := filepath.Join(dir, "ids.csv")
		require.NoError(t, WriteInstallationIDs(listPath, []string{"1002", "1003"}))

		insts, err := NewInstallationSet(tzPath, listPath).Load()
		require.NoError(t, err)
		assert.Equal(t, []types.Installation{
			{ID: "1002", Timezone: "America/New_York", Coordinate: &coord},
			{ID: "1003"},
		}, insts)
	})

	t.Run("MissingTable", func(t *testing.T) {
		_, err := NewInstallationSet(filepath.Join(dir, "nope.csv"), "").Load()
		assert.Error(t, err)
	})
}
