package bootsector_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"fat32disk/blockio"
	"fat32disk/bootsector"
	"fat32disk/errors"
)

func newDevice(t *testing.T) *blockio.Device {
	t.Helper()
	data := make([]byte, bootsector.ImageBytes)
	return blockio.New(bytesextra.NewReadWriteSeeker(data))
}

func TestWriteThenReadBackRoundTrips(t *testing.T) {
	device := newDevice(t)

	raw := bootsector.Build("TESTVOL")
	require.NoError(t, bootsector.WriteTo(device, &raw))

	got, err := bootsector.ReadFrom(device)
	require.NoError(t, err)
	require.Equal(t, raw, got)
}

func TestBuildProducesValidBootSector(t *testing.T) {
	raw := bootsector.Build("")
	require.NoError(t, bootsector.Validate(&raw))
	require.NoError(t, bootsector.ValidateAll(&raw))
}

func TestDeriveComputesGeometryFromOwnFields(t *testing.T) {
	raw := bootsector.Build("")
	geo := bootsector.Derive(&raw)

	require.Equal(t, uint32(bootsector.ReservedSectors), geo.FATStart)
	require.Equal(t, uint32(bootsector.ReservedSectors+bootsector.FATCount*bootsector.FATSize32), geo.DataStart)
	require.Equal(t, (uint32(bootsector.TotalSectors)-geo.DataStart)/bootsector.SectorsPerCluster, geo.TotalClusters)
}

func TestValidateRejectsBadSignature(t *testing.T) {
	raw := bootsector.Build("")
	raw.Signature = 0

	err := bootsector.Validate(&raw)
	require.Error(t, err)
	require.ErrorIs(t, err, errors.ErrInvalidImage)
}

func TestValidateRejectsWrongFSType(t *testing.T) {
	raw := bootsector.Build("")
	raw.FSType = [8]byte{'F', 'A', 'T', '1', '6', ' ', ' ', ' '}

	err := bootsector.Validate(&raw)
	require.Error(t, err)
	require.ErrorIs(t, err, errors.ErrInvalidImage)
}

func TestValidateAllReportsBothProblemsAtOnce(t *testing.T) {
	raw := bootsector.Build("")
	raw.Signature = 0
	raw.FSType = [8]byte{'N', 'O', 'P', 'E', ' ', ' ', ' ', ' '}

	err := bootsector.ValidateAll(&raw)
	require.Error(t, err)
	require.ErrorIs(t, err, errors.ErrInvalidImage)
	require.Contains(t, err.Error(), "signature")
	require.Contains(t, err.Error(), "fs_type")
}
