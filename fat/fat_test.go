package fat_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"fat32disk/blockio"
	"fat32disk/cluster"
	"fat32disk/fat"
)

// sectorsPerCopy is deliberately fixed and independent of totalClusters in
// these tests (mirroring the real boot sector's fat_size_32, which doesn't
// shrink to match however many clusters happen to be in use) so a stride
// miscalculated from totalClusters instead of the real per-copy size would
// show up as a test failure rather than coincidentally matching.
const sectorsPerCopy = uint32(4)

func newTable(t *testing.T, totalClusters uint32) *fat.Table {
	t.Helper()
	data := make([]byte, int(2*sectorsPerCopy)*blockio.SectorSize+4096)
	device := blockio.New(bytesextra.NewReadWriteSeeker(data))
	return fat.New(device, 0, 2, sectorsPerCopy, totalClusters)
}

func TestWriteThenReadEntryRoundTrips(t *testing.T) {
	table := newTable(t, 64)

	require.NoError(t, table.WriteEntry(5, 0x0000000A))
	got, err := table.ReadEntry(5)
	require.NoError(t, err)
	require.Equal(t, uint32(0x0000000A), got)
}

func TestReadEntryBeyondTotalClustersReturnsEndOfChain(t *testing.T) {
	table := newTable(t, 64)

	got, err := table.ReadEntry(cluster.ID(1000))
	require.NoError(t, err)
	require.Equal(t, fat.EndOfChain, got)
}

func TestWriteEntryMirrorsAcrossBothCopies(t *testing.T) {
	table := newTable(t, 64)

	require.NoError(t, table.WriteEntry(10, fat.EndOfChain))
	require.NoError(t, table.VerifyMirrors())
}

// TestWriteEntryUsesRealPerCopyStrideNotDerivedFromTotalClusters pins the
// mirrored write to the real, fixed sectorsPerCopy stride. With only 4
// clusters, a stride derived from totalClusters (as opposed to the real
// on-disk fat_size_32 span) would land copy 1's write one sector past
// fatStart instead of sectorsPerCopy sectors past it.
func TestWriteEntryUsesRealPerCopyStrideNotDerivedFromTotalClusters(t *testing.T) {
	data := make([]byte, int(2*sectorsPerCopy)*blockio.SectorSize)
	device := blockio.New(bytesextra.NewReadWriteSeeker(data))
	table := fat.New(device, 0, 2, sectorsPerCopy, 4)

	require.NoError(t, table.WriteEntry(2, fat.EndOfChain))

	copyOneSector := make([]byte, blockio.SectorSize)
	require.NoError(t, device.ReadSector(sectorsPerCopy, copyOneSector))

	const entryOffset = 2 * 4 // cluster 2, 4 bytes per entry
	got := uint32(copyOneSector[entryOffset]) |
		uint32(copyOneSector[entryOffset+1])<<8 |
		uint32(copyOneSector[entryOffset+2])<<16 |
		uint32(copyOneSector[entryOffset+3])<<24

	require.Equal(t, fat.EndOfChain, got&0x0FFFFFFF,
		"copy 1 at the real fat_size_32 stride should hold the mirrored entry")
}

func TestWriteEntryReadsBackOnlyLow28Bits(t *testing.T) {
	table := newTable(t, 64)

	require.NoError(t, table.WriteEntry(7, 0xF0000005))
	got, err := table.ReadEntry(7)
	require.NoError(t, err)
	require.Equal(t, uint32(0x00000005), got)
}

func TestFindFirstFreeSkipsAllocatedClusters(t *testing.T) {
	table := newTable(t, 16)

	require.NoError(t, table.WriteEntry(2, fat.EndOfChain))
	require.NoError(t, table.WriteEntry(3, fat.EndOfChain))

	free, err := table.FindFirstFree()
	require.NoError(t, err)
	require.Equal(t, cluster.ID(4), free)
}

func TestFindFirstFreeReturnsZeroWhenFull(t *testing.T) {
	table := newTable(t, 4)

	for c := uint32(2); c < 4; c++ {
		require.NoError(t, table.WriteEntry(cluster.ID(c), fat.EndOfChain))
	}

	free, err := table.FindFirstFree()
	require.NoError(t, err)
	require.Equal(t, cluster.ID(0), free)
}

func TestWriteEntryRejectsOutOfRangeCluster(t *testing.T) {
	table := newTable(t, 4)
	err := table.WriteEntry(cluster.ID(999), fat.EndOfChain)
	require.Error(t, err)
}
