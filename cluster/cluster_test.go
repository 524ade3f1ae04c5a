package cluster_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"fat32disk/blockio"
	"fat32disk/cluster"
)

func newStream(t *testing.T, sectors int) *cluster.Stream {
	t.Helper()
	data := make([]byte, sectors*blockio.SectorSize)
	device := blockio.New(bytesextra.NewReadWriteSeeker(data))
	return cluster.New(device, 4, 8)
}

func TestToSectorRejectsReservedClusters(t *testing.T) {
	s := newStream(t, 200)
	_, err := s.ToSector(0)
	require.Error(t, err)
	_, err = s.ToSector(1)
	require.Error(t, err)
}

func TestToSectorMapsClusterTwoToDataStart(t *testing.T) {
	s := newStream(t, 200)
	sector, err := s.ToSector(2)
	require.NoError(t, err)
	require.Equal(t, uint32(4), sector)
}

func TestWriteThenReadClusterRoundTrips(t *testing.T) {
	s := newStream(t, 200)

	want := make([]byte, s.BytesPerCluster())
	for i := range want {
		want[i] = byte(i * 7 % 256)
	}

	require.NoError(t, s.WriteCluster(3, want))

	got := make([]byte, s.BytesPerCluster())
	require.NoError(t, s.ReadCluster(3, got))
	require.Equal(t, want, got)
}

func TestWriteClusterRejectsWrongSizedBuffer(t *testing.T) {
	s := newStream(t, 200)
	err := s.WriteCluster(2, make([]byte, 10))
	require.Error(t, err)
}

func TestClearClusterZeroesData(t *testing.T) {
	s := newStream(t, 200)

	dirty := make([]byte, s.BytesPerCluster())
	for i := range dirty {
		dirty[i] = 0xFF
	}
	require.NoError(t, s.WriteCluster(2, dirty))
	require.NoError(t, s.ClearCluster(2))

	got := make([]byte, s.BytesPerCluster())
	require.NoError(t, s.ReadCluster(2, got))
	for _, b := range got {
		require.Equal(t, byte(0), b)
	}
}
