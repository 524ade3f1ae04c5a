package dirent_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fat32disk/dirent"
	"fat32disk/errors"
)

func TestFormatNameDotAndDotDot(t *testing.T) {
	dot := dirent.FormatName(".")
	require.Equal(t, byte('.'), dot[0])
	require.Equal(t, byte(' '), dot[1])

	dotdot := dirent.FormatName("..")
	require.Equal(t, byte('.'), dotdot[0])
	require.Equal(t, byte('.'), dotdot[1])
	require.Equal(t, byte(' '), dotdot[2])
}

func TestFormatNamePreservesCase(t *testing.T) {
	name := dirent.FormatName("MixedCase.txt")
	require.Equal(t, "MixedCas", trimTrailingSpace(name[0:8]))
	require.Equal(t, "txt", trimTrailingSpace(name[8:11]))
}

func TestFormatNameIsIdempotentOnNoExtension(t *testing.T) {
	a := dirent.FormatName("NOEXT")
	b := dirent.FormatName(trimTrailingSpace(a[:]))
	require.Equal(t, a, b)
}

func trimTrailingSpace(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return string(b[:end])
}

func TestPackUnpackRoundTrips(t *testing.T) {
	raw := dirent.Raw{
		Name:           dirent.FormatName("FOO.TXT"),
		AttributeFlags: dirent.AttrArchive,
		FileSize:       42,
	}
	raw.SetCluster(0x0102_0304)

	packed, err := dirent.Pack(&raw)
	require.NoError(t, err)
	require.Len(t, packed, dirent.Size)

	got, err := dirent.Unpack(packed)
	require.NoError(t, err)
	require.Equal(t, raw, got)
	require.Equal(t, uint32(0x0102_0304), got.Cluster())
}

func TestScanStopsAtEndOfDirectoryMarker(t *testing.T) {
	buf := make([]byte, dirent.Size*4)

	live := dirent.Raw{Name: dirent.FormatName("LIVE"), AttributeFlags: dirent.AttrArchive}
	require.NoError(t, dirent.WriteEntryAt(buf, 0, &live))
	buf[dirent.Size*1] = dirent.EndOfDirectory

	entries, err := dirent.Scan(buf)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, live.Name, entries[0].Raw.Name)
}

func TestScanSkipsTombstonedEntries(t *testing.T) {
	buf := make([]byte, dirent.Size*4)

	first := dirent.Raw{Name: dirent.FormatName("ONE"), AttributeFlags: dirent.AttrArchive}
	require.NoError(t, dirent.WriteEntryAt(buf, 0, &first))

	second := dirent.Raw{Name: dirent.FormatName("TWO"), AttributeFlags: dirent.AttrArchive}
	require.NoError(t, dirent.WriteEntryAt(buf, 1, &second))
	buf[dirent.Size*1] = dirent.Tombstone

	third := dirent.Raw{Name: dirent.FormatName("THREE"), AttributeFlags: dirent.AttrArchive}
	require.NoError(t, dirent.WriteEntryAt(buf, 2, &third))

	entries, err := dirent.Scan(buf)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, first.Name, entries[0].Raw.Name)
	require.Equal(t, third.Name, entries[1].Raw.Name)
}

func TestFindFreeSlotReturnsErrOutOfSpaceWhenFull(t *testing.T) {
	buf := make([]byte, dirent.Size*2)

	for i := 0; i < 2; i++ {
		e := dirent.Raw{Name: dirent.FormatName("X"), AttributeFlags: dirent.AttrArchive}
		e.Name[0] = byte('A' + i)
		require.NoError(t, dirent.WriteEntryAt(buf, i, &e))
	}

	_, err := dirent.FindFreeSlot(buf, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, errors.ErrOutOfSpace)
}

func TestFindCollisionDetectsExactNameMatch(t *testing.T) {
	buf := make([]byte, dirent.Size*2)
	e := dirent.Raw{Name: dirent.FormatName("DUP"), AttributeFlags: dirent.AttrArchive}
	require.NoError(t, dirent.WriteEntryAt(buf, 0, &e))

	collides, err := dirent.FindCollision(buf, dirent.FormatName("DUP"), nil)
	require.NoError(t, err)
	require.True(t, collides)

	collides, err = dirent.FindCollision(buf, dirent.FormatName("OTHER"), nil)
	require.NoError(t, err)
	require.False(t, collides)
}
