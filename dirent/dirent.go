// Package dirent implements 8.3 name normalization and the 32-byte FAT32
// directory entry: enumeration, free-slot search, and collision checking
// (spec §4.5).
package dirent

import (
	"encoding/binary"

	"github.com/go-restruct/restruct"

	"fat32disk/diag"
	"fat32disk/errors"
)

// Attribute bits, per spec §3.
const (
	AttrReadOnly  = 0x01
	AttrHidden    = 0x02
	AttrSystem    = 0x04
	AttrVolumeID  = 0x08
	AttrDirectory = 0x10
	AttrArchive   = 0x20
	AttrLongName  = 0x0F
)

// Sentinel values for byte 0 of the name field.
const (
	EndOfDirectory = 0x00
	Tombstone      = 0xE5
)

// Size is the fixed size of one packed directory entry.
const Size = 32

// Raw is the packed, on-disk layout of a single directory entry.
type Raw struct {
	Name             [11]byte
	AttributeFlags   uint8
	NTReserved       uint8
	CreatedTimeTenth uint8
	CreatedTime      uint16
	CreatedDate      uint16
	LastAccessDate   uint16
	ClusterHigh      uint16
	WriteTime        uint16
	WriteDate        uint16
	ClusterLow       uint16
	FileSize         uint32
}

// Cluster assembles the entry's cluster pointer from its high/low halves.
func (r *Raw) Cluster() uint32 {
	return (uint32(r.ClusterHigh) << 16) | uint32(r.ClusterLow)
}

// SetCluster splits a cluster number into the entry's high/low halves. A
// cluster pointer of 0 means "no cluster assigned" (spec invariant 5), used
// for zero-length files created by touch.
func (r *Raw) SetCluster(c uint32) {
	r.ClusterHigh = uint16(c >> 16)
	r.ClusterLow = uint16(c & 0xFFFF)
}

// IsDirectory reports whether the entry's attribute flags mark it as a
// directory.
func (r *Raw) IsDirectory() bool {
	return r.AttributeFlags&AttrDirectory != 0
}

// Pack serializes a Raw entry to its 32-byte on-disk form.
func Pack(r *Raw) ([]byte, error) {
	b, err := restruct.Pack(binary.LittleEndian, r)
	if err != nil {
		return nil, errors.ErrIO.WrapError(err)
	}
	return b, nil
}

// Unpack deserializes a 32-byte on-disk entry.
func Unpack(b []byte) (Raw, error) {
	var r Raw
	if len(b) < Size {
		return r, errors.ErrIO.WithMessage("directory entry buffer shorter than 32 bytes")
	}
	if err := restruct.Unpack(b[:Size], binary.LittleEndian, &r); err != nil {
		return r, errors.ErrIO.WrapError(err)
	}
	return r, nil
}

// FormatName normalizes name into its 11-byte, space-padded 8.3 on-disk
// form. "." and ".." become one or two '.' bytes followed by spaces; any
// other name is split at the first '.' into up to 8 base bytes and up to 3
// extension bytes, silently truncating anything longer. Case is preserved —
// a deliberate departure from standard FAT32 behavior (spec §4.5, §9).
func FormatName(name string) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}

	switch name {
	case ".":
		out[0] = '.'
		return out
	case "..":
		out[0] = '.'
		out[1] = '.'
		return out
	}

	dot := -1
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			dot = i
			break
		}
	}

	if dot < 0 {
		copy(out[0:11], name)
		return out
	}

	base := name[:dot]
	ext := name[dot+1:]
	copy(out[0:8], base)
	copy(out[8:11], ext)
	return out
}

// Entry is a decoded directory entry paired with its slot index within the
// directory cluster, for callers that need to rewrite it in place.
type Entry struct {
	Raw   Raw
	Index int
}

// Scan decodes every live entry in a 4096-byte directory cluster buffer.
// Scanning stops as soon as name[0]==0x00 is seen (end-of-directory marker,
// invariant 4); entries with name[0]==0xE5 (tombstones) are skipped.
func Scan(clusterData []byte) ([]Entry, error) {
	count := len(clusterData) / Size
	entries := make([]Entry, 0, count)

	for i := 0; i < count; i++ {
		offset := i * Size
		raw, err := Unpack(clusterData[offset : offset+Size])
		if err != nil {
			return nil, err
		}

		if raw.Name[0] == EndOfDirectory {
			break
		}
		if raw.Name[0] == Tombstone {
			continue
		}
		entries = append(entries, Entry{Raw: raw, Index: i})
	}
	return entries, nil
}

// FindFreeSlot returns the index of the first entry slot whose name[0] is
// 0x00 or 0xE5 within a directory cluster buffer. It fails with
// ErrOutOfSpace if every slot in the buffer is occupied.
func FindFreeSlot(clusterData []byte, diagnostics *diag.Channel) (int, error) {
	count := len(clusterData) / Size

	for i := 0; i < count; i++ {
		offset := i * Size
		b := clusterData[offset]
		if b == EndOfDirectory || b == Tombstone {
			if diagnostics != nil {
				diagnostics.Printf("dirent: free slot %d (marker 0x%02X)", i, b)
			}
			return i, nil
		}
	}

	if diagnostics != nil {
		diagnostics.Printf("dirent: no free slot among %d entries", count)
	}
	return 0, errors.ErrOutOfSpace.WithMessage("no free directory entry slot")
}

// FindCollision reports whether a directory cluster buffer already has a
// live, non-deleted entry whose 11-byte normalized name matches
// normalizedName exactly (invariant 3).
func FindCollision(clusterData []byte, normalizedName [11]byte, diagnostics *diag.Channel) (bool, error) {
	entries, err := Scan(clusterData)
	if err != nil {
		return false, err
	}

	for _, e := range entries {
		if diagnostics != nil {
			diagnostics.Printf("dirent: comparing %q against %q", e.Raw.Name, normalizedName)
		}
		if e.Raw.Name == normalizedName {
			return true, nil
		}
	}
	return false, nil
}

// WriteEntryAt packs raw into clusterData at the given slot index.
func WriteEntryAt(clusterData []byte, index int, raw *Raw) error {
	packed, err := Pack(raw)
	if err != nil {
		return err
	}
	offset := index * Size
	if offset+Size > len(clusterData) {
		return errors.ErrOutOfSpace.WithMessage("slot index beyond end of cluster")
	}
	copy(clusterData[offset:offset+Size], packed)
	return nil
}
