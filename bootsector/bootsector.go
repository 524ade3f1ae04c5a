// Package bootsector builds, writes, and validates the FAT32 boot sector and
// derives the geometry every other layer needs (fat_start, data_start,
// total_clusters). See spec §3, §4.4.
package bootsector

import (
	"bytes"
	"encoding/binary"

	"github.com/go-restruct/restruct"
	"github.com/hashicorp/go-multierror"
	"github.com/noxer/bytewriter"

	"fat32disk/blockio"
	"fat32disk/errors"
)

// Fixed geometry constants for this engine's FAT32 subset (spec §3).
const (
	BytesPerSector    = 512
	SectorsPerCluster = 8
	ReservedSectors   = 32
	FATCount          = 2
	TotalSectors      = 40960
	FATSize32         = 256
	RootCluster       = 2
	FSInfoSector      = 1
	BackupBootSector  = 6

	// ImageSectors is the total number of sectors an image must have.
	ImageSectors = TotalSectors
	// ImageBytes is the fixed size of the disk image, in bytes (20 MiB).
	ImageBytes = TotalSectors * BytesPerSector

	bootSignature = uint16(0xAA55)
	bootSignatureOffset = 510
)

var fsTypeLabel = [8]byte{'F', 'A', 'T', '3', '2', ' ', ' ', ' '}

// Raw is the packed, on-disk layout of the boot sector (sector 0). Fields
// are serialized in declaration order, little-endian, via restruct.
type Raw struct {
	JumpBoot        [3]byte
	OEMName         [8]byte
	BytesPerSector  uint16
	SectorsPerClstr uint8
	ReservedSectrs  uint16
	NumFATs         uint8
	TotalSectors32  uint32
	FATSize32       uint32
	RootCluster     uint32
	FSInfo          uint16
	BackupBootSect  uint16
	VolumeLabel     [11]byte
	FSType          [8]byte
	// Reserved pads the structure out to the fixed offset of the trailing
	// boot signature at byte 510.
	Reserved [bootSignatureOffset - 52]byte
	Signature uint16
}

// Geometry holds the values derived from a boot sector once it has been
// built or validated. It is cached per session.
type Geometry struct {
	FATStart      uint32
	DataStart     uint32
	TotalClusters uint32
}

// Derive computes fat_start, data_start, and total_clusters from a raw boot
// sector, per spec §3. It never trusts hard-coded constants for a boot
// sector read off disk; it only uses the boot sector's own fields.
func Derive(raw *Raw) Geometry {
	fatStart := uint32(raw.ReservedSectrs)
	dataStart := fatStart + uint32(raw.NumFATs)*raw.FATSize32
	totalClusters := (raw.TotalSectors32 - dataStart) / uint32(raw.SectorsPerClstr)

	return Geometry{
		FATStart:      fatStart,
		DataStart:     dataStart,
		TotalClusters: totalClusters,
	}
}

// Build constructs a fresh boot sector for this engine's fixed geometry
// (spec §3). The volume label is space-padded to 11 bytes.
func Build(volumeLabel string) Raw {
	raw := Raw{
		OEMName:         [8]byte{'F', 'A', 'T', '3', '2', 'D', 'S', 'K'},
		BytesPerSector:  BytesPerSector,
		SectorsPerClstr: SectorsPerCluster,
		ReservedSectrs:  ReservedSectors,
		NumFATs:         FATCount,
		TotalSectors32:  TotalSectors,
		FATSize32:       FATSize32,
		RootCluster:     RootCluster,
		FSInfo:          FSInfoSector,
		BackupBootSect:  BackupBootSector,
		FSType:          fsTypeLabel,
		Signature:       bootSignature,
	}
	raw.JumpBoot = [3]byte{0xEB, 0x00, 0x90}

	copy(raw.VolumeLabel[:], bytes.Repeat([]byte{' '}, 11))
	copy(raw.VolumeLabel[:], volumeLabel)

	return raw
}

// WriteTo serializes raw and writes it to sector 0 of device.
func WriteTo(device *blockio.Device, raw *Raw) error {
	packed, err := restruct.Pack(binary.LittleEndian, raw)
	if err != nil {
		return errors.ErrIO.WrapError(err)
	}

	sector := make([]byte, blockio.SectorSize)
	writer := bytewriter.New(sector)
	if _, err := writer.Write(packed); err != nil {
		return errors.ErrIO.WrapError(err)
	}

	return device.WriteSector(0, sector)
}

// ReadFrom reads and unpacks the boot sector from sector 0 of device.
func ReadFrom(device *blockio.Device) (Raw, error) {
	var raw Raw
	sector := make([]byte, blockio.SectorSize)

	if err := device.ReadSector(0, sector); err != nil {
		return raw, err
	}

	if err := restruct.Unpack(sector, binary.LittleEndian, &raw); err != nil {
		return raw, errors.ErrIO.WrapError(err)
	}
	return raw, nil
}

// Validate reports whether raw looks like a formatted FAT32 boot sector:
// the trailing signature must be 0xAA55 and fs_type must begin with
// "FAT32". It returns the first problem found; ValidateAll reports both at
// once (it is the check session.Session.EnsureValid runs).
func Validate(raw *Raw) error {
	if raw.Signature != bootSignature {
		return errors.ErrInvalidImage.WithMessage("boot sector signature mismatch")
	}
	if !bytes.HasPrefix(raw.FSType[:], []byte("FAT32")) {
		return errors.ErrInvalidImage.WithMessage("fs_type is not FAT32")
	}
	return nil
}

// ValidateAll behaves like Validate, except that when both the signature and
// the fs_type field are wrong, it reports both problems at once instead of
// only the first one found.
func ValidateAll(raw *Raw) error {
	var result *multierror.Error

	if raw.Signature != bootSignature {
		result = multierror.Append(result, errors.ErrInvalidImage.WithMessage("boot sector signature mismatch"))
	}
	if !bytes.HasPrefix(raw.FSType[:], []byte("FAT32")) {
		result = multierror.Append(result, errors.ErrInvalidImage.WithMessage("fs_type is not FAT32"))
	}

	if result == nil {
		return nil
	}
	return result.ErrorOrNil()
}
