// Package wire encodes kernel rules into the fixed-size record the minifilter
// reads from its communication port. Adds and removals share the layout; a
// record with every flag clear is a removal.
//
// Layout (little endian, 672 bytes):
//
//	0    path        [260]uint16  device path, NUL padded
//	520  is_folder   uint8
//	521  block_read  uint8        always zero, reads travel as block_all
//	522  block_write uint8
//	523  block_delete uint8
//	524  block_rename uint8
//	525  block_create uint8
//	526  block_all   uint8
//	527  (padding)
//	528  timestamp   uint64       seconds since the Unix epoch
//	536  added_by    [64]uint16   NUL padded
//	664  reserved    [8]byte
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"

	"mercator-hq/warden/pkg/devpath"
	"mercator-hq/warden/pkg/kernel"
)

const (
	// PathUnits is the capacity of the path field in UTF-16 code units.
	PathUnits = 260

	// AddedByUnits is the capacity of the added_by field.
	AddedByUnits = 64

	// MessageSize is the encoded record size.
	MessageSize = 672
)

const (
	offPath      = 0
	offIsFolder  = 520
	offBlockRead = 521
	offWrite     = 522
	offDelete    = 523
	offRename    = 524
	offCreate    = 525
	offBlockAll  = 526
	offTimestamp = 528
	offAddedBy   = 536
	offReserved  = 664
)

// ErrNotRepresentable is returned for rules whose flags the record cannot
// carry. Encoding them would produce a removal.
var ErrNotRepresentable = errors.New("rule has no wire representation")

// ErrShortBuffer is returned by Decode for input shorter than MessageSize.
var ErrShortBuffer = errors.New("buffer shorter than message size")

// Message is the decoded form of one record.
type Message struct {
	Path        [PathUnits]uint16
	IsFolder    uint8
	BlockRead   uint8
	BlockWrite  uint8
	BlockDelete uint8
	BlockRename uint8
	BlockCreate uint8
	BlockAll    uint8
	Timestamp   uint64
	AddedBy     [AddedByUnits]uint16
	Reserved    [8]byte
}

// FromRule builds the add record for r.
func FromRule(r kernel.Rule) (Message, error) {
	if !r.Transmittable() {
		return Message{}, fmt.Errorf("%w: %s", ErrNotRepresentable, describe(r))
	}

	var m Message
	putUTF16(m.Path[:], r.Path.String())
	putUTF16(m.AddedBy[:], r.CreatedBy)
	m.IsFolder = flag(r.IsFolder())
	m.BlockWrite = flag(r.Blocked.Write)
	m.BlockDelete = flag(r.Blocked.Delete)
	m.BlockRename = flag(r.Blocked.Rename)
	m.BlockCreate = flag(r.Blocked.Create)
	m.BlockAll = flag(r.BlockAll)
	if ts := r.CreatedAt.Unix(); ts > 0 {
		m.Timestamp = uint64(ts)
	}
	return m, nil
}

// Tombstone builds the removal record for a path. The driver matches it on
// path and folder flag.
func Tombstone(path devpath.DevicePath, folder bool) Message {
	var m Message
	putUTF16(m.Path[:], path.String())
	m.IsFolder = flag(folder)
	return m
}

// Tombstone returns the removal record for the same path identity as m.
func (m Message) Tombstone() Message {
	return Message{Path: m.Path, IsFolder: m.IsFolder}
}

// IsTombstone reports whether m is a removal record.
func (m Message) IsTombstone() bool {
	return m.BlockRead|m.BlockWrite|m.BlockDelete|m.BlockRename|m.BlockCreate|m.BlockAll == 0
}

// PathString returns the path field up to the first NUL.
func (m Message) PathString() string {
	return getUTF16(m.Path[:])
}

// AddedByString returns the added_by field up to the first NUL.
func (m Message) AddedByString() string {
	return getUTF16(m.AddedBy[:])
}

// Encode writes the record into a new MessageSize buffer.
func (m Message) Encode() []byte {
	buf := make([]byte, MessageSize)
	for i, u := range m.Path {
		binary.LittleEndian.PutUint16(buf[offPath+2*i:], u)
	}
	buf[offIsFolder] = m.IsFolder
	buf[offBlockRead] = m.BlockRead
	buf[offWrite] = m.BlockWrite
	buf[offDelete] = m.BlockDelete
	buf[offRename] = m.BlockRename
	buf[offCreate] = m.BlockCreate
	buf[offBlockAll] = m.BlockAll
	binary.LittleEndian.PutUint64(buf[offTimestamp:], m.Timestamp)
	for i, u := range m.AddedBy {
		binary.LittleEndian.PutUint16(buf[offAddedBy+2*i:], u)
	}
	copy(buf[offReserved:], m.Reserved[:])
	return buf
}

// Decode parses a record produced by Encode.
func Decode(buf []byte) (Message, error) {
	var m Message
	if len(buf) < MessageSize {
		return m, fmt.Errorf("%w: got %d bytes, need %d", ErrShortBuffer, len(buf), MessageSize)
	}
	for i := range m.Path {
		m.Path[i] = binary.LittleEndian.Uint16(buf[offPath+2*i:])
	}
	m.IsFolder = buf[offIsFolder]
	m.BlockRead = buf[offBlockRead]
	m.BlockWrite = buf[offWrite]
	m.BlockDelete = buf[offDelete]
	m.BlockRename = buf[offRename]
	m.BlockCreate = buf[offCreate]
	m.BlockAll = buf[offBlockAll]
	m.Timestamp = binary.LittleEndian.Uint64(buf[offTimestamp:])
	for i := range m.AddedBy {
		m.AddedBy[i] = binary.LittleEndian.Uint16(buf[offAddedBy+2*i:])
	}
	copy(m.Reserved[:], buf[offReserved:offReserved+8])
	return m, nil
}

// putUTF16 copies s into dst, leaving room for a terminating NUL and never
// splitting a surrogate pair.
func putUTF16(dst []uint16, s string) {
	units := utf16.Encode([]rune(s))
	n := len(units)
	if n > len(dst)-1 {
		n = len(dst) - 1
		if n > 0 && utf16.IsSurrogate(rune(units[n-1])) && units[n-1] < 0xDC00 {
			n--
		}
	}
	copy(dst, units[:n])
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func getUTF16(src []uint16) string {
	n := 0
	for n < len(src) && src[n] != 0 {
		n++
	}
	return string(utf16.Decode(src[:n]))
}

func flag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func describe(r kernel.Rule) string {
	switch {
	case r.AuditOnly():
		return "audit-only"
	case r.Blocked.Any():
		return fmt.Sprintf("blocks only %v", r.Blocked.Names())
	default:
		return "empty"
	}
}
