// Package wire encodes and decodes the opaque contact descriptors that
// let a peer process locate and attach a region created by another
// process. Layouts are bit-exact across processes on the same host:
// native-endian, fixed-width size fields (see spec §6).
package wire

import (
	"encoding/binary"
	"fmt"
)

// nativeEndian is resolved once; every contact layout here (the path
// contacts' size word and the key contact's key) uses it so a peer on
// the same host decodes the same bytes it was encoded with.
var nativeEndian = binary.NativeEndian

// EncodePathContact builds the contact descriptor used by the
// file-backed-mapping and POSIX-named backends: a NUL-terminated path
// (or name) followed by the region size as a native-endian uint64.
func EncodePathContact(path string, size uint64) []byte {
	buf := make([]byte, len(path)+1+8)
	copy(buf, path)
	buf[len(path)] = 0
	nativeEndian.PutUint64(buf[len(path)+1:], size)
	return buf
}

// DecodePathContact parses the descriptor built by EncodePathContact.
func DecodePathContact(contact []byte) (path string, size uint64, err error) {
	nul := -1
	for i, b := range contact {
		if b == 0 {
			nul = i
			break
		}
	}
	if nul < 0 {
		return "", 0, fmt.Errorf("wire: contact missing NUL terminator")
	}
	if len(contact) < nul+1+8 {
		return "", 0, fmt.Errorf("wire: contact too short for size word")
	}
	size = nativeEndian.Uint64(contact[nul+1:])
	return string(contact[:nul]), size, nil
}

// EncodeKeyContact builds the contact descriptor used by the System V
// backend: the raw numeric key as a native-endian uint64.
func EncodeKeyContact(key int64) []byte {
	buf := make([]byte, 8)
	nativeEndian.PutUint64(buf, uint64(key))
	return buf
}

// DecodeKeyContact parses the descriptor built by EncodeKeyContact.
func DecodeKeyContact(contact []byte) (int64, error) {
	if len(contact) < 8 {
		return 0, fmt.Errorf("wire: key contact too short")
	}
	return int64(nativeEndian.Uint64(contact)), nil
}
