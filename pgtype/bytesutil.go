package pgtype

import (
	"encoding/binary"

	"github.com/jackc/pgio"
)

func pgioAppendInt16(dst []byte, n int16) []byte   { return pgio.AppendInt16(dst, n) }
func pgioAppendInt32(dst []byte, n int32) []byte   { return pgio.AppendInt32(dst, n) }
func pgioAppendInt64(dst []byte, n int64) []byte   { return pgio.AppendInt64(dst, n) }
func pgioAppendUint16(dst []byte, n uint16) []byte { return pgio.AppendUint16(dst, n) }
func pgioAppendUint32(dst []byte, n uint32) []byte { return pgio.AppendUint32(dst, n) }
func pgioAppendUint64(dst []byte, n uint64) []byte { return pgio.AppendUint64(dst, n) }

func beUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func beUint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }
func beUint16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
