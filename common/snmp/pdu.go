package snmp

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// NormalizeOID strips the leading dot gosnmp puts on returned names.
func NormalizeOID(oid string) string {
	return strings.TrimPrefix(oid, ".")
}

// LastIndex returns the final arc of an OID ("…43.11.1.1.6.1.3" -> "3").
func LastIndex(oid string) string {
	oid = NormalizeOID(oid)
	if i := strings.LastIndexByte(oid, '.'); i >= 0 {
		return oid[i+1:]
	}
	return oid
}

// HasPrefixOID reports whether oid lies under root (arc-aligned).
func HasPrefixOID(oid, root string) bool {
	oid, root = NormalizeOID(oid), NormalizeOID(root)
	return oid == root || strings.HasPrefix(oid, root+".")
}

// IsVarbindError reports whether a varbind carries no usable value.
func IsVarbindError(pdu gosnmp.SnmpPDU) bool {
	switch pdu.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
		return true
	}
	return pdu.Value == nil
}

// PDUString renders a varbind value as text.
func PDUString(pdu gosnmp.SnmpPDU) string {
	switch v := pdu.Value.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	case *big.Int:
		return v.String()
	}
	if n, ok := PDUInt(pdu); ok {
		return strconv.Itoa(n)
	}
	return ""
}

// PDUInt returns an integer value. Numeric strings are accepted; raw byte
// buffers are not (callers decode those explicitly).
func PDUInt(pdu gosnmp.SnmpPDU) (int, bool) {
	switch v := pdu.Value.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	case *big.Int:
		if v.IsInt64() {
			return int(v.Int64()), true
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// PDUBytes returns the raw octets of an OctetString value.
func PDUBytes(pdu gosnmp.SnmpPDU) ([]byte, bool) {
	b, ok := pdu.Value.([]byte)
	return b, ok
}
