package cql

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sort"
)

// Primitive notations of the native protocol, big-endian throughout:
// [string] u16 length + bytes, [long string] u32 length + bytes,
// [string map], [string list], [string multimap],
// [inet] u8 size (4|16) + address + i32 port,
// [bytes]/[value] i32 length + bytes with negative lengths encoding
// NULL (-1) and unset (-2).

func readUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func readUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func readInt32(r io.Reader) (int32, error) {
	v, err := readUint32(r)
	return int32(v), err
}

func writeUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeInt32(w io.Writer, v int32) error {
	return writeUint32(w, uint32(v))
}

// ReadString reads a [string].
func ReadString(r io.Reader) (string, error) {
	n, err := readUint16(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteString writes a [string].
func WriteString(w io.Writer, s string) error {
	if len(s) > 0xFFFF {
		return fmt.Errorf("string too long: %d bytes", len(s))
	}
	if err := writeUint16(w, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadLongString reads a [long string].
func ReadLongString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteLongString writes a [long string].
func WriteLongString(w io.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadStringMap reads a [string map].
func ReadStringMap(r io.Reader) (map[string]string, error) {
	n, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, n)
	for i := 0; i < int(n); i++ {
		key, err := ReadString(r)
		if err != nil {
			return nil, err
		}
		value, err := ReadString(r)
		if err != nil {
			return nil, err
		}
		m[key] = value
	}
	return m, nil
}

// WriteStringMap writes a [string map] with keys in sorted order so the
// encoding is deterministic.
func WriteStringMap(w io.Writer, m map[string]string) error {
	if err := writeUint16(w, uint16(len(m))); err != nil {
		return err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := WriteString(w, k); err != nil {
			return err
		}
		if err := WriteString(w, m[k]); err != nil {
			return err
		}
	}
	return nil
}

// ReadStringList reads a [string list].
func ReadStringList(r io.Reader) ([]string, error) {
	n, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	list := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		s, err := ReadString(r)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, nil
}

// WriteStringList writes a [string list].
func WriteStringList(w io.Writer, list []string) error {
	if err := writeUint16(w, uint16(len(list))); err != nil {
		return err
	}
	for _, s := range list {
		if err := WriteString(w, s); err != nil {
			return err
		}
	}
	return nil
}

// ReadStringMultimap reads a [string multimap].
func ReadStringMultimap(r io.Reader) (map[string][]string, error) {
	n, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	m := make(map[string][]string, n)
	for i := 0; i < int(n); i++ {
		key, err := ReadString(r)
		if err != nil {
			return nil, err
		}
		values, err := ReadStringList(r)
		if err != nil {
			return nil, err
		}
		m[key] = values
	}
	return m, nil
}

// WriteStringMultimap writes a [string multimap] with keys in sorted order.
func WriteStringMultimap(w io.Writer, m map[string][]string) error {
	if err := writeUint16(w, uint16(len(m))); err != nil {
		return err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := WriteString(w, k); err != nil {
			return err
		}
		if err := WriteStringList(w, m[k]); err != nil {
			return err
		}
	}
	return nil
}

// ReadInet reads an [inet]: one size byte (4 or 16), the address and an
// i32 port.
func ReadInet(r io.Reader) (net.IP, int32, error) {
	size, err := readUint8(r)
	if err != nil {
		return nil, 0, err
	}
	if size != 4 && size != 16 {
		return nil, 0, fmt.Errorf("invalid inet size: %d", size)
	}
	addr := make([]byte, size)
	if _, err := io.ReadFull(r, addr); err != nil {
		return nil, 0, err
	}
	port, err := readInt32(r)
	if err != nil {
		return nil, 0, err
	}
	return net.IP(addr), port, nil
}

// WriteInet writes an [inet].
func WriteInet(w io.Writer, ip net.IP, port int32) error {
	addr := ip.To4()
	if addr == nil {
		addr = ip.To16()
	}
	if addr == nil {
		return fmt.Errorf("invalid ip address: %v", ip)
	}
	if _, err := w.Write([]byte{byte(len(addr))}); err != nil {
		return err
	}
	if _, err := w.Write(addr); err != nil {
		return err
	}
	return writeInt32(w, port)
}

// ReadValue reads a [value]: nil for NULL (-1), a distinguished unset flag
// for -2, the bytes otherwise.
func ReadValue(r io.Reader) (value []byte, unset bool, err error) {
	n, err := readInt32(r)
	if err != nil {
		return nil, false, err
	}
	switch {
	case n == -2:
		return nil, true, nil
	case n < 0:
		return nil, false, nil
	default:
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, false, err
		}
		return buf, false, nil
	}
}

// ReadBytes reads a [bytes]; negative lengths decode to nil.
func ReadBytes(r io.Reader) ([]byte, error) {
	n, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteBytes writes a [bytes]; nil encodes as NULL (-1).
func WriteBytes(w io.Writer, b []byte) error {
	if b == nil {
		return writeInt32(w, -1)
	}
	if err := writeInt32(w, int32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}
