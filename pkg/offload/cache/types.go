package cache

import (
	"bytes"
	"encoding/gob"
)

// keySeparator splits the scan root from the relative path in store keys.
// NUL never appears in POSIX paths.
const keySeparator = '\x00'

// Entry is one cached measurement.
type Entry struct {
	IsDir bool
	Size  int64 // aggregated bytes for directories, plain size for files
	Mtime int64 // modification time as UnixNano at measurement
}

// Encode serializes the entry using gob.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes data into the entry.
func (e *Entry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// makeKey builds the store key <root>\x00<relPath>.
func makeKey(root, relPath string) []byte {
	return []byte(root + string(keySeparator) + relPath)
}

// keyPrefix returns the prefix shared by every key under root.
func keyPrefix(root string) []byte {
	return []byte(root + string(keySeparator))
}
