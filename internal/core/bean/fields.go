package bean

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Volatile is implemented by values that hold live shared state and must
// never be written into a snapshot, such as *cmap.Map.
type Volatile interface {
	Volatile()
}

// Field is one named, CBOR-encoded value of a snapshot.
type Field struct {
	Name  string          `cbor:"n"`
	Value cbor.RawMessage `cbor:"v"`
}

// FieldWriter collects the fields of a bean in declaration order.
type FieldWriter struct {
	fields  []Field
	index   map[string]int
	skipped []string
}

func newFieldWriter() *FieldWriter {
	return &FieldWriter{index: make(map[string]int)}
}

// Put records value under name. Values that are not snapshot-safe, or
// that cannot be encoded, are skipped silently. Putting the same name
// twice keeps the first position and the last value.
func (w *FieldWriter) Put(name string, value any) {
	if !snapshotSafe(value) {
		w.skipped = append(w.skipped, name)
		return
	}
	raw, err := Marshal(value)
	if err != nil {
		w.skipped = append(w.skipped, name)
		return
	}
	if i, ok := w.index[name]; ok {
		w.fields[i].Value = raw
		return
	}
	w.index[name] = len(w.fields)
	w.fields = append(w.fields, Field{Name: name, Value: raw})
}

// Skipped returns the names dropped by Put.
func (w *FieldWriter) Skipped() []string {
	return w.skipped
}

func snapshotSafe(v any) bool {
	switch v.(type) {
	case nil:
		return true
	case Volatile, sync.Locker, context.Context,
		*sync.WaitGroup, *sync.Once, *sync.Map, *sync.Cond, *sync.Pool:
		return false
	}
	t := reflect.TypeOf(v)
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return false
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	// sync.Mutex, sync.WaitGroup, atomic.Int64 and friends by value.
	switch t.PkgPath() {
	case "sync", "sync/atomic":
		return false
	}
	return true
}

// FieldReader gives a bean access to the fields of a snapshot.
type FieldReader struct {
	fields map[string]cbor.RawMessage
	err    error
}

func newFieldReader(fields []Field) *FieldReader {
	m := make(map[string]cbor.RawMessage, len(fields))
	for _, f := range fields {
		m[f.Name] = f.Value
	}
	return &FieldReader{fields: m}
}

// Has reports whether the snapshot carries name.
func (r *FieldReader) Has(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// Get decodes field name into dst, which must be a pointer. It returns
// false, leaving dst untouched, when the field is absent or cannot be
// decoded; the first decode failure is kept for Err.
func (r *FieldReader) Get(name string, dst any) bool {
	raw, ok := r.fields[name]
	if !ok {
		return false
	}
	if err := Unmarshal(raw, dst); err != nil {
		if r.err == nil {
			r.err = fmt.Errorf("field %q: %w", name, err)
		}
		return false
	}
	return true
}

// Err returns the first decode failure seen by Get.
func (r *FieldReader) Err() error {
	return r.err
}
