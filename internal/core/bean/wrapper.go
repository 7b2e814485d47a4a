package bean

import (
	"bytes"
	"time"

	"github.com/yndnr/sfsb-go/internal/core/domain"
)

// Wrapper is the serializable snapshot of one bean.
type Wrapper struct {
	ID   string
	Type string

	// CreatedAt and ExpiresAt are lifecycle metadata. They travel with
	// the snapshot but are not part of its checksum.
	CreatedAt time.Time
	ExpiresAt time.Time

	Fields []Field
}

// Snapshot captures b. It never fails; the names of skipped fields are
// returned for diagnostics.
func Snapshot(id string, createdAt, expiresAt time.Time, b Bean) (*Wrapper, []string) {
	w := newFieldWriter()
	b.MarshalFields(w)
	return &Wrapper{
		ID:        id,
		Type:      b.BeanType(),
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
		Fields:    w.fields,
	}, w.skipped
}

// Reconstruct builds a bean of w.Type from the snapshot. It returns
// domain.ErrUnknownType for unregistered tags and domain.ErrCorruptEncoding
// when a present field cannot be decoded.
func Reconstruct(types *Types, w *Wrapper) (Bean, error) {
	b, err := types.New(w.Type)
	if err != nil {
		return nil, err
	}
	r := newFieldReader(w.Fields)
	if err := b.UnmarshalFields(r); err != nil {
		return nil, domain.ErrCorruptEncoding.WithDetailsf("session %s", w.ID).WithCause(err)
	}
	if err := r.Err(); err != nil {
		return nil, domain.ErrCorruptEncoding.WithDetailsf("session %s", w.ID).WithCause(err)
	}
	return b, nil
}

// Field returns the raw value of the named field.
func (w *Wrapper) Field(name string) ([]byte, bool) {
	for _, f := range w.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Decoded returns every field decoded into generic Go values, for display.
func (w *Wrapper) Decoded() map[string]any {
	out := make(map[string]any, len(w.Fields))
	for _, f := range w.Fields {
		var v any
		if err := Unmarshal(f.Value, &v); err != nil {
			v, _ = Diagnose(f.Value)
		}
		out[f.Name] = v
	}
	return out
}

// Equal reports field-for-field equality, comparing times by instant.
func (w *Wrapper) Equal(o *Wrapper) bool {
	if w == nil || o == nil {
		return w == o
	}
	if w.ID != o.ID || w.Type != o.Type ||
		!w.CreatedAt.Equal(o.CreatedAt) || !w.ExpiresAt.Equal(o.ExpiresAt) ||
		len(w.Fields) != len(o.Fields) {
		return false
	}
	for i := range w.Fields {
		if w.Fields[i].Name != o.Fields[i].Name || !bytes.Equal(w.Fields[i].Value, o.Fields[i].Value) {
			return false
		}
	}
	return true
}
