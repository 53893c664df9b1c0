package classfile

import (
	"math"

	"github.com/wippyai/jvm-rewrite/classfile/internal/binary"
	"github.com/wippyai/jvm-rewrite/errors"
)

// Encode serialises the class. Every code body is laid out again and its
// max_stack and max_locals are recomputed from the final instructions.
// Errors match errors.ErrEncodingOverflow when a format limit is exceeded.
func (c *Class) Encode() ([]byte, error) {
	name := c.Name()
	fail := func(err error) ([]byte, error) {
		return nil, errors.WithUnit(err, name)
	}

	// Fields, methods and attributes go first: encoding them may add
	// attribute names to the pool, which has to be complete before it is
	// written.
	body := binary.NewWriter()
	body.WriteU16(c.Access)
	body.WriteU16(c.ThisClass)
	body.WriteU16(c.SuperClass)
	body.WriteU16(uint16(len(c.Interfaces)))
	for _, i := range c.Interfaces {
		body.WriteU16(i)
	}

	body.WriteU16(uint16(len(c.Fields)))
	for _, f := range c.Fields {
		body.WriteU16(f.Access)
		body.WriteU16(f.NameIndex)
		body.WriteU16(f.DescIndex)
		if err := writeAttributes(body, c.Pool, f.Attributes); err != nil {
			return fail(err)
		}
	}

	body.WriteU16(uint16(len(c.Methods)))
	for _, m := range c.Methods {
		attrs, err := c.methodAttributes(m)
		if err != nil {
			return fail(err)
		}
		body.WriteU16(m.Access)
		body.WriteU16(m.NameIndex)
		body.WriteU16(m.DescIndex)
		if err := writeAttributes(body, c.Pool, attrs); err != nil {
			return fail(err)
		}
	}

	if err := writeAttributes(body, c.Pool, c.Attributes); err != nil {
		return fail(err)
	}

	if c.Pool.Count() > MaxConstantPoolCount {
		return fail(errors.EncodingOverflow([]string{"constant_pool"}, c.Pool.Count(), "max constant pool count 65535"))
	}

	w := binary.NewWriter()
	w.WriteU32(Magic)
	w.WriteU16(c.Minor)
	w.WriteU16(c.Major)
	c.Pool.encode(w)
	w.WriteBytes(body.Bytes())
	return w.Bytes(), nil
}

func (c *Class) methodAttributes(m *Method) ([]Attribute, error) {
	path := []string{m.Name + m.Descriptor}
	var code []byte
	if m.Code != nil {
		if err := m.Code.ComputeMaxs(c.Pool, m.Static(), m.Descriptor); err != nil {
			if e, ok := err.(*errors.Error); ok && e.Path == nil {
				cp := *e
				cp.Path = path
				return nil, &cp
			}
			return nil, errors.Wrap(errors.PhaseEncode, errors.KindInvalidInput, err, m.Name+m.Descriptor)
		}
		var err error
		if code, err = m.Code.encode(c.Pool, path); err != nil {
			return nil, err
		}
	}

	attrs := make([]Attribute, 0, len(m.Attributes)+1)
	placed := false
	for _, a := range m.Attributes {
		if a.Name != AttrCode {
			attrs = append(attrs, a)
			continue
		}
		if code != nil && !placed {
			attrs = append(attrs, Attribute{Name: AttrCode, Data: code})
			placed = true
		}
	}
	if code != nil && !placed {
		attrs = append(attrs, Attribute{Name: AttrCode, Data: code})
	}
	return attrs, nil
}

func writeAttributes(w *binary.Writer, pool *ConstantPool, attrs []Attribute) error {
	w.WriteU16(uint16(len(attrs)))
	for _, a := range attrs {
		idx, err := pool.AddUTF8(a.Name)
		if err != nil {
			return err
		}
		if uint64(len(a.Data)) > math.MaxUint32 {
			return errors.EncodingOverflow([]string{a.Name}, len(a.Data), "attribute length")
		}
		w.WriteU16(idx)
		w.WriteU32(uint32(len(a.Data)))
		w.WriteBytes(a.Data)
	}
	return nil
}
