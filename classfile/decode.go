package classfile

import (
	"fmt"

	"github.com/wippyai/jvm-rewrite/classfile/internal/binary"
	"github.com/wippyai/jvm-rewrite/errors"
)

// Parse decodes a class file. Every failure is an *errors.Error matching
// errors.ErrMalformedUnit; no partial class is returned.
func Parse(data []byte) (*Class, error) {
	r := binary.NewReader(data)
	c := &Class{}
	if err := parseClass(r, c); err != nil {
		var unit string
		if c.Pool != nil && c.ThisClass != 0 {
			unit = c.Name()
		}
		return nil, errors.New(errors.PhaseDecode, errors.KindMalformedUnit).
			Unit(unit).
			Detail("invalid class file").
			Cause(err).
			Build()
	}
	return c, nil
}

func parseClass(r *binary.Reader, c *Class) error {
	magic, err := r.ReadU32()
	if err != nil {
		return r.WrapError("header", err)
	}
	if magic != Magic {
		return fmt.Errorf("bad magic 0x%08X", magic)
	}
	if c.Minor, err = r.ReadU16(); err != nil {
		return r.WrapError("header", err)
	}
	if c.Major, err = r.ReadU16(); err != nil {
		return r.WrapError("header", err)
	}
	if c.Major < MinMajorVersion || c.Major > MaxMajorVersion {
		return fmt.Errorf("unsupported class file version %d.%d", c.Major, c.Minor)
	}

	if c.Pool, err = parseConstantPool(r); err != nil {
		return r.WrapError("constant pool", err)
	}

	if c.Access, err = r.ReadU16(); err != nil {
		return r.WrapError("access flags", err)
	}
	if c.ThisClass, err = r.ReadU16(); err != nil {
		return r.WrapError("this_class", err)
	}
	if _, err := c.Pool.ClassName(c.ThisClass); err != nil {
		c.ThisClass = 0
		return fmt.Errorf("this_class: %w", err)
	}
	if c.SuperClass, err = r.ReadU16(); err != nil {
		return r.WrapError("super_class", err)
	}
	if c.SuperClass != 0 {
		if _, err := c.Pool.ClassName(c.SuperClass); err != nil {
			return fmt.Errorf("super_class: %w", err)
		}
	}

	n, err := r.ReadU16()
	if err != nil {
		return r.WrapError("interfaces", err)
	}
	c.Interfaces = make([]uint16, n)
	for i := range c.Interfaces {
		if c.Interfaces[i], err = r.ReadU16(); err != nil {
			return r.WrapError("interfaces", err)
		}
		if _, err := c.Pool.ClassName(c.Interfaces[i]); err != nil {
			return fmt.Errorf("interface %d: %w", i, err)
		}
	}

	if n, err = r.ReadU16(); err != nil {
		return r.WrapError("fields", err)
	}
	c.Fields = make([]*Field, 0, n)
	for i := 0; i < int(n); i++ {
		f := &Field{}
		if f.Access, f.NameIndex, f.DescIndex, err = readMemberHeader(r); err != nil {
			return r.WrapError("fields", err)
		}
		if f.Name, f.Descriptor, err = resolveMember(c.Pool, f.NameIndex, f.DescIndex); err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
		if f.Attributes, err = readAttributes(r, c.Pool); err != nil {
			return r.WrapError("field "+f.Name, err)
		}
		c.Fields = append(c.Fields, f)
	}

	if n, err = r.ReadU16(); err != nil {
		return r.WrapError("methods", err)
	}
	c.Methods = make([]*Method, 0, n)
	for i := 0; i < int(n); i++ {
		m, err := parseMethod(r, c.Pool)
		if err != nil {
			return fmt.Errorf("method %d: %w", i, err)
		}
		c.Methods = append(c.Methods, m)
	}

	if c.Attributes, err = readAttributes(r, c.Pool); err != nil {
		return r.WrapError("class attributes", err)
	}
	if r.Len() != 0 {
		return fmt.Errorf("%d trailing bytes after class attributes", r.Len())
	}
	return nil
}

func parseMethod(r *binary.Reader, pool *ConstantPool) (*Method, error) {
	m := &Method{}
	var err error
	if m.Access, m.NameIndex, m.DescIndex, err = readMemberHeader(r); err != nil {
		return nil, r.WrapError("method header", err)
	}
	if m.Name, m.Descriptor, err = resolveMember(pool, m.NameIndex, m.DescIndex); err != nil {
		return nil, err
	}
	if _, _, err := ParseMethodDescriptor(m.Descriptor); err != nil {
		return nil, err
	}
	attrs, err := readAttributes(r, pool)
	if err != nil {
		return nil, r.WrapError("method "+m.Name, err)
	}
	for _, a := range attrs {
		if a.Name != AttrCode {
			m.Attributes = append(m.Attributes, a)
			continue
		}
		if m.Code != nil {
			return nil, fmt.Errorf("%s%s: duplicate Code attribute", m.Name, m.Descriptor)
		}
		if m.Code, err = decodeCode(a.Data, pool); err != nil {
			return nil, fmt.Errorf("%s%s: Code: %w", m.Name, m.Descriptor, err)
		}
		m.Attributes = append(m.Attributes, Attribute{Name: AttrCode})
	}
	return m, nil
}

func readMemberHeader(r *binary.Reader) (access, name, desc uint16, err error) {
	if access, err = r.ReadU16(); err != nil {
		return
	}
	if name, err = r.ReadU16(); err != nil {
		return
	}
	desc, err = r.ReadU16()
	return
}

func resolveMember(pool *ConstantPool, nameIdx, descIdx uint16) (name, desc string, err error) {
	if name, err = pool.UTF8(nameIdx); err != nil {
		return "", "", err
	}
	if desc, err = pool.UTF8(descIdx); err != nil {
		return "", "", err
	}
	return name, desc, nil
}

// readAttributes reads an attributes_count followed by the attributes.
// Attribute data is copied so the model never aliases the input buffer.
func readAttributes(r *binary.Reader, pool *ConstantPool) ([]Attribute, error) {
	n, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	attrs := make([]Attribute, 0, n)
	for i := 0; i < int(n); i++ {
		idx, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		name, err := pool.UTF8(idx)
		if err != nil {
			return nil, fmt.Errorf("attribute %d name: %w", i, err)
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		if int64(size) > int64(r.Len()) {
			return nil, fmt.Errorf("attribute %s: length %d: %w", name, size, binary.ErrTruncated)
		}
		data, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, Attribute{Name: name, Data: append([]byte(nil), data...)})
	}
	return attrs, nil
}
