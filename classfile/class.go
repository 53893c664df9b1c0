package classfile

// Class is a decoded class file.
type Class struct {
	Pool       *ConstantPool
	Interfaces []uint16
	Fields     []*Field
	Methods    []*Method
	Attributes []Attribute
	Minor      uint16
	Major      uint16
	Access     uint16
	ThisClass  uint16
	SuperClass uint16
}

// Field is a field_info entry.
type Field struct {
	Name       string
	Descriptor string
	Attributes []Attribute
	Access     uint16
	NameIndex  uint16
	DescIndex  uint16
}

// Method is a method_info entry. Name and Descriptor are resolved from
// NameIndex and DescIndex; the indices are what gets encoded. Code is nil
// for abstract and native methods. Attributes keeps a placeholder entry
// for Code so attribute order survives a round trip.
type Method struct {
	Code       *Code
	Name       string
	Descriptor string
	Attributes []Attribute
	Access     uint16
	NameIndex  uint16
	DescIndex  uint16
}

// Static reports whether the method has ACC_STATIC.
func (m *Method) Static() bool {
	return m.Access&AccStatic != 0
}

// Name returns the internal name of the class, such as "com/example/Foo".
func (c *Class) Name() string {
	name, err := c.Pool.ClassName(c.ThisClass)
	if err != nil {
		return ""
	}
	return name
}

// SuperName returns the internal name of the superclass, or "" for
// java/lang/Object and module-info.
func (c *Class) SuperName() string {
	if c.SuperClass == 0 {
		return ""
	}
	name, err := c.Pool.ClassName(c.SuperClass)
	if err != nil {
		return ""
	}
	return name
}

// FindMethod returns the method with the given name and descriptor.
func (c *Class) FindMethod(name, desc string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Descriptor == desc {
			return m
		}
	}
	return nil
}

// NewClass returns an empty public class targeting Java 8.
func NewClass(name, super string) (*Class, error) {
	c := &Class{
		Pool:   NewConstantPool(),
		Major:  52,
		Access: AccPublic | AccSuper,
	}
	var err error
	if c.ThisClass, err = c.Pool.AddClass(name); err != nil {
		return nil, err
	}
	if super != "" {
		if c.SuperClass, err = c.Pool.AddClass(super); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AddMethod appends a method. code may be nil.
func (c *Class) AddMethod(access uint16, name, desc string, code *Code) (*Method, error) {
	n, err := c.Pool.AddUTF8(name)
	if err != nil {
		return nil, err
	}
	d, err := c.Pool.AddUTF8(desc)
	if err != nil {
		return nil, err
	}
	m := &Method{
		Code:       code,
		Name:       name,
		Descriptor: desc,
		Access:     access,
		NameIndex:  n,
		DescIndex:  d,
	}
	if code != nil {
		m.Attributes = []Attribute{{Name: AttrCode}}
	}
	c.Methods = append(c.Methods, m)
	return m, nil
}

// AddField appends a field.
func (c *Class) AddField(access uint16, name, desc string) (*Field, error) {
	n, err := c.Pool.AddUTF8(name)
	if err != nil {
		return nil, err
	}
	d, err := c.Pool.AddUTF8(desc)
	if err != nil {
		return nil, err
	}
	f := &Field{Name: name, Descriptor: desc, Access: access, NameIndex: n, DescIndex: d}
	c.Fields = append(c.Fields, f)
	return f, nil
}
