package classfile

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/wippyai/jvm-rewrite/classfile/internal/binary"
	"github.com/wippyai/jvm-rewrite/errors"
)

// Constant is one constant pool entry.
//
// Field use depends on Tag:
//
//	Utf8                       Bytes (modified UTF-8, kept verbatim)
//	Integer, Float             Value (low 32 bits)
//	Long, Double               Value
//	Class, String, MethodType,
//	Module, Package            Ref1
//	Fieldref, Methodref,
//	InterfaceMethodref         Ref1 (class), Ref2 (name and type)
//	NameAndType                Ref1 (name), Ref2 (descriptor)
//	MethodHandle               RefKind, Ref1
//	Dynamic, InvokeDynamic     Ref1 (bootstrap method attr index), Ref2 (name and type)
//
// The slot following a Long or Double has Tag 0.
type Constant struct {
	Bytes   []byte
	Value   uint64
	Ref1    uint16
	Ref2    uint16
	Tag     byte
	RefKind byte
}

// ConstantPool is the class constant pool. Index 0 is unused.
type ConstantPool struct {
	entries []Constant
	lookup  map[constKey]uint16
}

type constKey struct {
	str  string
	val  uint64
	r1   uint16
	r2   uint16
	tag  byte
	kind byte
}

// NewConstantPool returns an empty pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{entries: []Constant{{}}}
}

// Count returns constant_pool_count (number of slots plus one).
func (p *ConstantPool) Count() int {
	return len(p.entries)
}

// Get returns the constant at index i.
func (p *ConstantPool) Get(i uint16) (Constant, bool) {
	if i == 0 || int(i) >= len(p.entries) || p.entries[i].Tag == 0 {
		return Constant{}, false
	}
	return p.entries[i], true
}

// UTF8 returns the decoded string of the Utf8 constant at index i.
func (p *ConstantPool) UTF8(i uint16) (string, error) {
	c, ok := p.Get(i)
	if !ok || c.Tag != TagUtf8 {
		return "", fmt.Errorf("constant %d is not Utf8", i)
	}
	return DecodeModifiedUTF8(c.Bytes), nil
}

// ClassName returns the internal name referenced by the Class constant at index i.
func (p *ConstantPool) ClassName(i uint16) (string, error) {
	c, ok := p.Get(i)
	if !ok || c.Tag != TagClass {
		return "", fmt.Errorf("constant %d is not Class", i)
	}
	return p.UTF8(c.Ref1)
}

// NameAndType returns the name and descriptor of the NameAndType constant at index i.
func (p *ConstantPool) NameAndType(i uint16) (name, desc string, err error) {
	c, ok := p.Get(i)
	if !ok || c.Tag != TagNameAndType {
		return "", "", fmt.Errorf("constant %d is not NameAndType", i)
	}
	if name, err = p.UTF8(c.Ref1); err != nil {
		return "", "", err
	}
	if desc, err = p.UTF8(c.Ref2); err != nil {
		return "", "", err
	}
	return name, desc, nil
}

// MemberRef is a resolved Fieldref, Methodref or InterfaceMethodref.
type MemberRef struct {
	Owner      string
	Name       string
	Descriptor string
	Interface  bool
}

// Member resolves the member reference at index i.
func (p *ConstantPool) Member(i uint16) (MemberRef, error) {
	c, ok := p.Get(i)
	if !ok {
		return MemberRef{}, fmt.Errorf("constant %d out of range", i)
	}
	switch c.Tag {
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
	default:
		return MemberRef{}, fmt.Errorf("constant %d is not a member reference (tag %d)", i, c.Tag)
	}
	owner, err := p.ClassName(c.Ref1)
	if err != nil {
		return MemberRef{}, err
	}
	name, desc, err := p.NameAndType(c.Ref2)
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{
		Owner:      owner,
		Name:       name,
		Descriptor: desc,
		Interface:  c.Tag == TagInterfaceMethodref,
	}, nil
}

// Dynamic returns the name and descriptor of a Dynamic or InvokeDynamic constant.
func (p *ConstantPool) Dynamic(i uint16) (name, desc string, err error) {
	c, ok := p.Get(i)
	if !ok || (c.Tag != TagDynamic && c.Tag != TagInvokeDynamic) {
		return "", "", fmt.Errorf("constant %d is not Dynamic", i)
	}
	return p.NameAndType(c.Ref2)
}

// AddUTF8 returns the index of a Utf8 constant holding s, adding it if needed.
// The modified UTF-8 form must fit the format's u2 length.
func (p *ConstantPool) AddUTF8(s string) (uint16, error) {
	b := EncodeModifiedUTF8(s)
	if len(b) > MaxUTF8Length {
		return 0, errors.EncodingOverflow([]string{"constant_pool"}, len(b), "Utf8 length 65535")
	}
	return p.add(Constant{Tag: TagUtf8, Bytes: b})
}

// AddClass returns the index of a Class constant for the internal name.
func (p *ConstantPool) AddClass(internalName string) (uint16, error) {
	name, err := p.AddUTF8(internalName)
	if err != nil {
		return 0, err
	}
	return p.add(Constant{Tag: TagClass, Ref1: name})
}

// AddString returns the index of a String constant for s.
func (p *ConstantPool) AddString(s string) (uint16, error) {
	u, err := p.AddUTF8(s)
	if err != nil {
		return 0, err
	}
	return p.add(Constant{Tag: TagString, Ref1: u})
}

// AddInteger returns the index of an Integer constant.
func (p *ConstantPool) AddInteger(v int32) (uint16, error) {
	return p.add(Constant{Tag: TagInteger, Value: uint64(uint32(v))})
}

// AddLong returns the index of a Long constant.
func (p *ConstantPool) AddLong(v int64) (uint16, error) {
	return p.add(Constant{Tag: TagLong, Value: uint64(v)})
}

// AddNameAndType returns the index of a NameAndType constant.
func (p *ConstantPool) AddNameAndType(name, desc string) (uint16, error) {
	n, err := p.AddUTF8(name)
	if err != nil {
		return 0, err
	}
	d, err := p.AddUTF8(desc)
	if err != nil {
		return 0, err
	}
	return p.add(Constant{Tag: TagNameAndType, Ref1: n, Ref2: d})
}

// AddMember returns the index of a member reference of the given tag.
func (p *ConstantPool) AddMember(tag byte, owner, name, desc string) (uint16, error) {
	switch tag {
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
	default:
		return 0, fmt.Errorf("tag %d is not a member reference", tag)
	}
	cls, err := p.AddClass(owner)
	if err != nil {
		return 0, err
	}
	nat, err := p.AddNameAndType(name, desc)
	if err != nil {
		return 0, err
	}
	return p.add(Constant{Tag: tag, Ref1: cls, Ref2: nat})
}

// AddMethodref returns the index of a Methodref or InterfaceMethodref.
func (p *ConstantPool) AddMethodref(owner, name, desc string, itf bool) (uint16, error) {
	tag := TagMethodref
	if itf {
		tag = TagInterfaceMethodref
	}
	return p.AddMember(tag, owner, name, desc)
}

func (p *ConstantPool) add(c Constant) (uint16, error) {
	p.ensureLookup()
	k := keyOf(c)
	if idx, ok := p.lookup[k]; ok {
		return idx, nil
	}
	slots := 1
	if c.Tag == TagLong || c.Tag == TagDouble {
		slots = 2
	}
	if len(p.entries)+slots > MaxConstantPoolCount {
		return 0, errors.EncodingOverflow([]string{"constant_pool"}, len(p.entries)+slots, "max constant pool count 65535")
	}
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, c)
	if slots == 2 {
		p.entries = append(p.entries, Constant{})
	}
	p.lookup[k] = idx
	return idx, nil
}

func (p *ConstantPool) ensureLookup() {
	if p.lookup != nil {
		return
	}
	p.lookup = make(map[constKey]uint16, len(p.entries))
	for i := 1; i < len(p.entries); i++ {
		c := p.entries[i]
		if c.Tag == 0 {
			continue
		}
		k := keyOf(c)
		if _, dup := p.lookup[k]; !dup {
			p.lookup[k] = uint16(i)
		}
	}
}

func keyOf(c Constant) constKey {
	return constKey{
		tag:  c.Tag,
		str:  string(c.Bytes),
		val:  c.Value,
		r1:   c.Ref1,
		r2:   c.Ref2,
		kind: c.RefKind,
	}
}

func parseConstantPool(r *binary.Reader) (*ConstantPool, error) {
	count, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("constant_pool_count is zero")
	}
	p := &ConstantPool{entries: make([]Constant, 1, count)}
	for len(p.entries) < int(count) {
		idx := len(p.entries)
		tag, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		c := Constant{Tag: tag}
		switch tag {
		case TagUtf8:
			n, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			b, err := r.ReadBytes(int(n))
			if err != nil {
				return nil, err
			}
			c.Bytes = append([]byte(nil), b...)
		case TagInteger, TagFloat:
			v, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			c.Value = uint64(v)
		case TagLong, TagDouble:
			if idx+1 >= int(count) {
				return nil, fmt.Errorf("constant %d: 8-byte constant in last slot", idx)
			}
			if c.Value, err = r.ReadU64(); err != nil {
				return nil, err
			}
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			if c.Ref1, err = r.ReadU16(); err != nil {
				return nil, err
			}
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
			if c.Ref1, err = r.ReadU16(); err != nil {
				return nil, err
			}
			if c.Ref2, err = r.ReadU16(); err != nil {
				return nil, err
			}
		case TagMethodHandle:
			if c.RefKind, err = r.ReadByte(); err != nil {
				return nil, err
			}
			if c.Ref1, err = r.ReadU16(); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("constant %d: unknown tag %d", idx, tag)
		}
		p.entries = append(p.entries, c)
		if tag == TagLong || tag == TagDouble {
			p.entries = append(p.entries, Constant{})
		}
	}
	return p, p.validate()
}

// validate checks that every cross reference points at a constant of the
// expected tag.
func (p *ConstantPool) validate() error {
	expect := func(at int, ref uint16, tags ...byte) error {
		c, ok := p.Get(ref)
		if ok {
			for _, t := range tags {
				if c.Tag == t {
					return nil
				}
			}
		}
		return fmt.Errorf("constant %d: reference %d has wrong tag or is out of range", at, ref)
	}
	for i := 1; i < len(p.entries); i++ {
		c := p.entries[i]
		var err error
		switch c.Tag {
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			err = expect(i, c.Ref1, TagUtf8)
		case TagFieldref, TagMethodref, TagInterfaceMethodref:
			if err = expect(i, c.Ref1, TagClass); err == nil {
				err = expect(i, c.Ref2, TagNameAndType)
			}
		case TagNameAndType:
			if err = expect(i, c.Ref1, TagUtf8); err == nil {
				err = expect(i, c.Ref2, TagUtf8)
			}
		case TagDynamic, TagInvokeDynamic:
			err = expect(i, c.Ref2, TagNameAndType)
		case TagMethodHandle:
			switch c.RefKind {
			case RefGetField, RefGetStatic, RefPutField, RefPutStatic:
				err = expect(i, c.Ref1, TagFieldref)
			case RefInvokeVirtual, RefNewInvokeSpecial:
				err = expect(i, c.Ref1, TagMethodref)
			case RefInvokeStatic, RefInvokeSpecial:
				err = expect(i, c.Ref1, TagMethodref, TagInterfaceMethodref)
			case RefInvokeInterface:
				err = expect(i, c.Ref1, TagInterfaceMethodref)
			default:
				err = fmt.Errorf("constant %d: invalid method handle kind %d", i, c.RefKind)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *ConstantPool) encode(w *binary.Writer) {
	w.WriteU16(uint16(len(p.entries)))
	for i := 1; i < len(p.entries); i++ {
		c := p.entries[i]
		if c.Tag == 0 {
			continue
		}
		w.Byte(c.Tag)
		switch c.Tag {
		case TagUtf8:
			w.WriteU16(uint16(len(c.Bytes)))
			w.WriteBytes(c.Bytes)
		case TagInteger, TagFloat:
			w.WriteU32(uint32(c.Value))
		case TagLong, TagDouble:
			w.WriteU64(c.Value)
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			w.WriteU16(c.Ref1)
		case TagMethodHandle:
			w.Byte(c.RefKind)
			w.WriteU16(c.Ref1)
		default:
			w.WriteU16(c.Ref1)
			w.WriteU16(c.Ref2)
		}
	}
}

// EncodeModifiedUTF8 encodes s in the JVM's modified UTF-8: NUL is two
// bytes and supplementary characters are encoded as surrogate pairs.
func EncodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r != 0 && r < 0x80:
			out = append(out, byte(r))
		case r < 0x800:
			out = append(out, 0xC0|byte(r>>6), 0x80|byte(r&0x3F))
		case r < 0x10000:
			out = appendModified3(out, r)
		default:
			hi, lo := utf16.EncodeRune(r)
			out = appendModified3(out, hi)
			out = appendModified3(out, lo)
		}
	}
	return out
}

func appendModified3(out []byte, r rune) []byte {
	return append(out, 0xE0|byte(r>>12), 0x80|byte((r>>6)&0x3F), 0x80|byte(r&0x3F))
}

// DecodeModifiedUTF8 decodes modified UTF-8. Invalid sequences and
// unpaired surrogates decode to utf8.RuneError.
func DecodeModifiedUTF8(b []byte) string {
	ascii := true
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b)
	}
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			units = append(units, utf8.RuneError)
			i++
		}
	}
	return string(utf16.Decode(units))
}
