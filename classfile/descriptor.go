package classfile

import (
	"fmt"
	"strings"
)

// ParseMethodDescriptor splits a method descriptor such as
// "(ILjava/lang/String;[J)V" into parameter and return field descriptors.
func ParseMethodDescriptor(desc string) (params []string, ret string, err error) {
	if len(desc) < 3 || desc[0] != '(' {
		return nil, "", fmt.Errorf("invalid method descriptor %q", desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		n, err := fieldDescriptorLen(desc[i:])
		if err != nil {
			return nil, "", fmt.Errorf("invalid method descriptor %q: %w", desc, err)
		}
		params = append(params, desc[i:i+n])
		i += n
	}
	if i >= len(desc) {
		return nil, "", fmt.Errorf("invalid method descriptor %q: missing ')'", desc)
	}
	ret = desc[i+1:]
	if ret != "V" {
		n, err := fieldDescriptorLen(ret)
		if err != nil || n != len(ret) {
			return nil, "", fmt.Errorf("invalid method descriptor %q: bad return type", desc)
		}
	}
	return params, ret, nil
}

// ValidFieldDescriptor reports whether desc is exactly one field descriptor.
func ValidFieldDescriptor(desc string) bool {
	n, err := fieldDescriptorLen(desc)
	return err == nil && n == len(desc)
}

func fieldDescriptorLen(s string) (int, error) {
	dims := 0
	for dims < len(s) && s[dims] == '[' {
		dims++
	}
	if dims > 255 {
		return 0, fmt.Errorf("array of %d dimensions", dims)
	}
	if dims == len(s) {
		return 0, fmt.Errorf("truncated field descriptor")
	}
	switch s[dims] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return dims + 1, nil
	case 'L':
		end := strings.IndexByte(s[dims:], ';')
		if end <= 1 {
			return 0, fmt.Errorf("unterminated class type")
		}
		if strings.ContainsAny(s[dims+1:dims+end], ".[") {
			return 0, fmt.Errorf("invalid class name %q", s[dims+1:dims+end])
		}
		return dims + end + 1, nil
	}
	return 0, fmt.Errorf("invalid type %q", s[dims])
}

// TypeSlots returns the operand stack or local slots taken by a field
// descriptor: 2 for long and double, 0 for void, 1 otherwise.
func TypeSlots(desc string) int {
	switch desc {
	case "J", "D":
		return 2
	case "V", "":
		return 0
	}
	return 1
}

// ArgSlots returns the slots taken by a method's parameters, excluding the
// receiver.
func ArgSlots(desc string) (int, error) {
	params, _, err := ParseMethodDescriptor(desc)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range params {
		n += TypeSlots(p)
	}
	return n, nil
}

// ReturnSlots returns the slots taken by a method's return value.
func ReturnSlots(desc string) (int, error) {
	_, ret, err := ParseMethodDescriptor(desc)
	if err != nil {
		return 0, err
	}
	return TypeSlots(ret), nil
}
