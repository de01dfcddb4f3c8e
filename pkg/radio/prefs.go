package radio

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// setField assigns a value to a named field of a protobuf message,
// recursing into nested messages when the value is a map. Field names
// are accepted in snake_case or camelCase. Enum values are accepted by
// name or number.
func setField(m protoreflect.Message, name string, val any) error {
	fd := findField(m.Descriptor(), name)
	if fd == nil {
		return fmt.Errorf("unknown field %q in %s", name, m.Descriptor().Name())
	}

	if fd.IsList() {
		vals, ok := val.([]any)
		if !ok {
			return fmt.Errorf("field %q is repeated, expected a list", name)
		}
		list := m.Mutable(fd).List()
		list.Truncate(0)
		for _, item := range vals {
			v, err := scalarValue(fd, item)
			if err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
			list.Append(v)
		}
		return nil
	}

	if fd.Kind() == protoreflect.MessageKind {
		nested, ok := val.(map[string]any)
		if !ok {
			return fmt.Errorf("field %q is a message, expected a mapping", name)
		}
		sub := m.Mutable(fd).Message()
		for k, v := range nested {
			if err := setField(sub, k, v); err != nil {
				return err
			}
		}
		return nil
	}

	v, err := scalarValue(fd, val)
	if err != nil {
		return fmt.Errorf("field %q: %w", name, err)
	}
	m.Set(fd, v)
	return nil
}

// scalarValue converts a YAML-decoded value into the protoreflect
// value for a scalar field.
func scalarValue(fd protoreflect.FieldDescriptor, val any) (protoreflect.Value, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		switch v := val.(type) {
		case bool:
			return protoreflect.ValueOfBool(v), nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return protoreflect.Value{}, fmt.Errorf("invalid bool %q", v)
			}
			return protoreflect.ValueOfBool(b), nil
		}

	case protoreflect.StringKind:
		if v, ok := val.(string); ok {
			return protoreflect.ValueOfString(v), nil
		}
		return protoreflect.ValueOfString(fmt.Sprintf("%v", val)), nil

	case protoreflect.BytesKind:
		if v, ok := val.(string); ok {
			return protoreflect.ValueOfBytes([]byte(v)), nil
		}

	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		n, err := toInt64(val)
		if err != nil {
			return protoreflect.Value{}, err
		}
		return protoreflect.ValueOfInt32(int32(n)), nil

	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		n, err := toInt64(val)
		if err != nil {
			return protoreflect.Value{}, err
		}
		return protoreflect.ValueOfInt64(n), nil

	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		n, err := toInt64(val)
		if err != nil {
			return protoreflect.Value{}, err
		}
		return protoreflect.ValueOfUint32(uint32(n)), nil

	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		n, err := toInt64(val)
		if err != nil {
			return protoreflect.Value{}, err
		}
		return protoreflect.ValueOfUint64(uint64(n)), nil

	case protoreflect.FloatKind:
		f, err := toFloat64(val)
		if err != nil {
			return protoreflect.Value{}, err
		}
		return protoreflect.ValueOfFloat32(float32(f)), nil

	case protoreflect.DoubleKind:
		f, err := toFloat64(val)
		if err != nil {
			return protoreflect.Value{}, err
		}
		return protoreflect.ValueOfFloat64(f), nil

	case protoreflect.EnumKind:
		switch v := val.(type) {
		case string:
			ev := fd.Enum().Values().ByName(protoreflect.Name(v))
			if ev == nil {
				return protoreflect.Value{}, fmt.Errorf(
					"no enum value %q, choices are: %s", v, enumChoices(fd))
			}
			return protoreflect.ValueOfEnum(ev.Number()), nil
		default:
			n, err := toInt64(val)
			if err != nil {
				return protoreflect.Value{}, err
			}
			return protoreflect.ValueOfEnum(protoreflect.EnumNumber(n)), nil
		}
	}
	return protoreflect.Value{}, fmt.Errorf("cannot assign %T to %s field", val, fd.Kind())
}

// findField resolves a field by snake_case or camelCase name.
func findField(d protoreflect.MessageDescriptor, name string) protoreflect.FieldDescriptor {
	snake := camelToSnake(name)
	if fd := d.Fields().ByName(protoreflect.Name(snake)); fd != nil {
		return fd
	}
	return d.Fields().ByJSONName(name)
}

func enumChoices(fd protoreflect.FieldDescriptor) string {
	vals := fd.Enum().Values()
	names := make([]string, 0, vals.Len())
	for i := 0; i < vals.Len(); i++ {
		names = append(names, string(vals.Get(i).Name()))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func toInt64(val any) (int64, error) {
	switch v := val.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("cannot convert %T to integer", val)
}

func toFloat64(val any) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", v)
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot convert %T to number", val)
}

// camelToSnake converts camelCase to snake_case; snake_case input
// passes through unchanged.
func camelToSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
