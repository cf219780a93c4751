package abi

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// Encoder packs named arguments in ABI input order. Values come from the
// command line, YAML or JSON, so numbers may arrive as strings, ints or
// floats and byte values as hex strings.
type Encoder struct{}

// NewEncoder creates an encoder
func NewEncoder() *Encoder {
	return &Encoder{}
}

// EncodeConstructor returns the ABI-encoded constructor arguments, without
// a selector. A constructor without inputs encodes to nothing.
func (e *Encoder) EncodeConstructor(contractABI *abi.ABI, args models.Args) ([]byte, error) {
	values, err := orderArgs(contractABI.Constructor.Inputs, args)
	if err != nil {
		return nil, fmt.Errorf("constructor: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	packed, err := contractABI.Constructor.Inputs.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode constructor arguments: %w", err)
	}
	return packed, nil
}

// EncodeCall returns selector plus encoded arguments for a method, looked up
// by name or by signature such as "initialize(address)"
func (e *Encoder) EncodeCall(contractABI *abi.ABI, method string, args models.Args) ([]byte, error) {
	m, err := findMethod(contractABI, method)
	if err != nil {
		return nil, err
	}
	values, err := orderArgs(m.Inputs, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Sig, err)
	}
	packed, err := m.Inputs.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", m.Sig, err)
	}
	return append(append([]byte{}, m.ID...), packed...), nil
}

func findMethod(contractABI *abi.ABI, method string) (*abi.Method, error) {
	if m, ok := contractABI.Methods[method]; ok {
		return &m, nil
	}
	for _, m := range contractABI.Methods {
		if m.Sig == method {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("method %s not found in ABI", method)
}

func orderArgs(inputs abi.Arguments, args models.Args) ([]any, error) {
	known := make(map[string]bool, len(inputs))
	values := make([]any, 0, len(inputs))
	for i, input := range inputs {
		name := input.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		known[name] = true

		raw, ok := args[name]
		if !ok {
			return nil, fmt.Errorf("missing argument %q (%s)", name, input.Type.String())
		}
		v, err := convert(input.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		values = append(values, v.Interface())
	}

	var unknown []string
	for name := range args {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown arguments: %s", strings.Join(unknown, ", "))
	}
	return values, nil
}

// convert builds a value of the Go type go-ethereum expects for t
func convert(t abi.Type, raw any) (reflect.Value, error) {
	target := t.GetType()

	switch t.T {
	case abi.AddressTy:
		s, ok := raw.(string)
		if !ok || !common.IsHexAddress(s) {
			return reflect.Value{}, fmt.Errorf("invalid address %v", raw)
		}
		return reflect.ValueOf(common.HexToAddress(s)), nil

	case abi.BoolTy:
		switch b := raw.(type) {
		case bool:
			return reflect.ValueOf(b), nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("invalid bool %q", b)
			}
			return reflect.ValueOf(parsed), nil
		}
		return reflect.Value{}, fmt.Errorf("invalid bool %v", raw)

	case abi.StringTy:
		s, ok := raw.(string)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected string, got %T", raw)
		}
		return reflect.ValueOf(s), nil

	case abi.UintTy, abi.IntTy:
		n, err := toBigInt(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return fitInteger(t, target, n)

	case abi.BytesTy:
		b, err := toBytes(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b), nil

	case abi.FixedBytesTy:
		b, err := toBytes(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if len(b) > t.Size {
			return reflect.Value{}, fmt.Errorf("%d bytes do not fit bytes%d", len(b), t.Size)
		}
		v := reflect.New(target).Elem()
		reflect.Copy(v, reflect.ValueOf(b))
		return v, nil

	case abi.SliceTy, abi.ArrayTy:
		items, ok := raw.([]any)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected list, got %T", raw)
		}
		var v reflect.Value
		if t.T == abi.SliceTy {
			v = reflect.MakeSlice(target, len(items), len(items))
		} else {
			if len(items) != t.Size {
				return reflect.Value{}, fmt.Errorf("expected %d items, got %d", t.Size, len(items))
			}
			v = reflect.New(target).Elem()
		}
		for i, item := range items {
			elem, err := convert(*t.Elem, item)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			v.Index(i).Set(elem)
		}
		return v, nil

	case abi.TupleTy:
		fields, ok := raw.(map[string]any)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected object, got %T", raw)
		}
		v := reflect.New(target).Elem()
		for i, elem := range t.TupleElems {
			name := t.TupleRawNames[i]
			item, ok := fields[name]
			if !ok {
				return reflect.Value{}, fmt.Errorf("missing field %q", name)
			}
			fv, err := convert(*elem, item)
			if err != nil {
				return reflect.Value{}, fmt.Errorf(".%s: %w", name, err)
			}
			v.Field(i).Set(fv)
		}
		return v, nil
	}

	return reflect.Value{}, fmt.Errorf("unsupported type %s", t.String())
}

func toBigInt(raw any) (*big.Int, error) {
	switch n := raw.(type) {
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return nil, fmt.Errorf("non-integer number %v", n)
		}
		return big.NewInt(int64(n)), nil
	case json.Number:
		return parseBigInt(n.String())
	case string:
		return parseBigInt(n)
	case *big.Int:
		return n, nil
	}
	return nil, fmt.Errorf("expected integer, got %T", raw)
}

func parseBigInt(s string) (*big.Int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	n, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func fitInteger(t abi.Type, target reflect.Type, n *big.Int) (reflect.Value, error) {
	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return reflect.Value{}, fmt.Errorf("%s out of range for uint%d", n, t.Size)
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return reflect.Value{}, fmt.Errorf("%s out of range for int%d", n, t.Size)
		}
	}

	if target == reflect.TypeOf(&big.Int{}) {
		return reflect.ValueOf(n), nil
	}
	v := reflect.New(target).Elem()
	if t.T == abi.UintTy {
		v.SetUint(n.Uint64())
	} else {
		v.SetInt(n.Int64())
	}
	return v, nil
}

func toBytes(raw any) ([]byte, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("expected hex string, got %T", raw)
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}

// Ensure the encoder implements the interface
var _ usecase.CallEncoder = (*Encoder)(nil)
