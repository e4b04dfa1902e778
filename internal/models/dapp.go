package models

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// Declared argument types of callable functions.
const (
	ArgTypeInt        = "Int"
	ArgTypeString     = "String"
	ArgTypeByteVector = "ByteVector"
	ArgTypeBoolean    = "Boolean"
)

// Byte vector encoding hints.
const (
	EncodingBase58 = "base58"
	EncodingBase64 = "base64"
)

type ArgumentSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type CallableFunction struct {
	Name string
	Args []ArgumentSpec
}

// CallableFuncTypes keeps functions and their arguments in declaration order,
// which a plain map would lose.
type CallableFuncTypes []CallableFunction

func (c CallableFuncTypes) Lookup(name string) (CallableFunction, bool) {
	for _, fn := range c {
		if fn.Name == name {
			return fn, true
		}
	}
	return CallableFunction{}, false
}

// UnmarshalJSON accepts both the `{"fn": {"arg": "Int"}}` shape and the
// `{"fn": [{"name": "arg", "type": "Int"}]}` shape of newer nodes.
func (c *CallableFuncTypes) UnmarshalJSON(data []byte) error {
	api := jsoniter.ConfigCompatibleWithStandardLibrary
	iter := api.BorrowIterator(data)
	defer api.ReturnIterator(iter)

	if iter.WhatIsNext() == jsoniter.NilValue {
		*c = nil
		return nil
	}

	var out CallableFuncTypes
	iter.ReadObjectCB(func(it *jsoniter.Iterator, name string) bool {
		fn := CallableFunction{Name: name}
		switch it.WhatIsNext() {
		case jsoniter.ObjectValue:
			it.ReadObjectCB(func(it *jsoniter.Iterator, arg string) bool {
				fn.Args = append(fn.Args, ArgumentSpec{Name: arg, Type: it.ReadString()})
				return true
			})
		case jsoniter.ArrayValue:
			it.ReadVal(&fn.Args)
		default:
			it.Skip()
		}
		out = append(out, fn)
		return true
	})

	if iter.Error != nil && iter.Error != io.EOF {
		return fmt.Errorf("failed to decode callable function types: %w", iter.Error)
	}

	*c = out
	return nil
}

func (c CallableFuncTypes) MarshalJSON() ([]byte, error) {
	api := jsoniter.ConfigCompatibleWithStandardLibrary
	stream := api.BorrowStream(nil)
	defer api.ReturnStream(stream)

	stream.WriteObjectStart()
	for i, fn := range c {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(fn.Name)
		stream.WriteObjectStart()
		for j, arg := range fn.Args {
			if j > 0 {
				stream.WriteMore()
			}
			stream.WriteObjectField(arg.Name)
			stream.WriteString(arg.Type)
		}
		stream.WriteObjectEnd()
	}
	stream.WriteObjectEnd()

	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

type DappMeta struct {
	Version           int               `json:"version,omitempty"`
	CallableFuncTypes CallableFuncTypes `json:"callableFuncTypes,omitempty"`
}

// DappView is what the /{address} route renders.
type DappView struct {
	Address  string    `json:"address"`
	Server   string    `json:"server,omitempty"`
	Meta     *DappMeta `json:"meta,omitempty"`
	IsFailed bool      `json:"isFailed"`
}

// ArgumentInput is one user-entered argument. A nil Value means the user left it empty.
type ArgumentInput struct {
	Name           string  `json:"name,omitempty"`
	Type           string  `json:"type"`
	Value          *string `json:"value,omitempty"`
	ByteVectorType string  `json:"byteVectorType,omitempty"`
}
