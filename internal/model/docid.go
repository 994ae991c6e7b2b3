package model

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrMissingID is returned when a row carries no usable identifier.
var ErrMissingID = errors.New("row has no identifier")

// Row identifier columns.
const (
	RelationalIDColumn = "system_id"
	DocumentIDColumn   = "_id"
)

// DocIDKind tells how a row identifier was encoded.
type DocIDKind int

const (
	// IDRelational is a system_id column value.
	IDRelational DocIDKind = iota + 1
	// IDObjectID is an ObjectID, either {"$oid": hex} or the legacy
	// {timestamp, machineIdentifier, processIdentifier, counter} form.
	IDObjectID
	// IDTimestamp is an object carrying only a timestamp.
	IDTimestamp
	// IDRaw is a scalar _id used as-is.
	IDRaw
)

func (k DocIDKind) String() string {
	switch k {
	case IDRelational:
		return "relational"
	case IDObjectID:
		return "objectid"
	case IDTimestamp:
		return "timestamp"
	case IDRaw:
		return "raw"
	}
	return "unknown"
}

// DocID is a resolved row identifier.
type DocID struct {
	Kind  DocIDKind
	Value string
}

func (d DocID) String() string { return d.Value }

// ResolveRowID finds the identifier used by update requests for a row.
func ResolveRowID(source DataSource, row Row) (DocID, error) {
	switch source {
	case SourceMySQL:
		v, ok := scalarString(row[RelationalIDColumn])
		if !ok {
			return DocID{}, fmt.Errorf("%s: %w", RelationalIDColumn, ErrMissingID)
		}
		return DocID{Kind: IDRelational, Value: v}, nil
	case SourceMongoDB:
		return DecodeDocumentID(row[DocumentIDColumn])
	}
	return DocID{}, fmt.Errorf("resolve id for %q: %w", source, ErrMissingID)
}

// DecodeDocumentID unwraps a document-store _id value.
func DecodeDocumentID(v any) (DocID, error) {
	switch id := v.(type) {
	case nil:
		return DocID{}, fmt.Errorf("%s: %w", DocumentIDColumn, ErrMissingID)
	case map[string]any:
		return decodeIDObject(id)
	case Row:
		return decodeIDObject(id)
	}
	s, ok := scalarString(v)
	if !ok {
		return DocID{}, fmt.Errorf("%s of type %T: %w", DocumentIDColumn, v, ErrMissingID)
	}
	return DocID{Kind: IDRaw, Value: s}, nil
}

func decodeIDObject(obj map[string]any) (DocID, error) {
	if raw, ok := obj["$oid"]; ok {
		hex, _ := raw.(string)
		oid, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			return DocID{}, fmt.Errorf("$oid %q: %w", hex, ErrMissingID)
		}
		return DocID{Kind: IDObjectID, Value: oid.Hex()}, nil
	}

	ts, ok := integer(obj["timestamp"])
	if !ok {
		return DocID{}, fmt.Errorf("%s object without $oid or timestamp: %w", DocumentIDColumn, ErrMissingID)
	}
	machine, mok := integer(obj["machineIdentifier"])
	process, pok := integer(obj["processIdentifier"])
	counter, cok := integer(obj["counter"])
	if mok && pok && cok {
		return DocID{Kind: IDObjectID, Value: legacyObjectID(ts, machine, process, counter).Hex()}, nil
	}
	return DocID{Kind: IDTimestamp, Value: strconv.FormatInt(ts, 10)}, nil
}

// legacyObjectID rebuilds the 4-3-2-3 byte ObjectID layout.
func legacyObjectID(ts, machine, process, counter int64) primitive.ObjectID {
	var oid primitive.ObjectID
	binary.BigEndian.PutUint32(oid[0:4], uint32(ts))
	oid[4] = byte(machine >> 16)
	oid[5] = byte(machine >> 8)
	oid[6] = byte(machine)
	binary.BigEndian.PutUint16(oid[7:9], uint16(process))
	oid[9] = byte(counter >> 16)
	oid[10] = byte(counter >> 8)
	oid[11] = byte(counter)
	return oid
}

func scalarString(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case json.Number:
		s = x.String()
	case float64:
		if x == math.Trunc(x) {
			s = strconv.FormatInt(int64(x), 10)
		} else {
			s = strconv.FormatFloat(x, 'f', -1, 64)
		}
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func integer(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case float64:
		return int64(x), x == math.Trunc(x)
	case int:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

// CellString formats a cell value for display and for use as a path id.
func CellString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := scalarString(v); ok {
		return s
	}
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case map[string]any:
		if id, err := decodeIDObject(x); err == nil {
			return id.Value
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
