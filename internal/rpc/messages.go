package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Field names used in request and response structs.
const (
	FieldTable       = "table"
	FieldID          = "id"
	FieldPayload     = "payload"
	FieldLastUpdated = "last_updated"
	FieldSince       = "since"
	FieldRecords     = "records"
	FieldUsername    = "username"
	FieldPassword    = "password"
	FieldAccessToken = "access_token"
	FieldAdmin       = "admin"
	FieldStatus      = "status"
)

var ErrMalformed = errors.New("malformed message")

// Record is the wire form of a stored record.
type Record struct {
	ID          string
	Payload     json.RawMessage
	LastUpdated time.Time
}

func payloadValue(raw json.RawMessage) (*structpb.Value, error) {
	if len(raw) == 0 {
		return structpb.NewNullValue(), nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}
	pv, err := structpb.NewValue(v)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}
	return pv, nil
}

// Payload returns the JSON encoding of the payload field of s, or nil when
// the field is missing or null.
func Payload(s *structpb.Struct) (json.RawMessage, error) {
	v, ok := s.GetFields()[FieldPayload]
	if !ok {
		return nil, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, nil
	}
	b, err := json.Marshal(v.AsInterface())
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}
	return b, nil
}

// String returns the string field name of s or "".
func String(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

// Bool returns the bool field name of s or false.
func Bool(s *structpb.Struct, name string) bool {
	return s.GetFields()[name].GetBoolValue()
}

// Time parses an RFC 3339 timestamp field. A missing field yields the zero time.
func Time(s *structpb.Struct, name string) (time.Time, error) {
	raw := String(s, name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	return t, nil
}

func formatTime(t time.Time) *structpb.Value {
	return structpb.NewStringValue(t.UTC().Format(time.RFC3339Nano))
}

// NewRecordStruct encodes r.
func NewRecordStruct(r Record) (*structpb.Struct, error) {
	payload, err := payloadValue(r.Payload)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldID:          structpb.NewStringValue(r.ID),
		FieldPayload:     payload,
		FieldLastUpdated: formatTime(r.LastUpdated),
	}}, nil
}

// ParseRecord decodes a struct produced by NewRecordStruct.
func ParseRecord(s *structpb.Struct) (Record, error) {
	id := String(s, FieldID)
	if id == "" {
		return Record{}, fmt.Errorf("%w: record without id", ErrMalformed)
	}
	payload, err := Payload(s)
	if err != nil {
		return Record{}, err
	}
	updated, err := Time(s, FieldLastUpdated)
	if err != nil {
		return Record{}, err
	}
	return Record{ID: id, Payload: payload, LastUpdated: updated}, nil
}

// NewRecordListStruct encodes records under the "records" field.
func NewRecordListStruct(records []Record) (*structpb.Struct, error) {
	values := make([]*structpb.Value, 0, len(records))
	for _, r := range records {
		s, err := NewRecordStruct(r)
		if err != nil {
			return nil, err
		}
		values = append(values, structpb.NewStructValue(s))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldRecords: structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}, nil
}

// ParseRecordList decodes a struct produced by NewRecordListStruct.
func ParseRecordList(s *structpb.Struct) ([]Record, error) {
	values := s.GetFields()[FieldRecords].GetListValue().GetValues()
	out := make([]Record, 0, len(values))
	for i, v := range values {
		rs := v.GetStructValue()
		if rs == nil {
			return nil, fmt.Errorf("%w: records[%d] is not an object", ErrMalformed, i)
		}
		r, err := ParseRecord(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// NewCreateRequest asks the server to store payload as a new record of table.
func NewCreateRequest(table string, payload json.RawMessage) (*structpb.Struct, error) {
	pv, err := payloadValue(payload)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldTable:   structpb.NewStringValue(table),
		FieldPayload: pv,
	}}, nil
}

// NewUpdateRequest replaces the payload of an existing server record.
func NewUpdateRequest(table, id string, payload json.RawMessage) (*structpb.Struct, error) {
	s, err := NewCreateRequest(table, payload)
	if err != nil {
		return nil, err
	}
	s.Fields[FieldID] = structpb.NewStringValue(id)
	return s, nil
}

// NewKeyRequest addresses a single record.
func NewKeyRequest(table, id string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldTable: structpb.NewStringValue(table),
		FieldID:    structpb.NewStringValue(id),
	}}
}

// NewListRequest lists records of table. A zero since lists everything.
func NewListRequest(table string, since time.Time) *structpb.Struct {
	s := &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldTable: structpb.NewStringValue(table),
	}}
	if !since.IsZero() {
		s.Fields[FieldSince] = formatTime(since)
	}
	return s
}

func NewCredentials(username string, password []byte) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldUsername: structpb.NewStringValue(username),
		FieldPassword: structpb.NewStringValue(string(password)),
	}}
}

func NewLoginResponse(token string, admin bool) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldAccessToken: structpb.NewStringValue(token),
		FieldAdmin:       structpb.NewBoolValue(admin),
	}}
}

func NewStatus(status string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldStatus: structpb.NewStringValue(status),
	}}
}
