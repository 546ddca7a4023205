package pdsclient

import "encoding/json"

// RecordValue is a validated wrapper over a JSON value that guarantees the
// value is a JSON object carrying a string "$type" field. It is the only
// accepted payload shape at the record-write boundary.
type RecordValue struct {
	raw map[string]interface{}
}

// NewRecordValue validates v and wraps it. v must be a JSON object
// (map[string]interface{}) with a string "$type" field.
func NewRecordValue(v map[string]interface{}) (RecordValue, error) {
	if v == nil {
		return RecordValue{}, NewInvalidInputError("record value must be a JSON object")
	}
	typeVal, ok := v["$type"]
	if !ok {
		return RecordValue{}, NewInvalidInputError("record value must contain a $type field")
	}
	typeStr, ok := typeVal.(string)
	if !ok {
		return RecordValue{}, NewInvalidInputError("record value $type must be a string")
	}
	if typeStr == "" {
		return RecordValue{}, NewInvalidInputError("record value $type must not be empty")
	}
	return RecordValue{raw: v}, nil
}

// WithType overwrites or injects "$type" before validating.
func WithType(typeStr string, value map[string]interface{}) (RecordValue, error) {
	cp := make(map[string]interface{}, len(value)+1)
	for k, v := range value {
		cp[k] = v
	}
	cp["$type"] = typeStr
	return NewRecordValue(cp)
}

// RecordType returns the value's "$type" field. Total once constructed.
func (r RecordValue) RecordType() string {
	t, _ := r.raw["$type"].(string)
	return t
}

// AsValue returns the underlying JSON object.
func (r RecordValue) AsValue() map[string]interface{} {
	return r.raw
}

// MarshalJSON serializes transparently: the wrapper disappears on the wire.
func (r RecordValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.raw)
}

// UnmarshalJSON runs the full validator on deserialization.
func (r *RecordValue) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return NewInvalidInputError("record value must be a JSON object: " + err.Error())
	}
	v, err := NewRecordValue(m)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Record is a single stored record: its address, content identifier, and value.
type Record struct {
	URI   AtUri
	CID   string
	Value RecordValue
}

// ListRecordsOutput is a page of records plus an opaque continuation cursor.
type ListRecordsOutput struct {
	Records []Record
	Cursor  string
}
