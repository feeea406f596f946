package dexapi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OrderBy is spelled "field", "+field" or "-field".
type OrderBy struct {
	Field      string
	Descending bool
}

func ParseOrderBy(s string) (OrderBy, error) {
	var o OrderBy
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "-"):
		o.Descending = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" {
		return OrderBy{}, fmt.Errorf("order-by has no field name")
	}
	if strings.ContainsAny(s, "+- \t") {
		return OrderBy{}, fmt.Errorf("invalid order-by field %q", s)
	}
	o.Field = s
	return o, nil
}

func (o OrderBy) String() string {
	if o.Descending {
		return "-" + o.Field
	}
	return "+" + o.Field
}

func (o OrderBy) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *OrderBy) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("order-by must be a string: %w", err)
	}
	parsed, err := ParseOrderBy(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

func (o *OrderBy) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseOrderBy(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

func (o OrderBy) MarshalYAML() (interface{}, error) {
	return o.String(), nil
}
