package graph

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateTime is the schema's DateTime scalar, serialized as RFC 3339 in UTC.
type DateTime struct {
	time.Time
}

// ImplementsGraphQLType maps DateTime to the "DateTime" scalar.
func (DateTime) ImplementsGraphQLType(name string) bool {
	return name == "DateTime"
}

// UnmarshalGraphQL accepts RFC 3339 strings and unix seconds.
func (t *DateTime) UnmarshalGraphQL(input interface{}) error {
	switch v := input.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("invalid DateTime %q: %w", v, err)
		}
		t.Time = parsed
		return nil
	case int32:
		t.Time = time.Unix(int64(v), 0)
		return nil
	case float64:
		t.Time = time.Unix(int64(v), 0)
		return nil
	default:
		return fmt.Errorf("wrong type for DateTime: %T", input)
	}
}

func (t DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339))
}
