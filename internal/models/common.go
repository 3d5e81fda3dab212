package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Pagination describes list paging metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// JSONMap stores a flat string map in a jsonb column.
type JSONMap map[string]string

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = JSONMap{}
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("jsonmap: unsupported source type %T", src)
	}
	return json.Unmarshal(raw, m)
}

// StringSlice stores a list of strings in a jsonb column.
type StringSlice []string

// Value implements driver.Valuer.
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *StringSlice) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("stringslice: unsupported source type %T", src)
	}
	return json.Unmarshal(raw, s)
}
