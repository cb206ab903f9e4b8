package database

import (
	"encoding/json"

	"github.com/driftwoodapp/feedd/app/feed"
)

// Interests and enclosures are stored as JSON text columns.

func marshalStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func unmarshalStrings(data string) []string {
	if data == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

func marshalEnclosures(enclosures []feed.Enclosure) string {
	if len(enclosures) == 0 {
		return "[]"
	}
	stored := make([]Enclosure, len(enclosures))
	for i, enc := range enclosures {
		stored[i] = Enclosure(enc)
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func unmarshalEnclosures(data string) []Enclosure {
	if data == "" {
		return nil
	}
	var enclosures []Enclosure
	if err := json.Unmarshal([]byte(data), &enclosures); err != nil {
		return nil
	}
	if len(enclosures) == 0 {
		return nil
	}
	return enclosures
}
