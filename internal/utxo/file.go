package utxo

import (
	"encoding/json"
	"os"
)

// SaveJSON writes v as indented JSON, overwriting path.
func SaveJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// LoadJSON decodes the JSON file at path into v.
func LoadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}

// SaveToFile writes the state as state JSON.
func (s *State) SaveToFile(path string) error {
	return SaveJSON(path, s)
}

// LoadStateFromFile reads a state written by SaveToFile.
func LoadStateFromFile(path string) (*State, error) {
	var s State
	if err := LoadJSON(path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
