package server

import (
	"fmt"
)

// Helper functions to safely extract values from interface{} slices or maps without panicking

func getFloat64(val any) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, fmt.Errorf("expected float64, got %T", val)
}

func getMap(val any) (map[string]any, error) {
	if v, ok := val.(map[string]any); ok {
		return v, nil
	}
	return nil, fmt.Errorf("expected map[string]any, got %T", val)
}

func getBool(val any) (bool, error) {
	if v, ok := val.(bool); ok {
		return v, nil
	}
	return false, fmt.Errorf("expected bool, got %T", val)
}

// getArgAsInt safely gets the argument at index i as an int (JSON numbers arrive as float64)
func getArgAsInt(args []any, index int) (int, error) {
	if index >= len(args) {
		return 0, fmt.Errorf("argument index %d out of range", index)
	}
	f, err := getFloat64(args[index])
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("expected integer, got %v", f)
	}
	return int(f), nil
}

// getArgAsMap safely gets the argument at index i as a map
func getArgAsMap(args []any, index int) (map[string]any, error) {
	if index >= len(args) {
		return nil, fmt.Errorf("argument index %d out of range", index)
	}
	return getMap(args[index])
}

// getCallback safely gets a callback function from the arguments (usually the last one)
func getCallback(args []any) func([]any, error) {
	if len(args) > 0 {
		if cb, ok := args[len(args)-1].(func([]any, error)); ok {
			return cb
		}
	}
	return nil
}

// safeMapGetBool returns false for a missing or non-bool value
func safeMapGetBool(m map[string]any, key string) bool {
	val, ok := m[key]
	if !ok {
		return false
	}
	b, err := getBool(val)
	return err == nil && b
}
