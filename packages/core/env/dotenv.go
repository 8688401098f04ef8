package env

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadDotEnv parses a .env file into environment entries.
// Supports: KEY=value, export KEY=value, KEY="quoted value", KEY='single quoted', # comments.
// Nothing is exported to the OS environment.
func LoadDotEnv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open env file: %w", err)
	}
	defer file.Close()

	result := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}

		value, err = unquote(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		result[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}

	return result, nil
}

func unquote(value string) (string, error) {
	if len(value) < 2 {
		return value, nil
	}
	switch {
	case value[0] == '"' && value[len(value)-1] == '"':
		s, err := strconv.Unquote(value)
		if err != nil {
			return "", fmt.Errorf("invalid quoted value %s", value)
		}
		return s, nil
	case value[0] == '\'' && value[len(value)-1] == '\'':
		return value[1 : len(value)-1], nil
	}
	return value, nil
}
