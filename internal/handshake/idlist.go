package handshake

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseIDList parses a published device id list: whitespace-separated
// integers, one or many. A single bare id is valid, matching producers
// that publish a scalar when only one device exists.
func ParseIDList(content string) ([]int, error) {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty device id list")
	}
	ids := make([]int, 0, len(fields))
	for _, field := range fields {
		id, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid device id %q: %w", field, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// FormatIDList renders ids one per line for publication.
func FormatIDList(ids []int) string {
	var builder strings.Builder
	for _, id := range ids {
		builder.WriteString(strconv.Itoa(id))
		builder.WriteString("\n")
	}
	return builder.String()
}
