// internal/prospects/prospects.go
// Package prospects loads and validates the prospect list a batch run works
// through. Validation is strict at load time: a malformed list aborts before
// any browser session starts, so a half-processed batch can never be blamed
// on bad input data.
package prospects

import (
	"errors"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/courier-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Load reads the JSON prospect list at path.
func Load(path string, logger *zap.Logger) ([]schemas.Prospect, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prospects file %q: %w", path, err)
	}
	list, err := Parse(data, logger)
	if err != nil {
		return nil, fmt.Errorf("prospects file %q: %w", path, err)
	}
	return list, nil
}

// Parse decodes and validates a prospect list. Violations are reported as a
// DataIntegrityError naming the index and field of the offending record.
func Parse(data []byte, logger *zap.Logger) ([]schemas.Prospect, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var list []schemas.Prospect
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, &schemas.DataIntegrityError{
			Field:  "prospects",
			Reason: fmt.Sprintf("malformed JSON: %v", err),
		}
	}
	if len(list) == 0 {
		return nil, &schemas.DataIntegrityError{
			Field:  "prospects",
			Reason: "list is empty",
		}
	}

	seen := make(map[string]int, len(list))
	for i, p := range list {
		if err := p.Validate(); err != nil {
			var die *schemas.DataIntegrityError
			if errors.As(err, &die) {
				return nil, &schemas.DataIntegrityError{
					Field:  fmt.Sprintf("prospects[%d].%s", i, die.Field),
					Reason: die.Reason,
				}
			}
			return nil, err
		}

		// Duplicates stay in the list: the batch contract is one outcome per
		// input row. They are almost always a data-prep mistake, so say so.
		if first, dup := seen[p.ProfileURL]; dup {
			logger.Warn("Duplicate prospect URL in list; it will be attempted again.",
				zap.String("url", p.ProfileURL),
				zap.Int("first_index", first),
				zap.Int("duplicate_index", i))
			continue
		}
		seen[p.ProfileURL] = i
	}

	logger.Debug("Prospect list loaded.", zap.Int("count", len(list)))
	return list, nil
}
