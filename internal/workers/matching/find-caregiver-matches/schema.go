package findcaregivermatches

import (
	"encoding/json"

	"caring-compass-workers/internal/common/errors"
	"caring-compass-workers/internal/common/validation"
)

// Process variables other than these are ignored, so extra properties are allowed.
const inputSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["visitId", "clientId", "matchingCriteria"],
  "properties": {
    "visitId": {"type": "string", "minLength": 1},
    "clientId": {"type": "string", "minLength": 1},
    "autoAssign": {"type": "boolean"},
    "notifyCoordinator": {"type": "boolean"},
    "metadata": {"type": "object"},
    "matchingCriteria": {
      "type": "object",
      "required": ["requiredSkills", "maxDistance", "visitDate", "visitDuration"],
      "properties": {
        "requiredSkills": {"type": "array", "items": {"type": "string"}},
        "preferredLanguages": {"type": "array", "items": {"type": "string"}},
        "genderPreference": {"type": "string", "enum": ["MALE", "FEMALE"]},
        "maxDistance": {"type": "number", "exclusiveMinimum": 0},
        "visitDate": {"type": "string", "format": "date-time"},
        "visitDuration": {"type": "number", "exclusiveMinimum": 0},
        "hourlyRateMax": {"type": "number", "exclusiveMinimum": 0}
      }
    }
  }
}`

var inputValidator = validation.MustValidator(inputSchema)

// parseInput validates job variables and decodes them. notifyCoordinator
// defaults to true when absent.
func parseInput(variables string) (*Input, error) {
	if res := inputValidator.ValidateJSON(variables); !res.Valid {
		return nil, errors.NewInvalidMatchingInputError(res.Summary())
	}

	input := Input{NotifyCoordinator: true}
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidMatchingInputError(err.Error())
	}
	if input.MatchingCriteria.PreferredLanguages == nil {
		input.MatchingCriteria.PreferredLanguages = []string{}
	}
	return &input, nil
}
