// Package settings loads the user's watchlists of currencies and stocks.
package settings

import (
	"encoding/json"
	"os"
	"strings"

	"finreport/internal/core"
	"finreport/internal/log"
)

// DefaultPath is where the settings file is looked up when SETTINGS_PATH is unset.
const DefaultPath = "user_settings.json"

// Load reads settings from path. Any problem (missing file, empty file,
// malformed JSON, a top-level value that is not an object) yields empty
// settings. List entries that are not strings are skipped.
func Load(path string, logger *log.Logger) core.Settings {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSettings)
	empty := core.Settings{UserCurrencies: []string{}, UserStocks: []string{}}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Settings file unreadable, using empty settings", log.FieldSource, path, log.FieldError, err.Error())
		return empty
	}
	if strings.TrimSpace(string(data)) == "" {
		logger.Warn("Settings file is empty", log.FieldSource, path)
		return empty
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		logger.Warn("Settings file is not a JSON object", log.FieldSource, path)
		return empty
	}

	return core.Settings{
		UserCurrencies: stringList(raw["user_currencies"]),
		UserStocks:     stringList(raw["user_stocks"]),
	}
}

func stringList(msg json.RawMessage) []string {
	out := []string{}
	if len(msg) == 0 {
		return out
	}
	var items []any
	if err := json.Unmarshal(msg, &items); err != nil {
		return out
	}
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
