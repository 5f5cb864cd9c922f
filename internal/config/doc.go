// Package config provides configuration loading, merging, and path management.
//
// # Configuration Loading
//
// Load searches for and merges configuration from multiple sources in
// priority order (lowest first):
//
//  1. Global config (~/.config/agentcore/config.json[c])
//  2. Project config (<directory>/.agentcore/config.json[c])
//  3. OPENCODE_CONFIG file, if set
//  4. OPENCODE_CONFIG_CONTENT inline JSON, if set — replaces the file-based
//     layers above entirely rather than merging on top of them
//  5. Environment variables (highest precedence)
//
// A .env file in directory is loaded first via joho/godotenv so provider
// API keys can live outside the JSON config.
//
// # Supported Formats
//
// Both JSON and JSONC (JSON with comments, removed by a regular-expression
// comment stripper) are accepted: config.json and config.jsonc.
//
// # Variable Interpolation
//
// Configuration files support two placeholder forms, resolved before the
// JSON is parsed:
//   - {env:VAR_NAME} — environment variable value (empty string if unset)
//   - {file:path} — contents of path, resolved relative to the config
//     file's directory when not absolute; left as-is if the file can't be
//     read
//
// Example:
//
//	{
//	  "provider": {
//	    "anthropic": {
//	      "options": { "apiKey": "{env:ANTHROPIC_API_KEY}" }
//	    }
//	  },
//	  "instructions": ["{file:custom-instructions.txt}"]
//	}
//
// # Configuration Merging
//
// mergeConfig combines sources by overwriting scalars, merging maps by
// key, and replacing slices/struct blocks wholesale when the source sets
// them — later sources win on a per-field basis, not whole-document
// replacement.
//
// # Path Management
//
// GetPaths returns XDG Base Directory Specification compliant paths under
// the "agentcore" app directory name (Data, Config, Cache, State),
// adapted to APPDATA on Windows.
//
// # Environment Variable Overrides
//
//   - OPENCODE_MODEL — override the default model
//   - OPENCODE_SMALL_MODEL — override the small model
//   - OPENCODE_CONFIG — path to a specific config file, merged last
//   - OPENCODE_CONFIG_CONTENT — inline JSON configuration
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY, GOOGLE_API_KEY,
//     AWS_ACCESS_KEY_ID — provider API keys, applied only when the config
//     didn't already set one
package config
