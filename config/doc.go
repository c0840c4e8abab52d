// Package config loads the YAML file describing runtime profiles,
// generation caps, and policy flags for a wasit run (§6 "Config").
package config
