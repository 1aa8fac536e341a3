// Package util provides shared helper functions for the scandash service.
package util

import (
	"net/url"
	"os"
	"strings"

	"github.com/package-url/packageurl-go"
)

// DecodeParam decodes a URL path parameter, so package names with
// encoded slashes (scoped npm packages) resolve correctly
func DecodeParam(param string) (string, error) {
	return url.PathUnescape(param)
}

// GetEnvDefault is a convenience function for handling env vars
func GetEnvDefault(key, defVal string) string {
	val, ex := os.LookupEnv(key) // get the env var
	if !ex {                     // not found return default
		return defVal
	}
	return val // return value for env var
}

// IsEmpty checks if a string is empty or contains only whitespace
func IsEmpty(s string) bool {
	return len(strings.TrimSpace(s)) == 0
}

// IsNotEmpty checks if a string is not empty
func IsNotEmpty(s string) bool {
	return !IsEmpty(s)
}

// FileExists checks if a file exists
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}

// Contains checks if a string slice contains an item
func Contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// GetStringOrDefault returns value or default if empty
func GetStringOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

// CleanPURL removes qualifiers (after ?) and subpath (after #) to create canonical PURL
func CleanPURL(purlStr string) (string, error) {
	parsed, err := packageurl.FromString(purlStr)
	if err != nil {
		return "", err
	}

	// Create new PURL without qualifiers and subpath
	cleaned := packageurl.PackageURL{
		Type:      parsed.Type,
		Namespace: parsed.Namespace,
		Name:      parsed.Name,
		Version:   parsed.Version,
		// Qualifiers and Subpath are intentionally omitted
	}

	return strings.ToLower(cleaned.ToString()), nil
}

// ParsePURL parses a PURL string and returns the parsed PackageURL
func ParsePURL(purlStr string) (*packageurl.PackageURL, error) {
	parsed, err := packageurl.FromString(purlStr)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// PurlTypeToEcosystem converts a PURL type to the ecosystem label used
// by the dashboard views (node, python, rust, ...)
func PurlTypeToEcosystem(purlType string) string {
	mapping := map[string]string{
		"npm":      "node",
		"pypi":     "python",
		"cargo":    "rust",
		"golang":   "go",
		"maven":    "java",
		"nuget":    "dotnet",
		"gem":      "ruby",
		"composer": "php",
	}
	return mapping[strings.ToLower(purlType)]
}
