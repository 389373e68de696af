package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// envOr parses the variable named key, returning fallback when it is unset or does not parse.
func envOr[T any](key string, fallback T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	return envOr(key, fallback, strconv.Atoi)
}

func getEnvAsBool(key string, fallback bool) bool {
	return envOr(key, fallback, strconv.ParseBool)
}

func getEnvAsFloat(key string, fallback float64) float64 {
	return envOr(key, fallback, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	return envOr(key, fallback, time.ParseDuration)
}

// getEnvAsStringSlice splits a comma separated list, dropping blanks. An empty list keeps fallback.
func getEnvAsStringSlice(key string, fallback []string) []string {
	var out []string
	if raw, ok := os.LookupEnv(key); ok {
		for _, part := range strings.Split(raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func lowerOr(s, fallback string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return fallback
	}
	return s
}
