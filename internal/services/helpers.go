package services

import (
	"context"
	"sort"
	"strings"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func normaliseIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

// without returns values minus every entry of excluded, preserving order.
func without(values []string, excluded ...string) []string {
	skip := make(map[string]struct{}, len(excluded))
	for _, e := range excluded {
		skip[e] = struct{}{}
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := skip[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

// difference returns entries of a missing from b, in a's order.
func difference(a, b []string) []string {
	present := make(map[string]struct{}, len(b))
	for _, v := range b {
		present[v] = struct{}{}
	}
	var out []string
	for _, v := range normaliseIDs(a) {
		if _, ok := present[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

func chunk[T any](values []T, size int) [][]T {
	if size <= 0 {
		size = len(values)
	}
	var chunks [][]T
	for start := 0; start < len(values); start += size {
		end := min(start+size, len(values))
		chunks = append(chunks, values[start:end])
	}
	return chunks
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
