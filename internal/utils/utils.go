// Package utils holds small generic helpers shared across the tracker:
// slice processing (Map, Filter, Reduce), numeric coercion for templates
// and random secrets.
package utils

import (
	"crypto/rand"
)

type mapFunc[E any, R any] func(E) R

// Map applies f to every element of s.
func Map[S ~[]E, E any, R any](s S, f mapFunc[E, R]) []R {
	result := make([]R, len(s))
	for i, e := range s {
		result[i] = f(e)
	}

	return result
}

type keepFunc[E any] func(E) bool

// Filter returns the elements of s for which f is true. The result is never
// nil.
func Filter[S ~[]E, E any](s S, f keepFunc[E]) S {
	result := S{}
	for _, v := range s {
		if f(v) {
			result = append(result, v)
		}
	}

	return result
}

type reduceFunc[E any] func(cur, next E) E

// Reduce folds s into a single value starting from init.
func Reduce[E any](s []E, init E, f reduceFunc[E]) E {
	cur := init
	for _, v := range s {
		cur = f(cur, v)
	}

	return cur
}

// ToFloat64 converts any numeric value to float64, and anything else to 0.
func ToFloat64(value any) float64 {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint8:
		return float64(v)
	case uint16:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}

// GenerateRandomString returns a random alphanumeric string of the given
// length.
func GenerateRandomString(length int) (string, error) {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	bytes := make([]byte, length)
	random := make([]byte, length)
	_, err := rand.Read(random)
	if err != nil {
		return "", err
	}
	for i := 0; i < length; i++ {
		bytes[i] = chars[int(random[i])%len(chars)]
	}
	return string(bytes), nil
}
