// package algorithms provides generic slice helpers.
package algorithms

// Map applies f to each element of s and returns the results.
func Map[T, R any](s []T, f func(T) R) []R {
	r := make([]R, 0, len(s))
	for _, v := range s {
		r = append(r, f(v))
	}
	return r
}

// Uniq returns the distinct elements of s in first seen order.
func Uniq[T comparable](s []T) []T {
	r := make([]T, 0, len(s))
	seen := make(map[T]struct{}, len(s))
	for _, v := range s {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		r = append(r, v)
	}
	return r
}
