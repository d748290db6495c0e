package extraction

// Strategy is one way of finding a field in recovered text
type Strategy[T any] struct {
	Name string
	Find func(text string) (T, bool)
}

// firstMatch evaluates strategies in priority order and stops at the first hit
func firstMatch[T any](text string, strategies []Strategy[T]) (T, string, bool) {
	for _, s := range strategies {
		if v, ok := s.Find(text); ok {
			return v, s.Name, true
		}
	}
	var zero T
	return zero, "", false
}
