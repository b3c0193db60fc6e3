package ddbrepo

// chunk splits items into consecutive slices of at most size elements,
// preserving order. Empty input yields no chunks.
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		panic("ddbrepo: chunk size must be positive")
	}
	if len(items) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
