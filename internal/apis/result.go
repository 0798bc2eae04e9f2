// Package apis holds types shared by the search-engine API clients.
package apis

// Result is the outcome of a submit-style call.
type Result struct {
	// Success is true only when every submitted URL was accepted.
	Success  bool     `json:"success"`
	URLCount int      `json:"urlCount"`
	Errors   []string `json:"errors"`
}

// Chunk splits urls into consecutive slices of at most size elements.
func Chunk(urls []string, size int) [][]string {
	if size <= 0 {
		size = len(urls)
	}
	var chunks [][]string
	for start := 0; start < len(urls); start += size {
		end := min(start+size, len(urls))
		chunks = append(chunks, urls[start:end])
	}
	return chunks
}
