package tess

import (
	"fmt"
	"strings"
)

// Page is a chunk of consecutive epochs held in ascending order.
type Page struct {
	// Number is the browsing position; 1 is the most recent chunk.
	Number int
	Epochs []int
}

// Display returns the page's epochs most recent first. The page itself is
// left untouched.
func (p Page) Display() []int {
	out := make([]int, len(p.Epochs))
	for i, e := range p.Epochs {
		out[len(out)-1-i] = e
	}
	return out
}

// Label enumerates the displayed epochs, e.g. "20, 19, 18".
func (p Page) Label() string {
	parts := make([]string, 0, len(p.Epochs))
	for _, e := range p.Display() {
		parts = append(parts, fmt.Sprint(e))
	}
	return strings.Join(parts, ", ")
}

// Paginate splits ascending epochs into chunks of at most pageSize, returned
// in chronological order. Chunks are cut from the newest end, so only the
// oldest chunk may be short. pageSize <= 0 yields a single page.
func Paginate(epochs []int, pageSize int) []Page {
	n := len(epochs)
	if n == 0 {
		return nil
	}
	if pageSize <= 0 || pageSize > n {
		pageSize = n
	}
	count := (n + pageSize - 1) / pageSize
	pages := make([]Page, count)
	end := n
	for k := 0; k < count; k++ {
		start := end - pageSize
		if start < 0 {
			start = 0
		}
		chunk := make([]int, end-start)
		copy(chunk, epochs[start:end])
		pages[count-1-k] = Page{Number: k + 1, Epochs: chunk}
		end = start
	}
	return pages
}

// SelectPage returns the page with the given number, clamped into range.
func SelectPage(pages []Page, number int) (Page, bool) {
	if len(pages) == 0 {
		return Page{}, false
	}
	if number < 1 {
		number = 1
	}
	if number > len(pages) {
		number = len(pages)
	}
	return pages[len(pages)-number], true
}

// NeedsSelector reports whether there is more than one page to choose from.
func NeedsSelector(pages []Page) bool { return len(pages) > 1 }

// Labels returns the page labels ordered by page number.
func Labels(pages []Page) []string {
	out := make([]string, len(pages))
	for _, p := range pages {
		out[p.Number-1] = p.Label()
	}
	return out
}
