package focus

import "math"

// ScrollModel is the transcript viewer's vertical adjustment. Value is the
// offset of the viewport top from the content top.
type ScrollModel struct {
	value   float64
	content float64
	page    float64
}

// SetBounds updates content and page sizes, clamping the current value.
func (s *ScrollModel) SetBounds(content, page float64) {
	if content < 0 {
		content = 0
	}
	if page < 0 {
		page = 0
	}
	s.content = content
	s.page = page
	s.value = s.clamp(s.value)
}

// ScrollBy adjusts the value by amount. Infinite amounts jump to an end.
func (s *ScrollModel) ScrollBy(amount float64) {
	if math.IsNaN(amount) {
		return
	}
	s.value = s.clamp(s.value + amount)
}

// ScrollToBottom moves to the last page.
func (s *ScrollModel) ScrollToBottom() {
	s.value = s.max()
}

// Value returns the current offset.
func (s *ScrollModel) Value() float64 {
	return s.value
}

// AtBottom reports whether the last page is shown.
func (s *ScrollModel) AtBottom() bool {
	return s.value >= s.max()
}

func (s *ScrollModel) max() float64 {
	if s.content <= s.page {
		return 0
	}
	return s.content - s.page
}

func (s *ScrollModel) clamp(value float64) float64 {
	if value < 0 {
		return 0
	}
	if max := s.max(); value > max {
		return max
	}
	return value
}
