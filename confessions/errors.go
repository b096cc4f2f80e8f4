package confessions

import "fmt"

type TextTooShortError struct {
	Length int
	Min    int
}

func (err TextTooShortError) Error() string {
	return fmt.Sprintf("confession text is %d characters, minimum is %d", err.Length, err.Min)
}

type ProhibitedContentError struct {
	Term string
}

func (err ProhibitedContentError) Error() string {
	return fmt.Sprintf("confession text contains prohibited term %q", err.Term)
}

type NoCategoryError struct{}

func (err NoCategoryError) Error() string {
	return "no category selected"
}

type CategoryLimitError struct {
	Max int
}

func (err CategoryLimitError) Error() string {
	return fmt.Sprintf("at most %d categories may be selected", err.Max)
}

type UnknownCategoryError struct {
	Label string
}

func (err UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q", err.Label)
}
