package inserter

// Edit is the keystroke change that turns text already on screen into a new
// text: delete Backspaces characters, then type Insert.
type Edit struct {
	Backspaces int
	Insert     string
}

// IsEmpty reports whether the edit changes nothing
func (e Edit) IsEmpty() bool {
	return e.Backspaces == 0 && e.Insert == ""
}

// Diff computes the minimal edit from shown to next that only touches text
// after their common prefix. Lengths are counted in runes, which is what a
// backspace removes.
func Diff(shown, next string) Edit {
	a := []rune(shown)
	b := []rune(next)

	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}

	return Edit{
		Backspaces: len(a) - prefix,
		Insert:     string(b[prefix:]),
	}
}
