package form

import "strings"

// CNIC values are edited through three groups of single-digit boxes laid out
// 5-7-1. The boxes are a view over one string joined as "NNNNN-NNNNNNN-N",
// with spaces standing in for digits not yet entered.

var cnicGroupLens = [3]int{5, 7, 1}

// BoxPos addresses one digit box: a group (0..2) and an index within it.
type BoxPos struct {
	Group int `json:"group"`
	Index int `json:"index"`
}

// cnicGroups splits a stored CNIC value into its three groups, each padded
// with spaces to the group's full width.
func cnicGroups(value string) [3][]rune {
	var groups [3][]rune
	parts := strings.SplitN(value, "-", 3)
	for i, width := range cnicGroupLens {
		part := ""
		if i < len(parts) {
			part = parts[i]
		}
		padded := []rune(part)
		for len(padded) < width {
			padded = append(padded, ' ')
		}
		groups[i] = padded[:width]
	}
	return groups
}

// joinCNIC reassembles the stored value from groups, trimming the pad spaces
// of each group.
func joinCNIC(groups [3][]rune) string {
	parts := make([]string, 3)
	for i, g := range groups {
		parts[i] = strings.TrimSpace(string(g))
	}
	return strings.Join(parts, "-")
}

// CNICBoxes returns the 13 per-box characters for rendering, spaces for
// absent digits.
func CNICBoxes(value string) [3][]rune {
	return cnicGroups(value)
}

// SetCNICDigit writes a single digit into the box at pos and returns the new
// stored value plus the box that should receive focus next. Non-digit input
// is rejected and leaves the value untouched. Writing an empty ch clears the
// box without moving focus.
func SetCNICDigit(value string, pos BoxPos, ch string) (string, BoxPos, bool) {
	if !validBoxPos(pos) {
		return value, pos, false
	}
	if ch != "" && (len(ch) != 1 || ch[0] < '0' || ch[0] > '9') {
		return value, pos, false
	}

	groups := cnicGroups(value)
	if ch == "" {
		groups[pos.Group][pos.Index] = ' '
		return joinCNIC(groups), pos, true
	}
	groups[pos.Group][pos.Index] = rune(ch[0])

	next := pos
	if pos.Index < cnicGroupLens[pos.Group]-1 {
		next = BoxPos{Group: pos.Group, Index: pos.Index + 1}
	} else if pos.Group < 2 {
		next = BoxPos{Group: pos.Group + 1, Index: 0}
	}
	return joinCNIC(groups), next, true
}

// CNICBackspace handles a Backspace keystroke in the box at pos. A box that
// holds a digit is cleared in place; an empty box clears the previous box
// and moves focus to it, crossing group boundaries.
func CNICBackspace(value string, pos BoxPos) (string, BoxPos) {
	if !validBoxPos(pos) {
		return value, pos
	}
	groups := cnicGroups(value)

	if groups[pos.Group][pos.Index] != ' ' {
		groups[pos.Group][pos.Index] = ' '
		return joinCNIC(groups), pos
	}

	prev, ok := prevBox(pos)
	if !ok {
		return value, pos
	}
	groups[prev.Group][prev.Index] = ' '
	return joinCNIC(groups), prev
}

// CNICMoveLeft returns the box to the left of pos, crossing group
// boundaries; the value is never mutated by arrow movement.
func CNICMoveLeft(pos BoxPos) BoxPos {
	if prev, ok := prevBox(pos); ok {
		return prev
	}
	return pos
}

// CNICMoveRight returns the box to the right of pos, crossing group
// boundaries.
func CNICMoveRight(pos BoxPos) BoxPos {
	if next, ok := nextBox(pos); ok {
		return next
	}
	return pos
}

func validBoxPos(pos BoxPos) bool {
	return pos.Group >= 0 && pos.Group < 3 &&
		pos.Index >= 0 && pos.Index < cnicGroupLens[pos.Group]
}

func prevBox(pos BoxPos) (BoxPos, bool) {
	if pos.Index > 0 {
		return BoxPos{Group: pos.Group, Index: pos.Index - 1}, true
	}
	if pos.Group > 0 {
		return BoxPos{Group: pos.Group - 1, Index: cnicGroupLens[pos.Group-1] - 1}, true
	}
	return pos, false
}

func nextBox(pos BoxPos) (BoxPos, bool) {
	if pos.Index < cnicGroupLens[pos.Group]-1 {
		return BoxPos{Group: pos.Group, Index: pos.Index + 1}, true
	}
	if pos.Group < 2 {
		return BoxPos{Group: pos.Group + 1, Index: 0}, true
	}
	return pos, false
}
