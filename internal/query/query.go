package query

import (
	"cmp"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/phrazzld/tasklist/internal/domain"
)

// Sort keys understood by Query.
const (
	KeyFileOrder    = "file_order"
	KeyPriority     = "priority"
	KeyCompleted    = "completed"
	KeyDue          = "due"
	KeyThreshold    = "threshold"
	KeyCreated      = "created"
	KeyAlphabetical = "alphabetical"
	KeyList         = "list"
	KeyTag          = "tag"
)

// NoneFilter in Lists or Tags matches tasks without any list or tag.
const NoneFilter = "-"

// ErrUnknownSortKey is returned for sort keys not listed above.
var ErrUnknownSortKey = errors.New("unknown sort key")

var knownKeys = []string{
	KeyFileOrder, KeyPriority, KeyCompleted, KeyDue, KeyThreshold,
	KeyCreated, KeyAlphabetical, KeyList, KeyTag,
}

// SortKey is one entry of a sort list.
type SortKey struct {
	Name string
	Desc bool
}

// String renders the key as it is written in a sort list.
func (k SortKey) String() string {
	if k.Desc {
		return "-" + k.Name
	}
	return "+" + k.Name
}

// ParseSorts parses entries such as "+priority", "-due" or "alphabetical".
// Comma separated entries inside one string are split as well.
func ParseSorts(specs ...string) ([]SortKey, error) {
	var keys []SortKey
	for _, spec := range specs {
		for _, part := range strings.Split(spec, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			key := SortKey{Name: part}
			switch part[0] {
			case '-':
				key = SortKey{Name: part[1:], Desc: true}
			case '+':
				key = SortKey{Name: part[1:]}
			}
			if !lo.Contains(knownKeys, key.Name) {
				return nil, fmt.Errorf("%w: %q", ErrUnknownSortKey, key.Name)
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Query selects and orders tasks for display.
type Query struct {
	Sorts []SortKey

	// Lists and Tags keep tasks having at least one of the names.
	Lists []string
	Tags  []string

	// Text keeps tasks whose line contains it.
	Text string

	HideCompleted bool

	// HideFuture drops tasks whose threshold date is after Today.
	HideFuture bool

	// ShowSelected keeps selected tasks even when a filter rejects them.
	ShowSelected bool

	Today string
}

// FileOrder reports whether the base order is file order (true) or
// reverse file order (false). The first file_order key decides; without
// one, file order is used.
func (q *Query) FileOrder() bool {
	for _, k := range q.Sorts {
		if k.Name == KeyFileOrder {
			return !k.Desc
		}
	}
	return true
}

// Comparator chains every sort key except file_order. It returns nil when
// no such key is present, leaving the base order untouched. Tasks missing a
// key's value (no priority, no due date, no list) sort last whether the key
// is ascending or descending.
func (q *Query) Comparator(caseSensitive bool) func(a, b *domain.Task) int {
	var cmps []func(a, b *domain.Task) int
	for _, k := range q.Sorts {
		if c := comparatorFor(k.Name, k.Desc, caseSensitive); c != nil {
			cmps = append(cmps, c)
		}
	}
	if len(cmps) == 0 {
		return nil
	}
	return func(a, b *domain.Task) int {
		for _, c := range cmps {
			if r := c(a, b); r != 0 {
				return r
			}
		}
		return 0
	}
}

// Filter returns the tasks matching every criterion, in their given order.
func (q *Query) Filter(tasks []*domain.Task, caseSensitive bool) []*domain.Task {
	text := q.Text
	if !caseSensitive {
		text = strings.ToLower(text)
	}

	return lo.Filter(tasks, func(t *domain.Task, _ int) bool {
		if q.ShowSelected && t.Selected() {
			return true
		}
		if q.HideCompleted && t.Completed() {
			return false
		}
		if q.HideFuture && t.InFuture(q.Today) {
			return false
		}
		if len(q.Lists) > 0 && !matchNames(t.Lists(), q.Lists) {
			return false
		}
		if len(q.Tags) > 0 && !matchNames(t.Tags(), q.Tags) {
			return false
		}
		if text != "" {
			line := t.ToLine()
			if !caseSensitive {
				line = strings.ToLower(line)
			}
			if !strings.Contains(line, text) {
				return false
			}
		}
		return true
	})
}

func matchNames(have, want []string) bool {
	if len(have) == 0 {
		return lo.Contains(want, NoneFilter)
	}
	return lo.Some(have, want)
}

func comparatorFor(key string, desc, caseSensitive bool) func(a, b *domain.Task) int {
	fold := func(s string) string {
		if caseSensitive {
			return s
		}
		return strings.ToLower(s)
	}

	switch key {
	case KeyPriority:
		return func(a, b *domain.Task) int { return compareEmptyLast(a.Priority(), b.Priority(), desc) }
	case KeyCompleted:
		return func(a, b *domain.Task) int { return direction(compareBool(a.Completed(), b.Completed()), desc) }
	case KeyDue:
		return func(a, b *domain.Task) int { return compareEmptyLast(a.DueDate(), b.DueDate(), desc) }
	case KeyThreshold:
		return func(a, b *domain.Task) int { return compareEmptyLast(a.ThresholdDate(), b.ThresholdDate(), desc) }
	case KeyCreated:
		return func(a, b *domain.Task) int { return compareEmptyLast(a.CreateDate(), b.CreateDate(), desc) }
	case KeyAlphabetical:
		return func(a, b *domain.Task) int { return direction(cmp.Compare(fold(a.Text()), fold(b.Text())), desc) }
	case KeyList:
		return func(a, b *domain.Task) int {
			return compareEmptyLast(fold(first(a.Lists())), fold(first(b.Lists())), desc)
		}
	case KeyTag:
		return func(a, b *domain.Task) int {
			return compareEmptyLast(fold(first(a.Tags())), fold(first(b.Tags())), desc)
		}
	default:
		return nil
	}
}

func first(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

func direction(r int, desc bool) int {
	if desc {
		return -r
	}
	return r
}

// compareEmptyLast treats the zero value as missing. Only present values are
// reversed by desc.
func compareEmptyLast[T cmp.Ordered](a, b T, desc bool) int {
	var zero T
	switch {
	case a == b:
		return 0
	case a == zero:
		return 1
	case b == zero:
		return -1
	default:
		return direction(cmp.Compare(a, b), desc)
	}
}
