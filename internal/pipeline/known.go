package pipeline

import "strings"

// KnownContracts is the ordered set of contract project names seen so far
// in an import. It is a value: With returns an extended copy and never
// changes the receiver, so each batch sees exactly what earlier batches
// produced.
type KnownContracts struct {
	names []string
	seen  map[string]struct{}
}

// With returns a copy extended by names. Blank names and case-insensitive
// duplicates are ignored; first spelling wins.
func (k KnownContracts) With(names ...string) KnownContracts {
	next := KnownContracts{
		names: append([]string(nil), k.names...),
		seen:  make(map[string]struct{}, len(k.seen)+len(names)),
	}
	for key := range k.seen {
		next.seen[key] = struct{}{}
	}
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if key == "" {
			continue
		}
		if _, ok := next.seen[key]; ok {
			continue
		}
		next.seen[key] = struct{}{}
		next.names = append(next.names, n)
	}
	return next
}

// Names returns the names in insertion order.
func (k KnownContracts) Names() []string {
	return append([]string(nil), k.names...)
}

// Len returns the number of distinct names.
func (k KnownContracts) Len() int {
	return len(k.names)
}
