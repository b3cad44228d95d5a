package console

import (
	"strings"

	"github.com/pbaille/letterdesk/internal/domain"
)

// Delta is one changed scalar attribute
type Delta struct {
	Attr  string
	Value string
}

// Detect lists the scalar attributes edited differs on, in schema order.
// Values compare after trimming and an absent attribute equals "".
// Relations are left to the resolver.
func Detect(sch domain.Schema, original, edited *domain.Record) []Delta {
	if original == edited {
		return nil
	}

	var deltas []Delta
	for _, attr := range sch.Scalars {
		v, defined := edited.Attrs[attr]
		if !defined {
			continue
		}
		if sameValue(v, original.Attr(attr)) {
			continue
		}
		deltas = append(deltas, Delta{Attr: attr, Value: strings.TrimSpace(v)})
	}
	return deltas
}

func sameValue(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
