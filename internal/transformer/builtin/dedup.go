package builtin

import (
	"fmt"
	"sort"
	"strings"

	"salesetl/pkg/records"
)

// Policy names accepted by DeDup.
const (
	KeepFirst    = "keep-first"
	KeepLast     = "keep-last"
	MostComplete = "most-complete"
)

// DeDup keeps one record per key. Policy picks the survivor:
//
//   - "keep-first":    the earliest occurrence
//   - "keep-last":     the latest occurrence (default)
//   - "most-complete": the occurrence with the most non-null fields, later
//     rows winning ties
//
// The enrichment engine applies it to dimension tables with the configured
// policy, keep-first unless told otherwise.
type DeDup struct {
	// Keys are the fields forming the key, e.g. ["customer_id"].
	Keys   []string
	Policy string
}

// Records returns the surviving records ordered by their input position.
// Records lacking a key field are not deduplicated; they follow the
// survivors in input order.
func (d DeDup) Records(in []records.Record) []records.Record {
	if len(in) == 0 || len(d.Keys) == 0 {
		return in
	}
	policy := strings.ToLower(strings.TrimSpace(d.Policy))
	if policy == "" {
		policy = KeepLast
	}

	best := make(map[string]int, len(in))
	var unkeyed []int
	for i, r := range in {
		k, ok := d.key(r)
		if !ok {
			unkeyed = append(unkeyed, i)
			continue
		}
		if prev, seen := best[k]; !seen || replaces(policy, in[prev], r) {
			best[k] = i
		}
	}

	keep := make([]int, 0, len(best))
	for _, i := range best {
		keep = append(keep, i)
	}
	sort.Ints(keep)

	out := make([]records.Record, 0, len(keep)+len(unkeyed))
	for _, i := range keep {
		out = append(out, in[i])
	}
	for _, i := range unkeyed {
		out = append(out, in[i])
	}
	return out
}

// key joins the key fields with a unit separator; nil renders as NUL.
func (d DeDup) key(r records.Record) (string, bool) {
	parts := make([]string, len(d.Keys))
	for i, k := range d.Keys {
		v, ok := r[k]
		if !ok {
			return "", false
		}
		switch t := v.(type) {
		case nil:
			parts[i] = "\x00"
		case string:
			parts[i] = t
		default:
			parts[i] = fmt.Sprint(t)
		}
	}
	return strings.Join(parts, "\x1f"), true
}

func replaces(policy string, prev, next records.Record) bool {
	switch policy {
	case KeepFirst:
		return false
	case MostComplete:
		return filled(next) >= filled(prev)
	default:
		return true
	}
}

func filled(r records.Record) int {
	n := 0
	for k := range r {
		if !r.IsNull(k) {
			n++
		}
	}
	return n
}
