package importer

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"dosh/internal/core"
)

// Duplicate pairs two stored transactions that look like the same bank line.
// Remove is always the older row.
type Duplicate struct {
	Keep   core.Transaction
	Remove core.Transaction
}

// DeleteStatement is the SQL that removes the older row.
func (d Duplicate) DeleteStatement() string {
	return fmt.Sprintf("delete from transactions where id = %d;", d.Remove.ID)
}

// FindDuplicates reports pairs sharing date and amount whose descriptions are
// equal once whitespace is ignored. With fuzzy above zero, descriptions within
// that edit distance ratio of each other also count.
func FindDuplicates(txs []core.Transaction, fuzzy float64) []Duplicate {
	type key struct {
		date  string
		cents int64
	}
	groups := make(map[key][]core.Transaction)
	for _, tx := range txs {
		k := key{tx.Date, tx.Amount.Cents}
		groups[k] = append(groups[k], tx)
	}

	var out []Duplicate
	for _, group := range groups {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if !similar(a.Description, b.Description, fuzzy) {
					continue
				}
				if a.ID > b.ID {
					a, b = b, a
				}
				out = append(out, Duplicate{Keep: b, Remove: a})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Remove.ID != out[j].Remove.ID {
			return out[i].Remove.ID < out[j].Remove.ID
		}
		return out[i].Keep.ID < out[j].Keep.ID
	})
	return out
}

func similar(a, b string, fuzzy float64) bool {
	a, b = squash(a), squash(b)
	if a == b {
		return true
	}
	if fuzzy <= 0 {
		return false
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	return float64(levenshtein.ComputeDistance(a, b))/float64(longest) <= fuzzy
}

func squash(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
