package searcher

import (
	"fmt"
	"log"
	"regexp"
	"strconv"

	"github.com/mohammad-safakhou/searchagent/internal/graph"
)

var refPattern = regexp.MustCompile(`\[\[(\d+)\]\]`)

// renumberRefs rewrites local citation markers [[k]] into the session-global
// id space. Distinct local ids are ranked 1..m by first appearance in the
// text, every occurrence [[k]] becomes [[rank(k)+ptr]], and the returned map
// carries the remapped sources. Local ids with no localRefs entry are logged
// and skipped; they still consume a rank so the rewrite stays deterministic.
// The caller advances ptr by the number of distinct ids after consuming the
// result.
func renumberRefs(text string, localRefs map[int]graph.Ref, ptr int, logger *log.Logger) (string, map[int]graph.Ref, int) {
	matches := refPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return text, map[int]graph.Ref{}, 0
	}

	rank := make(map[int]int)
	for _, m := range matches {
		k, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, seen := rank[k]; !seen {
			rank[k] = len(rank) + 1
		}
	}

	rewritten := refPattern.ReplaceAllStringFunc(text, func(m string) string {
		k, _ := strconv.Atoi(refPattern.FindStringSubmatch(m)[1])
		return fmt.Sprintf("[[%d]]", rank[k]+ptr)
	})

	updated := make(map[int]graph.Ref, len(rank))
	for k, r := range rank {
		ref, ok := localRefs[k]
		if !ok {
			if logger != nil {
				logger.Printf("citation [[%d]] has no recorded source, dropping from reference map", k)
			}
			continue
		}
		updated[r+ptr] = ref
	}
	return rewritten, updated, len(rank)
}
