package catalog

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"lotlister/internal"
	"lotlister/internal/util"
)

const (
	exactWeight    = 10
	partialWeight  = 5
	coverageWeight = 8
	depthWeight    = 3
	minScore       = 5
)

var ErrEmptyTaxonomy = errors.New("taxonomy has no usable rows")

var (
	idAliases   = []string{"categoryid"}
	pathAliases = []string{"categorypath"}
)

// Status describes the cached index without mutating it.
type Status struct {
	Initialized bool
	Count       int
	BuildTime   time.Duration
	BuiltAt     time.Time
	Fingerprint string
}

// Index is an inverted index from path token to taxonomy node ordinals.
type Index struct {
	mu          sync.RWMutex
	tokens      map[string][]int
	nodes       []internal.TaxonomyNode
	initialized bool
	buildTime   time.Duration
	builtAt     time.Time
	fingerprint string
}

func NewIndex() *Index {
	return &Index{tokens: map[string][]int{}}
}

// Build discards the current index and indexes every row that has both a
// category id and a category path. Rows are keyed by header name.
func (x *Index) Build(rows []map[string]string) (Status, error) {
	start := time.Now()
	nodes := make([]internal.TaxonomyNode, 0, len(rows))
	for _, row := range rows {
		id, path := taxonomyFields(row)
		if id == "" || path == "" {
			continue
		}
		nodes = append(nodes, internal.TaxonomyNode{
			Ordinal: len(nodes),
			ID:      id,
			Path:    path,
			Tokens:  dedupe(util.Tokenize(path)),
			Depth:   len(strings.Split(path, ">")),
		})
	}
	return x.install(nodes, start, fingerprintRows(rows))
}

// BuildNodes rebuilds from already-parsed nodes, e.g. restored from storage.
func (x *Index) BuildNodes(nodes []internal.TaxonomyNode, fingerprint string) (Status, error) {
	start := time.Now()
	out := make([]internal.TaxonomyNode, 0, len(nodes))
	for _, n := range nodes {
		if n.ID == "" || n.Path == "" {
			continue
		}
		out = append(out, internal.TaxonomyNode{
			Ordinal: len(out),
			ID:      n.ID,
			Path:    n.Path,
			Tokens:  dedupe(util.Tokenize(n.Path)),
			Depth:   len(strings.Split(n.Path, ">")),
		})
	}
	return x.install(out, start, fingerprint)
}

func (x *Index) install(nodes []internal.TaxonomyNode, start time.Time, fingerprint string) (Status, error) {
	tokens := map[string][]int{}
	for _, n := range nodes {
		for _, tok := range n.Tokens {
			tokens[tok] = append(tokens[tok], n.Ordinal)
		}
	}

	x.mu.Lock()
	x.tokens = tokens
	x.nodes = nodes
	x.initialized = true
	x.buildTime = time.Since(start)
	x.builtAt = time.Now().UTC()
	x.fingerprint = fingerprint
	x.mu.Unlock()

	status := x.Status()
	if len(nodes) == 0 {
		return status, ErrEmptyTaxonomy
	}
	return status, nil
}

func (x *Index) Status() Status {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return Status{
		Initialized: x.initialized,
		Count:       len(x.nodes),
		BuildTime:   x.buildTime,
		BuiltAt:     x.builtAt,
		Fingerprint: x.fingerprint,
	}
}

func (x *Index) Nodes() []internal.TaxonomyNode {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]internal.TaxonomyNode, len(x.nodes))
	copy(out, x.nodes)
	return out
}

type nodeScore struct {
	exact   int
	partial int
}

// Match returns the best scoring taxonomy node for title, or the default
// category when the index is empty or nothing scores at least minScore.
// Equal totals resolve to the lowest ordinal.
func (x *Index) Match(title string) internal.CategoryMatch {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if !x.initialized || len(x.nodes) == 0 {
		return internal.DefaultCategory()
	}
	titleTokens := util.Tokenize(title)
	if len(titleTokens) == 0 {
		return internal.DefaultCategory()
	}

	scores := map[int]*nodeScore{}
	for _, tt := range titleTokens {
		for _, ord := range x.tokens[tt] {
			node := x.nodes[ord]
			s, ok := scores[ord]
			if !ok {
				s = &nodeScore{}
				scores[ord] = s
			}
			if containsToken(node.Tokens, tt) {
				s.exact += exactWeight
			}
			// The identical token also counts as a partial match here.
			for _, nt := range node.Tokens {
				if strings.Contains(nt, tt) || strings.Contains(tt, nt) {
					s.partial += partialWeight
				}
			}
		}
	}

	best, bestScore := -1, -1
	for ord := range x.nodes {
		s, ok := scores[ord]
		if !ok {
			continue
		}
		node := x.nodes[ord]
		total := s.exact + s.partial + node.Depth*depthWeight + coverage(titleTokens, node.Tokens)*coverageWeight
		if total > bestScore {
			best, bestScore = ord, total
		}
	}

	if best < 0 || bestScore < minScore {
		return internal.DefaultCategory()
	}
	return internal.CategoryMatch{
		CategoryID:   x.nodes[best].ID,
		CategoryPath: x.nodes[best].Path,
		Score:        bestScore,
	}
}

// coverage counts distinct title tokens that match a node token exactly or
// as a substring in either direction.
func coverage(titleTokens, nodeTokens []string) int {
	seen := map[string]struct{}{}
	for _, tt := range titleTokens {
		if _, ok := seen[tt]; ok {
			continue
		}
		for _, nt := range nodeTokens {
			if strings.Contains(nt, tt) || strings.Contains(tt, nt) {
				seen[tt] = struct{}{}
				break
			}
		}
	}
	return len(seen)
}

func taxonomyFields(row map[string]string) (id, path string) {
	headers := make([]string, 0, len(row))
	for header := range row {
		headers = append(headers, header)
	}
	sort.Strings(headers)

	for _, header := range headers {
		key := util.NormalizeHeaderKey(header)
		v := strings.TrimSpace(row[header])
		if v == "" {
			continue
		}
		if id == "" && hasAlias(idAliases, key) {
			id = v
		}
		if path == "" && hasAlias(pathAliases, key) {
			path = v
		}
	}
	return id, path
}

func hasAlias(aliases []string, key string) bool {
	for _, a := range aliases {
		if a == key {
			return true
		}
	}
	return false
}

func containsToken(tokens []string, tok string) bool {
	for _, t := range tokens {
		if t == tok {
			return true
		}
	}
	return false
}

func dedupe(tokens []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
