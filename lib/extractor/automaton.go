package extractor

// automaton is an Aho-Corasick matcher over lower-cased runes.
type automaton struct {
	nodes   []acNode
	values  []string // pattern index -> ticker
	lengths []int    // pattern index -> length in runes
}

type acNode struct {
	next map[rune]int
	fail int
	out  int // pattern ending exactly at this node, or -1
	dict int // nearest node on the fail chain with out >= 0, or -1
}

func newAutomaton() *automaton {
	return &automaton{nodes: []acNode{{next: map[rune]int{}, out: -1, dict: -1}}}
}

func (a *automaton) add(pattern []rune, value string) {
	if len(pattern) == 0 {
		return
	}
	cur := 0
	for _, r := range pattern {
		nxt, ok := a.nodes[cur].next[r]
		if !ok {
			a.nodes = append(a.nodes, acNode{next: map[rune]int{}, out: -1, dict: -1})
			nxt = len(a.nodes) - 1
			a.nodes[cur].next[r] = nxt
		}
		cur = nxt
	}
	if p := a.nodes[cur].out; p >= 0 {
		// Same keyword registered twice; the later value wins.
		a.values[p] = value
		return
	}
	a.nodes[cur].out = len(a.values)
	a.values = append(a.values, value)
	a.lengths = append(a.lengths, len(pattern))
}

// build computes failure and dictionary links breadth-first.
func (a *automaton) build() {
	queue := make([]int, 0, len(a.nodes))
	for _, child := range a.nodes[0].next {
		a.nodes[child].fail = 0
		queue = append(queue, child)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for r, child := range a.nodes[cur].next {
			f := a.nodes[cur].fail
			for f != 0 {
				if _, ok := a.nodes[f].next[r]; ok {
					break
				}
				f = a.nodes[f].fail
			}
			if nxt, ok := a.nodes[f].next[r]; ok && nxt != child {
				a.nodes[child].fail = nxt
			} else {
				a.nodes[child].fail = 0
			}
			fn := a.nodes[child].fail
			if a.nodes[fn].out >= 0 {
				a.nodes[child].dict = fn
			} else {
				a.nodes[child].dict = a.nodes[fn].dict
			}
			queue = append(queue, child)
		}
	}
}

// scan reports every pattern occurrence in text as a half-open rune range.
func (a *automaton) scan(text []rune, emit func(start, end, pattern int)) {
	state := 0
	for i, r := range text {
		for state != 0 {
			if _, ok := a.nodes[state].next[r]; ok {
				break
			}
			state = a.nodes[state].fail
		}
		if nxt, ok := a.nodes[state].next[r]; ok {
			state = nxt
		}

		o := state
		if a.nodes[o].out < 0 {
			o = a.nodes[o].dict
		}
		for o > 0 {
			p := a.nodes[o].out
			emit(i+1-a.lengths[p], i+1, p)
			o = a.nodes[o].dict
		}
	}
}
