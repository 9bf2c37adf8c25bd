package questionbank

import (
	"math/rand/v2"
	"sync"
)

// Builder assembles the ordered question list for a session.
type Builder struct {
	bank *Bank

	mu  sync.Mutex // guards rnd
	rnd *rand.Rand
}

// NewBuilder creates a Builder over bank. A nil src seeds from the runtime
// generator; pass a fixed source for reproducible shuffles.
func NewBuilder(bank *Bank, src rand.Source) *Builder {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Builder{bank: bank, rnd: rand.New(src)}
}

// Bank returns the bank the builder reads from.
func (b *Builder) Bank() *Bank {
	return b.bank
}

// Build concatenates the slices for subjects in the order given and, when
// shuffle is set, permutes the whole list. Subject grouping is not kept
// under shuffle.
func (b *Builder) Build(subjects []Subject, shuffle bool) []Question {
	n := 0
	for _, s := range subjects {
		n += b.bank.Len(s)
	}

	out := make([]Question, 0, n)
	for _, s := range subjects {
		out = append(out, b.bank.Questions(s)...)
	}

	if shuffle {
		b.shuffle(out)
	}
	return out
}

// shuffle applies a Fisher–Yates permutation in place.
func (b *Builder) shuffle(qs []Question) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(qs) - 1; i > 0; i-- {
		j := b.rnd.IntN(i + 1)
		qs[i], qs[j] = qs[j], qs[i]
	}
}
