package strategy

import (
	"codemend/internal/knowledge"
	"codemend/internal/llm"
	"codemend/internal/registry"
)

// DefaultChain assembles the strategies in their fixed priority order:
// cheapest and most precise first, so the expensive imprecise fallbacks
// never run before a deterministic fix had its chance. The order is a
// design decision, not incidental - reordering it changes cost and
// semantic-drift characteristics of the whole engine.
//
// A nil knowledge store or LLM client simply leaves that link out of
// the chain.
func DefaultChain(reg *registry.Registry, appType string, store *knowledge.Store, client llm.Client) []RepairStrategy {
	chain := []RepairStrategy{
		NewCleanup(),
		NewDependency(),
		NewIdentifier(reg, appType),
		NewSyntax(),
	}
	if store != nil {
		chain = append(chain, NewKnowledge(store))
	}
	if client != nil {
		chain = append(chain, NewGenerative(client))
	}
	return chain
}
