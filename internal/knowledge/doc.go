// Package knowledge searches the support knowledge base.
//
// Three Searcher implementations share one Article corpus format:
//
//   - Keyword: token-overlap ranking, no dependencies, always available
//   - Chromem: embedded chromem-go vector collection
//   - Qdrant: external Qdrant collection over gRPC
//
// Similarity scores are in [0, 1]. Results are ordered by descending
// similarity with ties broken by corpus order, so a given corpus and query
// always produce the same ranking.
package knowledge
