// Package memory implements the two-tier memory pipeline that conditions
// email responses: hot load from the relational store, warm retrieval
// from the similarity store, cross-tier deduplication, and token-budget
// enforcement.
//
// Architecture:
//   - HistoryStore: relational backend for recent exchanges, summaries
//     and the user profile (sqlite for local use)
//   - VectorStore: similarity backend for semantic retrieval and triage
//     few-shot examples (chromem for local use)
//   - Embedder: text-to-vector conversion (openai adapter, mock for tests)
//   - Loader: concurrent hot + warm retrieval with per-tier degradation
//   - Dedupe: cross-tier duplicate removal by identity key
//   - Enforcer: summarize once, then truncate until the budget holds
//
// Items are transient, built fresh per request; the backing stores are
// the only shared state and are treated as externally synchronized.
package memory
