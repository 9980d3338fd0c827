// Package experience defines the remediation experience entry model and the
// pure retrieval primitives that operate on it.
//
// An Entry captures one reusable fix mined from past build-repair runs:
// matching signals (regexes, keywords), structural context (language, OS,
// tool and version lists), natural-language advice, and optional remediation
// atoms that render into shell commands. Entries travel as newline-delimited
// JSON and are persisted in the vector store (see internal/store).
//
// The package contains two independent retrieval strategies:
//
//   - Matcher: deterministic regex/keyword/file-name matching over a loaded
//     entry set, no external dependencies.
//   - Score/Rank: a composite relevance score combining signal hits,
//     structural context agreement, and a remediability bias, used for
//     in-memory top-k ranking.
//
// Everything here is stateless or read-only after construction and safe for
// concurrent use.
package experience
