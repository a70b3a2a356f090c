// Package syntax keeps a tree-sitter parse of each document current as
// the document is edited and derives highlight and indent spans from it.
//
// Every buffer change is converted to a tree-sitter edit and applied to
// the old tree before the next parse, so unchanged subtrees are reused.
// Query captures are flattened into byte spans ordered by start, with
// no two spans overlapping, and each capture name is resolved to a
// TokenType through a Classifier that falls back along dot-prefixes.
package syntax
