package syntax

import "strings"

// TokenType is the semantic class a highlight capture resolves to.
type TokenType uint16

// Token types, named after the capture names used in highlight queries.
const (
	TokenNone TokenType = iota

	TokenComment
	TokenString
	TokenStringEscape
	TokenNumber
	TokenConstant
	TokenConstantBuiltin

	TokenKeyword
	TokenKeywordControl
	TokenKeywordFunction
	TokenKeywordReturn
	TokenOperator
	TokenPunctuation
	TokenPunctuationBracket
	TokenPunctuationDelimiter

	TokenVariable
	TokenVariableParameter
	TokenProperty
	TokenFunction
	TokenFunctionCall
	TokenFunctionMethod
	TokenFunctionBuiltin
	TokenTypeName
	TokenTypeBuiltin
	TokenNamespace
	TokenLabel

	tokenTypeCount
)

var tokenTypeNames = [tokenTypeCount]string{
	TokenNone: "none",

	TokenComment:         "comment",
	TokenString:          "string",
	TokenStringEscape:    "string.escape",
	TokenNumber:          "number",
	TokenConstant:        "constant",
	TokenConstantBuiltin: "constant.builtin",

	TokenKeyword:              "keyword",
	TokenKeywordControl:       "keyword.control",
	TokenKeywordFunction:      "keyword.function",
	TokenKeywordReturn:        "keyword.return",
	TokenOperator:             "operator",
	TokenPunctuation:          "punctuation",
	TokenPunctuationBracket:   "punctuation.bracket",
	TokenPunctuationDelimiter: "punctuation.delimiter",

	TokenVariable:          "variable",
	TokenVariableParameter: "variable.parameter",
	TokenProperty:          "property",
	TokenFunction:          "function",
	TokenFunctionCall:      "function.call",
	TokenFunctionMethod:    "function.method",
	TokenFunctionBuiltin:   "function.builtin",
	TokenTypeName:          "type",
	TokenTypeBuiltin:       "type.builtin",
	TokenNamespace:         "namespace",
	TokenLabel:             "label",
}

// String returns the capture name of a token type.
func (t TokenType) String() string {
	if t < tokenTypeCount {
		return tokenTypeNames[t]
	}
	return "unknown"
}

// Classifier resolves dotted capture names to values of T.
//
// Resolution tries the full name first, then each shorter dot-prefix, so
// "keyword.control.conditional" falls back to "keyword.control" and then
// to "keyword". Names with no match resolve to the classifier's fallback.
type Classifier[T any] struct {
	classes  map[string]T
	fallback T
}

// NewClassifier creates a classifier that resolves unknown names to fallback.
func NewClassifier[T any](fallback T) *Classifier[T] {
	return &Classifier[T]{classes: make(map[string]T), fallback: fallback}
}

// Add registers the value for an exact capture name.
func (c *Classifier[T]) Add(name string, v T) {
	c.classes[name] = v
}

// Resolve returns the value for name and whether any prefix matched.
func (c *Classifier[T]) Resolve(name string) (T, bool) {
	for name != "" {
		if v, ok := c.classes[name]; ok {
			return v, true
		}
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			break
		}
		name = name[:i]
	}
	return c.fallback, false
}

// TokenClassifier resolves capture names to the built-in token types.
var TokenClassifier = func() *Classifier[TokenType] {
	c := NewClassifier(TokenNone)
	for i, name := range tokenTypeNames {
		if i != int(TokenNone) {
			c.Add(name, TokenType(i))
		}
	}
	return c
}()
