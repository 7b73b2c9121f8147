package command

import "strings"

// Request is one parsed command line.
type Request struct {
	// Verb is the first token, matched case-sensitively
	Verb string

	// Args are the remaining tokens. Consecutive spaces produce empty
	// tokens, which count toward the argument total.
	Args []string
}

// Parse splits line into a verb and its arguments.
//
// Trailing CR/LF characters are removed, then the line is split on single
// spaces. An empty line yields an empty verb.
func Parse(line string) Request {
	line = strings.TrimRight(line, "\r\n")
	tokens := strings.Split(line, " ")
	return Request{Verb: tokens[0], Args: tokens[1:]}
}
