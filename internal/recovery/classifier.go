// Package recovery explains a single-strategy failure to the user and tries
// one alternative strategy chosen by the failure's category.
package recovery

import (
	"strings"
)

type Category string

const (
	InvalidInput         Category = "invalid_input"
	LLMUnavailable       Category = "llm_unavailable"
	SQLExecutionError    Category = "sql_execution_error"
	SemanticUnavailable  Category = "semantic_unavailable"
	DatastoreUnavailable Category = "datastore_unavailable"
	Generic              Category = "generic"
)

type rule struct {
	category Category
	needles  []string
}

// rules are evaluated in order; the first rule with a matching needle wins.
// Rule order decides the category, not the root cause: a dial failure
// inside a SQL execution error is SQLExecutionError, and a provider message
// naming openai inside a semantic failure is LLMUnavailable.
var rules = []rule{
	{InvalidInput, []string{"invalid input", "question is empty", "tenant id is required", "malformed tenant"}},
	{LLMUnavailable, []string{"llm", "openai", "completion", "no completer"}},
	{SQLExecutionError, []string{"sql execution error", "syntax error", "does not exist", "execute_readonly_sql", "not validated", "safety validator", "unsafe generated sql"}},
	{SemanticUnavailable, []string{"semantic unavailable", "embedding"}},
	{DatastoreUnavailable, []string{"datastore unavailable", "connection refused", "dial tcp", "no such host", "timeout", "deadline exceeded", "too many connections", "database"}},
}

// Classify maps an error to a category by substring tests over its message.
func Classify(err error) Category {
	if err == nil {
		return Generic
	}
	return ClassifyMessage(err.Error())
}

func ClassifyMessage(msg string) Category {
	lower := strings.ToLower(msg)
	for _, r := range rules {
		for _, needle := range r.needles {
			if strings.Contains(lower, needle) {
				return r.category
			}
		}
	}
	return Generic
}
