// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"fmt"
	"strings"
)

// =============================================================================
// MODES
// =============================================================================

// Mode selects the kind of query the assistant writes.
type Mode string

const (
	ModeNGQL   Mode = "text2ngql"
	ModeCypher Mode = "text2cypher"
)

// ParseMode accepts "ngql", "cypher" and the long forms.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ngql", "text2ngql":
		return ModeNGQL, nil
	case "cypher", "text2cypher":
		return ModeCypher, nil
	}
	return "", fmt.Errorf("unknown mode %q (want ngql or cypher)", s)
}

// =============================================================================
// FIXED TURNS
// =============================================================================

const (
	systemNGQL   = "You are a helpful NebulaGraph database NGQL assistant to help user write the ngql"
	systemCypher = "You are a helpful NebulaGraph database assistant to help user write NebulaGraph Cypher dialect queries"

	// MarkdownInstruction asks for fenced code blocks around generated queries.
	MarkdownInstruction = "you need use markdown to reply short and clear and need think more and more and add ``` as markdown code block to write the ngql."

	LanguageChinese = "请使用中文"
	LanguageEnglish = "Please use English"

	// NoSuggestion is the reply the copilot prompt asks for when it cannot guess.
	NoSuggestion = "Sorry"
)

// SystemInstruction returns the first message for mode.
func SystemInstruction(mode Mode) string {
	if mode == ModeCypher {
		return systemCypher
	}
	return systemNGQL
}

// =============================================================================
// TEMPLATES
// =============================================================================

// Placeholders substituted by Fill.
const (
	SchemaPlaceholder   = "{schema}"
	QuestionPlaceholder = "{query_str}"
)

// MatchTemplate is the default template: Cypher-dialect generation grounded
// only on the schema.
const MatchTemplate = `Generate NebulaGraph query from my question.
Use only the provided relationship types and properties in the schema.
Do not use any other relationship types or properties that are not provided.
Schema:
---
{schema}
---
Note: NebulaGraph speaks a dialect of Cypher, comparing to standard Cypher:
1. it uses double equals sign for comparison: == rather than =
2. it needs explicit label specification when referring to node properties, i.e.
v is a variable of a node, and we know its label is Foo, v.foo.name is correct
while v.name is not.
For example, see this diff between standard and NebulaGraph Cypher dialect:
diff
< MATCH (p:person)-[:directed]->(m:movie) WHERE m.name = 'The Godfather'
< RETURN p.name;
---
> MATCH (p:person)-[:directed]->(m:movie) WHERE m.movie.name == 'The Godfather'
> RETURN p.person.name;
Question:{query_str}
NebulaGraph Cypher dialect query:`

// DocTemplate returns the document-augmented template for docString.
func DocTemplate(docString string) string {
	return `learn the below NGQL, and use it to help user write the ngql,the user space schema is "{schema}" the doc is: ` +
		"\n" + docString + ` the question is "{query_str}"`
}

// Fill substitutes the schema and question placeholders in one pass, so
// text inside either value is never rescanned.
func Fill(template, schemaText, question string) string {
	r := strings.NewReplacer(SchemaPlaceholder, schemaText, QuestionPlaceholder, question)
	return r.Replace(template)
}

// SelectionInstruction is the system prompt of the category selection call.
func SelectionInstruction(categoryString, question string) string {
	return `the graph database doc with "," splited is below:` + categoryString +
		`. give me a top 2 relevant value for the question: "` + question +
		`".just give me the value without any prefix words.the value is:`
}

// CopilotInstruction is the autocomplete prompt for the statement fragment
// line. doc must already be cut to the configured length.
func CopilotInstruction(doc, schemaText, line string) string {
	var b strings.Builder
	b.WriteString(`As a NebulaGraph NGQL code autocomplete copilot, you have access to the following information: document "`)
	b.WriteString(doc)
	b.WriteString(`" and user space schema "`)
	b.WriteString(schemaText)
	b.WriteString("\".\n")
	b.WriteString("Use this information to guess the user's next NGQL code autocomplete as accurately as possible.\n")
	b.WriteString("Please provide your guess as a response without any prefix words.\n")
	b.WriteString("Don't explain anything.\n")
	b.WriteString("the next autocomplete text can combine with the given text.\n")
	b.WriteString("use space schema to help you write the ngql.\n")
	b.WriteString(`if you can't guess, say "` + NoSuggestion + "\",\n")
	b.WriteString("if you think the ngql is over, return \";\"\n")
	b.WriteString("The user's NGQL text is: " + line + "\n")
	b.WriteString("the next autocomplete text is:")
	return b.String()
}
