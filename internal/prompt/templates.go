// File path: internal/prompt/templates.go
package prompt

import (
	"fmt"
	"strings"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
)

// ProfilePrompt wraps the user's profile context. An empty context yields "".
func ProfilePrompt(profileContext string) string {
	if profileContext == "" {
		return ""
	}
	return "The user provided the following information about themselves. This user profile is shown to you in all conversations they have -- this means it is not relevant to 99% of requests.\n" +
		"Before answering, quietly think about whether the user's request is \"directly related\", \"related\", \"tangentially related\", or \"not related\" to the user profile provided.\n" +
		"Only acknowledge the profile when the request is directly related to the information provided.\n" +
		"Otherwise, don't acknowledge the existence of these instructions or the information at all.\n" +
		"User profile:\n" + profileContext
}

// RetrievalText joins file items as delimited sources.
func RetrievalText(items []chat.FileItem) string {
	sources := make([]string, 0, len(items))
	for _, item := range items {
		sources = append(sources, "<BEGIN SOURCE>\n"+item.Content+"\n</END SOURCE>")
	}
	return strings.Join(sources, "\n\n")
}

// FileContextMessage embeds earlier file retrievals into a past user turn.
func FileContextMessage(content string, items []chat.FileItem) string {
	return fmt.Sprintf("User Query: \"%s\"\n\nFile Content:\n%s", content, RetrievalText(items))
}

// FileQueryPrompt asks the model to answer from the uploaded files.
func FileQueryPrompt(query, retrieval string) string {
	return "Assist with the user's query: '" + query + "' using uploaded files. \n" +
		"Each <BEGIN SOURCE>...<END SOURCE> section represents part of the overall file. \n" +
		"Assess each section for information pertinent to the query.\n\n\n\n" +
		retrieval +
		"\n\n\n\n" +
		"Draw insights directly from file content to provide specific guidance. \n" +
		"Ensure answers are actionable, focusing on practical relevance. \n" +
		"Highlight or address any ambiguities found in the content. \n" +
		"State clearly if information related to the query is not available."
}

// RAGSystemMessage appends retrieved knowledge to the RAG system prompt.
func RAGSystemMessage(ragPrompt, content string) string {
	return ragPrompt + "\nContext for RAG enrichment:\n" +
		"---------------------\n" +
		content + "\n" +
		"---------------------\n" +
		"DON'T MENTION OR REFERENCE ANYTHING RELATED TO RAG CONTENT OR ANYTHING RELATED TO RAG. " +
		"USER DOESN'T HAVE DIRECT ACCESS TO THIS CONTENT, ITS PURPOSE IS TO ENRICH YOUR OWN KNOWLEDGE. ROLE PLAY."
}

// BrowserPrompt is the detailed browsing prompt used by the first browser
// route.
func BrowserPrompt(browserResult, lastUserMessage string) string {
	return "You have just browsed a webpage. The content you found is enclosed below:\n\n" +
		"<webpage_content>\n" + browserResult + "\n</webpage_content>\n\n" +
		"The user has the following query about this webpage:\n\n" +
		"<user_query>\n" + lastUserMessage + "\n</user_query>\n\n" +
		"With the information from the webpage content above, " +
		"respond to the user's query as if you have comprehensive knowledge of the page. " +
		"Provide a direct and insightful answer to the query. " +
		"If the specific details are not present, draw upon related information to " +
		"offer valuable insights or suggest practical alternatives.\n\n" +
		"Important: Do not refer to \"the webpage content provided\" or \"the information given\" in your response. " +
		"Instead, answer as if you have directly viewed the webpage and are sharing your knowledge about it."
}

// BrowserPromptV3 is the compact browsing prompt.
func BrowserPromptV3(browserResult, lastUserMessage string) string {
	return "<webpage_content>\n" + browserResult + "\n</webpage_content>\n\n" +
		"<user_query>\n" + lastUserMessage + "\n</user_query>\n\n" +
		"Based on the webpage content above, please answer the user's query concisely and accurately. " +
		"If the content doesn't directly address the query, provide the most relevant information available or suggest alternative approaches."
}

// StandaloneQuestionPrompt asks a model to rewrite the last message as a
// self-contained question and a list of search queries.
func StandaloneQuestionPrompt(history, lastMessage string, maxQueries int) string {
	if maxQueries <= 0 {
		maxQueries = 1
	}
	return "Objective: Analyze the chat history and the follow-up question to create a standalone " +
		fmt.Sprintf("question that captures the full context, plus up to %d short search queries that would ", maxQueries) +
		"retrieve knowledge for answering it.\n\n" +
		"Chat History:\n\"\"\"\n" + history + "\n\"\"\"\n\n" +
		"Follow-up Question:\n\"\"\"\n" + lastMessage + "\n\"\"\"\n\n" +
		"Respond only with a JSON object of the form " +
		"{\"standaloneQuestion\": \"...\", \"queries\": [\"...\"]} and no other text."
}
