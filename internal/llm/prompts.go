package llm

import "fmt"

// ChatSystemPrompt frames free form assistant chats.
const ChatSystemPrompt = "You are a helpful assistant. Answer all questions to the best of your ability in MARKDOWN."

const documentQATemplate = `You are a helpful Artificial Intelligence Question and Answer bot who answers the question based on a "context".
If the answer is not present in the context, or the context is empty, your final answer must be "I don't know". Do not make up an answer.
Only return the helpful answer below and nothing else.

Context: %s
Question: %s

Helpful answer:`

// DocumentQAPrompt asks for an answer grounded only in context.
func DocumentQAPrompt(context, question string) string {
	return fmt.Sprintf(documentQATemplate, context, question)
}

// ContextualizePrompt rewrites a follow-up question so it stands alone without the history.
const ContextualizePrompt = "Given a chat history and the latest user question which might reference context in the chat history, " +
	"formulate a standalone question which can be understood without the chat history. " +
	"Do NOT answer the question, just reformulate it if needed and otherwise return it as is."

// ItemizedSummaryPrompt asks for a bullet summary of about n sentences.
func ItemizedSummaryPrompt(text string, sentences int) string {
	return fmt.Sprintf("Summarize the following text as an itemized markdown list of at most %d concise sentences. "+
		"Keep all factual information such as numbers, stats and quotes.\n\nText: %s", sentences, text)
}

// HighlightsPrompt asks for highlight sentences with their key phrases as a JSON list.
func HighlightsPrompt(text string) string {
	return "Summarize the text by generating concise highlight sentences (multiple) that capture key points " +
		"and important keyphrases from the content.\n" +
		`Respond only with a JSON list of objects of the form {"KeyPhrases": "keyphrase in the sentence", "Sentence": "highlight sentence"}.` +
		"\nText: " + text
}

// Highlight is one element of a highlights summary.
type Highlight struct {
	KeyPhrases string `json:"KeyPhrases" bson:"KeyPhrases"`
	Sentence   string `json:"Sentence" bson:"Sentence"`
}

// ArticleSummaryPrompt condenses a scraped article before it is saved.
func ArticleSummaryPrompt(text string) string {
	return "Summarize the following news article in a few paragraphs. Keep names, numbers and quotes.\n\nArticle: " + text
}
