package prompt

import (
	"fmt"

	"chatrag-go/pkg/llm"
)

// 模板族名称，与租户配置中的 template_family 对应。
const (
	FamilyDefault = "default"
	FamilyHR      = "hr"
)

// defaultMessages 是通用问答模板：先交代场景与查询，再给出
// 引用规范与空结果兜底指令，检索块作为独立消息附在末尾。
func defaultMessages(query string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: "This is a RAG chatbot using OpenAI to generate responses."},
		{Role: "system", Content: "This is the query done by the user: " + query},
		{Role: "system", Content: "In relation to the user query, these are text chunks retrieved from the in-house vector database:"},
		{Role: "system", Content: "Generate the response based only on the provided text chunks. Be concise and factual, and do not add information that is not supported by the chunks."},
		{Role: "system", Content: "At the end of the response, list the document names of the chunks that were actually used to generate the response, under a 'References' section."},
		{Role: "system", Content: "If text chunks are not provided, inform the user that there is no relevant information available for this question. In that case, do not create answers from your own knowledge."},
		{Role: "system", Content: "Below are the extracted text chunks retrieved from the in-house vector database:"},
	}
}

// hrMessages 是面向人事场景的模板：语气更正式，
// 并要求回答引用政策文件名与页码。
func hrMessages(query string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: "You are an HR assistant chatbot. You answer employee questions about company policies, contracts and internal documents."},
		{Role: "system", Content: "This is the query done by the user: " + query},
		{Role: "system", Content: "Answer strictly based on the provided policy text chunks. Use a professional and neutral tone."},
		{Role: "system", Content: "When the chunks disagree, prefer the document with the most recent issue date and say so explicitly."},
		{Role: "system", Content: "At the end of the response, list the document names of the chunks that were actually used, under a 'References' section."},
		{Role: "system", Content: "If text chunks are not provided, inform the user that there is no relevant information available for this question. In that case, do not create answers from your own knowledge."},
		{Role: "system", Content: "Below are the extracted policy text chunks:"},
	}
}

// followUpMessages 是追问模板：携带最近的会话文本，
// 让模型相对上一轮回答来解释当前简短查询。
func followUpMessages(transcript, query string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: "This is a RAG chatbot using OpenAI to generate responses."},
		{Role: "system", Content: "The user is asking a follow-up question to the previous exchange. Here is the most recent conversation history:\n" + transcript},
		{Role: "system", Content: "This is the follow-up query done by the user: " + query},
		{Role: "system", Content: "Interpret the follow-up query in the context of the conversation history above, and generate the response based only on the provided text chunks."},
		{Role: "system", Content: "At the end of the response, list the document names of the chunks that were actually used, under a 'References' section."},
		{Role: "system", Content: "If text chunks are not provided, inform the user that there is no relevant information available for this question. In that case, do not create answers from your own knowledge."},
		{Role: "system", Content: "Below are the extracted text chunks retrieved from the in-house vector database:"},
	}
}

// consistencyMessage 在命中重复提问时附带上一次的回答，
// 要求新回答与之保持一致。
func consistencyMessage(previousResponse string) llm.Message {
	return llm.Message{
		Role: "system",
		Content: "This is my previous response to a similar query:\n" + previousResponse +
			"\nPlease make the new response as consistent as possible with the above, but do not neglect any new information provided. Update or add to the answer as needed.",
	}
}

// contextMessage 将一个检索块渲染为带序号的上下文消息。
func contextMessage(rank int, text, documentName string) llm.Message {
	return llm.Message{
		Role:    "user",
		Content: fmt.Sprintf("Context %d: %s | Document: %s", rank, text, documentName),
	}
}

// noChunksMessage 明确告知模型本次没有任何检索结果。
func noChunksMessage() llm.Message {
	return llm.Message{
		Role:    "system",
		Content: "No text chunks were retrieved for this query.",
	}
}
