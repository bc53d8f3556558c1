package research

const decompositionPrompt = `You are a research planner. Break the user's question into 5 to 8 focused sub-questions that can each be answered by a web search.

User question: %s

For each sub-question provide:
- "id": a short unique identifier
- "question": the sub-question
- "category": one of pricing, features, comparison, facts, opinions, news
- "priority": one of high, medium, low
- "searchQuery": a concise search-engine query of at most 8 words, without years or filler words

Order the sub-questions from most to least important.
Respond with JSON only, in this exact shape:
{"subQuestions": [{"id": "1", "question": "...", "category": "facts", "priority": "high", "searchQuery": "..."}]}`

const factExtractionPrompt = `Extract verifiable facts from the web page below that help answer these research questions:
%s

Page title: %s
Page URL: %s

Page content:
%s

Rules:
- Only extract factual statements written in natural language in the page's main content.
- Never extract CSS, JavaScript, HTML, styling, layout, navigation, cookie notices or other UI text.
- Prefer concrete facts: prices, features, statistics, dates and named entities.
- Extract at most %d facts.

Respond with JSON only, in this exact shape:
{"facts": [{"claim": "...", "value": "...", "context": "short quote from the page", "confidence": 0-100, "category": "pricing|feature|statistic|date|fact|claim|other"}]}`

const gapAnalysisPrompt = `You are reviewing research progress on this question: %s

Sub-questions:
%s

Facts gathered so far:
%s

Identify important information that is still missing and any facts where sources conflict.
For each gap give the sub-question id it belongs to (or "new" if it belongs to none), a description, a concise follow-up search query, and an importance of critical, important or nice-to-have.

Respond with JSON only, in this exact shape:
{"gaps": [{"subQuestionId": "1", "description": "...", "suggestedQuery": "...", "importance": "critical"}], "conflicts": [{"topic": "...", "description": "...", "suggestedQuery": "..."}]}`

const synthesisPrompt = `Answer the user's question using only the numbered facts below. Cite facts with their source markers, for example [1] or [2][3]. Do not state anything that is not supported by the listed facts.

Question: %s

Facts:
%s

Known gaps:
%s

Write a markdown answer with these sections:
## Answer
A direct answer in two or three sentences.
## Key Findings
Bulleted findings with citations.
## Analysis
One "###" header per aspect of the question, each with cited discussion.
## Conclusion
A short conclusion that mentions remaining uncertainty.`

const followUpPrompt = `A user asked: %s

Their research produced this answer:
%s

Suggest 3 or 4 natural follow-up questions the user might ask next.
Respond with a JSON array of strings only.`
