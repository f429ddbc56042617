package assistant

// Prompt templates for the lecture-brief pipeline. Placeholders are filled
// with fmt.Sprintf; ordering of the verbs matters.

const planQueriesPrompt = `You are a research planner preparing a lecture brief.
Topic: %s

Produce up to 5 focused web search queries that together cover the topic's
definition, key concepts, history, current research and common applications.
Return one query per line with no numbering and no commentary.`

const planBriefPrompt = `You are preparing a research plan for a lecture brief.
Topic: %s

Search queries:
%s

Write a short plan (5-8 sentences) describing what the lecture brief will
cover, which angles the queries address, and what a reviewer should check
before research begins.`

const extractClaimsPrompt = `You are extracting factual claims for a lecture brief.
Topic: %s

Sources (JSON):
%s

Return strict JSON of the shape:
{"claims": [{"id": 1, "text": "...", "citations": ["S1"]}],
 "citation_map": {"S1": {"title": "...", "url": "..."}}}

Extract 6-10 verifiable claims grounded in the sources. Cite every claim.
Return only the JSON object.`

const synthesizeOutlinePrompt = `You are synthesizing a lecture outline.
Topic: %s

Sources (JSON):
%s

Write a structured lecture outline in markdown: an introduction, 4-6 main
sections with bullet points, and a closing summary. Ground every section in
the sources.`

const refineOutlinePrompt = `Revise the lecture outline below according to the reviewer feedback.
Keep the structure unless the feedback asks otherwise.

Outline:
%s

Feedback:
%s

Return the full revised outline.`

const adjustTonePrompt = `Adjust the tone and focus of the lecture outline below.

Outline:
%s

Preferences:
%s

Return the full adjusted outline.`

const finalBriefPrompt = `Write the final lecture brief.
Topic: %s

Outline:
%s

Expand the outline into flowing prose suitable for a lecturer preparing the
class: 600-900 words, clear section headings, concrete examples where the
outline supports them.`

const formatBriefPrompt = `Format the lecture brief below as clean markdown:
consistent heading levels, short paragraphs, bullet lists where the text
enumerates, and a "Key takeaways" section at the end. Do not change the
content.

Brief:
%s`
