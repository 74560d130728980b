package report

import (
	"fmt"
	"strings"
	"time"

	"texplicit_backend/internal/domain"
)

const defaultAgent = "Default Agent"

const defaultAgentRole = "You are an AI critical thinker research assistant. Your sole purpose is to write well written, " +
	"critically acclaimed, objective and structured reports on given text."

const agentInstructions = `This task involves researching a given topic, regardless of its complexity or the availability of a definitive answer. The research is conducted by a specific agent, defined by its type and role, with each agent requiring distinct instructions.
Agent
The agent is determined by the field of the topic and the specific name of the agent that could be utilized to research the topic provided. Agents are categorized by their area of expertise, and each agent type is associated with a corresponding emoji.

examples:
task: "should I invest in apple stocks?"
response:
{
    "agent": "💰 Finance Agent",
    "agent_role_prompt": "You are a seasoned finance analyst AI assistant. Your primary goal is to compose comprehensive, astute, impartial, and methodically arranged financial reports based on provided data and trends."
}
task: "could reselling sneakers become profitable?"
response:
{
    "agent": "📈 Business Analyst Agent",
    "agent_role_prompt": "You are an experienced AI business analyst assistant. Your main objective is to produce comprehensive, insightful, impartial, and systematically structured business reports based on provided business data, market trends, and strategic analysis."
}
task: "what are the most interesting sites in Tel Aviv?"
response:
{
    "agent": "🌍 Travel Agent",
    "agent_role_prompt": "You are a world-travelled AI tour guide assistant. Your main purpose is to draft engaging, insightful, unbiased, and well-structured travel reports on given locations, including history, attractions, and cultural insights."
}`

func dateLine(now time.Time) string {
	return now.Format("January 02, 2006")
}

func searchQueriesPrompt(task string, n int, now time.Time) string {
	return fmt.Sprintf(`Write %d google search queries to search online that form an objective opinion from the following: "%s"`+
		"Use the current date if needed: %s.\n"+
		`You must respond with a list of strings in the following format: ["query 1", "query 2", "query 3"].`,
		n, task, dateLine(now))
}

func pageSummaryPrompt(query, text string) string {
	return fmt.Sprintf(`%s
 Using the above text, summarize it based on the following task or query: "%s".
 If the query cannot be answered using the text, YOU MUST summarize the text in short.
 Include all factual information such as numbers, stats, quotes, etc if available. `, text, query)
}

func subtopicsPrompt(task, context string, max int) string {
	return fmt.Sprintf(`Provided the main topic:

%s

and research data:

%s

- Construct a list of subtopics which indicate the headers of a report document to be generated on the task.
- There should NOT be any duplicate subtopics.
- Limit the number of subtopics to a maximum of %d.
- Finally order the subtopics by their tasks, in a relevant and meaningful order which is presentable in a detailed report.
Respond only with a JSON list of strings.`, task, context, max)
}

func sourceWord(source domain.ReportSource) string {
	if source == domain.SourceMyDocuments {
		return "documents"
	}
	return "urls"
}

const hyperlinkInstruction = `
Additionally, you MUST include hyperlinks to the relevant URLs wherever they are referenced in the report:

eg:
    # Report Header

    This is a sample text. ([url website](url))
`

func researchReportPrompt(task, context string, source domain.ReportSource, now time.Time) string {
	var links, urlForm string
	if source != domain.SourceMyDocuments {
		links = hyperlinkInstruction
		urlForm = "(Each url in hyperlinked form : [url website](url))"
	}
	return fmt.Sprintf(`Information: """%s"""

Using the above information, answer the following query or task: "%s" in a detailed report -- `+
		"The report should focus on the answer to the query, should be well structured, informative, "+
		"in depth and comprehensive, with facts and numbers if available and a minimum of 1000 words.\n"+
		"You should strive to write the report as long as you can using all relevant and necessary information provided.\n"+
		"You must write the report with markdown syntax.\n"+
		"Use an unbiased and journalistic tone.\n"+
		"You MUST determine your own concrete and valid opinion based on the given information. Do NOT deter to general and meaningless conclusions.\n"+
		"All related numerical values (if any) should be bold.\n"+
		"You MUST write all used source %s%s at the end of the report as references, and make sure to not add duplicated sources, but only one reference for each.%s"+
		"You MUST write the report in apa format.\n"+
		"Cite search results using inline notations. Only cite the most relevant results that answer the query accurately. "+
		"Place these citations at the end of the sentence or paragraph that reference them.\n"+
		"Assume that the current date is %s",
		context, task, sourceWord(source), urlForm, links, dateLine(now))
}

func resourceReportPrompt(task, context string, source domain.ReportSource) string {
	return fmt.Sprintf(`"""%s"""

Based on the above information, generate a bibliography recommendation report for the following question or topic: "%s". `+
		"The report should provide a detailed analysis of each recommended resource, "+
		"explaining how each source can contribute to finding answers to the research question.\n"+
		"Focus on the relevance, reliability, and significance of each source.\n"+
		"Ensure that the report is well-structured, informative, in-depth, and follows Markdown syntax.\n"+
		"Include relevant facts, figures, and numbers whenever available.\n"+
		"The report should have a minimum length of 700 words.\n"+
		"You MUST include all relevant source %s.", context, task, sourceWord(source))
}

func outlineReportPrompt(task, context string) string {
	return fmt.Sprintf(`"""%s""" Using the above information, generate an outline for a research report in Markdown syntax`+
		` for the following question or topic: "%s". The outline should provide a well-structured framework`+
		" for the research report, including the main sections, subsections, and key points to be covered."+
		" The research report should be detailed, informative, in-depth, and a minimum of 1,200 words."+
		" Use appropriate Markdown syntax to format the outline and ensure readability.", context, task)
}

func customReportPrompt(task, context string) string {
	return fmt.Sprintf("%q\n\n%s", context, task)
}

func subtopicReportPrompt(subtopic string, others []string, task, context string, source domain.ReportSource, now time.Time) string {
	var links string
	if source != domain.SourceMyDocuments {
		links = hyperlinkInstruction
	}
	return fmt.Sprintf(`"""%s""" Using the above latest information, construct a detailed report on the subtopic: %s under the main topic: %s.
- The report should focus on the answer to the question, should be well structured, informative,
in-depth, with facts and numbers if available, a minimum of 1000 words and with markdown syntax.
- As this report will be part of a bigger report, you must ONLY include the main body divided into suitable subtopics,
without any introduction, conclusion, or reference section.
%s
- All related numerical values (if any) should be bold.
- Also avoid including any details from these other subtopics: [%s]
- Ensure that you use smaller Markdown headers (e.g., H2 or H3) to structure your content and avoid using the largest Markdown header (H1).
The H1 header will be used for the heading of the larger report later on.
- Do NOT include any details, urls or references where data is unavailable.
- Do NOT include any conclusion or summary section!
Assume that the current date is %s if required.`,
		context, subtopic, task, links, strings.Join(others, ", "), dateLine(now))
}

func introductionPrompt(task, context string, now time.Time) string {
	return fmt.Sprintf(`"""%s""" Using the above latest information, prepare a detailed report introduction on the topic -- %s.
- The introduction should be succinct, well-structured, informative with markdown syntax.
- As this introduction will be part of a larger report, do NOT include any other sections, which are generally present in a report.
- The introduction should be preceded by an H1 heading with a suitable topic for the entire report.
Assume that the current date is %s if required.`, context, task, dateLine(now))
}

func conclusionPrompt(task, context string, now time.Time) string {
	return fmt.Sprintf(`"""%s""" Using the above information, generate a detailed report conclusion on the topic -- %s.
- The conclusion should be succinct, well-structured, informative with markdown syntax following APA format.
- Do NOT defer to general and meaningless conclusions.
- Since the conclusion will be part of a larger report, do not generate any other sections that are generally present in reports.
- Use a 'Conclusion' H2 header.
- If there are urls present, they MUST be hyperlinked.
Assume that the current date is %s if required.`, context, task, dateLine(now))
}

// writePrompt picks the template for a single-pass report.
func writePrompt(t domain.ReportType, task, context string, source domain.ReportSource, now time.Time) string {
	switch t {
	case domain.ResourceReport:
		return resourceReportPrompt(task, context, source)
	case domain.OutlineReport:
		return outlineReportPrompt(task, context)
	case domain.CustomReport:
		return customReportPrompt(task, context)
	case domain.SubtopicReport:
		return subtopicReportPrompt(task, nil, task, context, source, now)
	default:
		return researchReportPrompt(task, context, source, now)
	}
}
