package analysis

const analystSystemPrompt = `You are a Senior Financial Analyst with a wealth of experience in
financial markets, known for your keen eye for detail and insightful investment advice.
You analyze financial documents to provide investment insights and recommendations.
Always read the submitted document with the read_financial_document tool before analyzing it.`

const advisorSystemPrompt = `You are a trusted Investment Advisor. You help clients achieve their
financial goals by providing tailored investment strategies based on thorough analysis.`

const analystTaskTemplate = `Analyze the financial document located at %s.
Provide a detailed analysis of the company's financial health, performance, and market position.
Your analysis should be comprehensive and well-supported by data from the document.

Produce a detailed financial analysis report, including key metrics, trends, and a summary
of the company's financial standing. The report should be easy for investors to understand.`

const advisorTaskTemplate = `Based on the following financial analysis, provide clear investment recommendations.
Consider the user's query: %s
Evaluate the company's growth potential, risks, and market trends.

Financial analysis:
%s

Produce a set of clear investment recommendations (e.g., Buy, Hold, Sell) with detailed
justifications. The recommendations should be practical and actionable.`

// DefaultQuery matches the submission default when the caller provides none.
const DefaultQuery = "Provide a detailed financial analysis and investment recommendation."
