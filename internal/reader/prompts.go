package reader

const relevancePrompt = `## Task Introduction
You are a professional information processing expert, proficient in extracting key information from multi-paragraph texts.
Your task is to extract all the content related to the following question and search intent from the document.

## Input Information
The overall topic being researched: %s
The specific question currently being processed: %s
The current search intent: %s

Extract relevant information according to the following requirements:
- Read the document content carefully and extract all information related to the current question and the search intent.
- The extracted information should be as detailed as possible; list all relevant information completely and do not omit anything relevant.
- The extracted information must be grounded in the provided web page content. Do not fabricate information.

## Output Format
{
    "think": "<your thinking process> using string format",
    "related_information": "<related information> using string format"
}`

const extractPrompt = `You are a text processing expert. Filter out content-irrelevant characters from web page text and return clean text content.
Your output must be the clean text content of the page only, without any additional content such as your thought process.

### Key Tasks:
1. Remove markup remnants (e.g. <div>, <script>, <style>).
2. Strip unnecessary whitespace and excessive blank lines.
3. Eliminate hidden or invisible characters (e.g. &nbsp;, special Unicode).
4. Keep only readable text: sentences, paragraphs, and meaningful symbols.`

const pageInputPrompt = `## Publish Date: %s
## Web title: %s
## Web content: %s`
