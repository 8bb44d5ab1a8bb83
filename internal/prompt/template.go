package prompt

// Placeholders substituted by the builder
const (
	ResumePlaceholder         = "{text}"
	JobDescriptionPlaceholder = "{jd}"
)

// DefaultTemplate is the built-in evaluator prompt
const DefaultTemplate = `
Hey Act Like a skilled or very experience ATS (Application Tracking System)
with a deep understanding of tech field, software engineering, data science, data analyst,
and big data engineer. Your task is to evaluate the resume based on the given job description.
You must consider the job market is very competitive and you should provide
best assistance for improving the resumes. Assign the percentage Matching based
on Jd and the missing keywords with high accuracy.

The resume content is provided in ` + "`resume`" + ` and the job description in ` + "`description`" + `.

resume:
{text}

description:
{jd}

I want the response as a single, valid JSON object, and ONLY the JSON object,
matching the following structure exactly:
{"JD Match": "%", "MissingKeywords": [], "Profile Summary": ""}
`
