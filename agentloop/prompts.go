package agentloop

const artifactFormat = `Return every file you produce in this exact format, one block per file:

<artifact filename="relative/path/to/file.ext" type="source_code">
<![CDATA[
...complete file content...
]]>
</artifact>

Use the real relative path as the filename. Valid types are source_code, configuration,
documentation, test, build, script and data. Do not use placeholder or example content,
and do not wrap shell commands you want run in an artifact; mention them in prose instead.`

const diffFormat = `This step modifies existing files. For each file you change, put a unified diff in the
artifact body instead of the whole file:

<artifact filename="relative/path/to/file.ext" type="diff">
<![CDATA[
--- a/relative/path/to/file.ext
+++ b/relative/path/to/file.ext
@@ -12,3 +12,4 @@
 unchanged context line
-removed line
+added line
+another added line
 unchanged context line
]]>
</artifact>

Line numbers in the @@ headers refer to the current file contents shown below. Prefix context
lines with a space, removed lines with "-" and added lines with "+". A file that does not exist
yet may be given in full instead.`

var categoryInstructions = map[StepCategory]string{
	CategoryAnalysis: "Analyze the relevant code and requirements. Report findings concisely. " +
		"Only produce an artifact if the analysis itself should be saved as a document.",
	CategoryFileOperation: "Create the files this step calls for with complete, working content. " +
		"Every file must be complete; never leave sections for later.",
	CategoryCodeGeneration: "Write complete, idiomatic, production-quality code for this step, " +
		"including error handling. Put each file in its own artifact.",
	CategoryCodeModification: "Change the existing code to accomplish this step. Keep unrelated code " +
		"as it is and keep the change as small as the step allows.",
	CategoryTesting: "Write tests that exercise the behavior described in this step, covering normal " +
		"cases, edge cases and failures. Put each test file in its own artifact.",
	CategoryDocumentation: "Write clear documentation for this step: purpose, usage and examples " +
		"that match the actual code.",
	CategoryResearch: "Research the question in this step and summarize the findings with concrete " +
		"recommendations. Produce an artifact only if a document should be saved.",
	CategoryReview: "Review the work relevant to this step and list concrete problems and fixes. " +
		"Produce corrected files as artifacts only when a fix is needed.",
}

func instructionsFor(c StepCategory) string {
	if s, ok := categoryInstructions[c]; ok {
		return s
	}
	return categoryInstructions[CategoryAnalysis]
}
