package sourcemap

import "regexp"

// sourceMappingURLPattern matches an existing sourceMappingURL comment in
// either the line ("//# ..." / "//@ ...") or block ("/*# ... */" /
// "/*@ ... */") syntax, including the legacy "@" sigil.
var sourceMappingURLPattern = regexp.MustCompile(`(?://[#@]\s*sourceMappingURL=\S+)|(?:/\*[#@]\s*sourceMappingURL=[^*]*\*/)`)

// EmitSourceMapURL returns content with its sourceMappingURL comment set to
// url: an existing comment (either syntax) is replaced in place; otherwise a
// new comment is appended on its own line. singleLine selects the "//#"
// line-comment form over the "/*#... */" block form.
func EmitSourceMapURL(content, url string, singleLine bool) string {
	comment := formatSourceMappingURLComment(url, singleLine)

	if sourceMappingURLPattern.MatchString(content) {
		return sourceMappingURLPattern.ReplaceAllString(content, comment)
	}

	if content == "" {
		return comment
	}
	return content + "\n" + comment
}

func formatSourceMappingURLComment(url string, singleLine bool) string {
	if singleLine {
		return "//# sourceMappingURL=" + url
	}
	return "/*# sourceMappingURL=" + url + " */"
}
