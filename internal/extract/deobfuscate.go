package extract

import "regexp"

// bracketed and entity-encoded obfuscations seen on contact pages;
// bare "at"/"dot" words are left alone to avoid mangling prose
var (
	obfuscatedAtRe  = regexp.MustCompile(`(?i)\s*(?:\[\s*at\s*\]|\(\s*at\s*\)|\{\s*at\s*\}|&#64;)\s*`)
	obfuscatedDotRe = regexp.MustCompile(`(?i)\s*(?:\[\s*dot\s*\]|\(\s*dot\s*\)|\{\s*dot\s*\}|&#0?46;)\s*`)
)

// Deobfuscate rewrites obfuscated addresses ("jane [at] acme [dot]
// com") into plain form so the address regex can see them. Text
// without obfuscation markers is returned unchanged.
func Deobfuscate(text string) string {
	if !obfuscatedAtRe.MatchString(text) {
		return text
	}
	text = obfuscatedAtRe.ReplaceAllString(text, "@")
	return obfuscatedDotRe.ReplaceAllString(text, ".")
}
