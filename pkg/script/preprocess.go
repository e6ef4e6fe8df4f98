package script

import "strings"

// kwPrefix marks a keyword after preprocessing.
const kwPrefix = "__kw_"

// preprocessSource rewrites source into something zygomys accepts:
//
//   - ";" line comments become "//" comments.
//   - :keyword becomes the string "__kw_keyword", so keywords need no
//     global binding.
//   - kebab-case identifiers become snake_case, since zygomys reads a
//     hyphen as subtraction.
//
// String literals are copied unchanged.
func preprocessSource(source string) string {
	var out strings.Builder
	out.Grow(len(source) + len(source)/4)

	n := len(source)
	for i := 0; i < n; {
		c := source[i]
		switch {
		case c == '"':
			j := i + 1
			for j < n && source[j] != '"' {
				if source[j] == '\\' && j+1 < n {
					j++
				}
				j++
			}
			j = min(j+1, n)
			out.WriteString(source[i:j])
			i = j

		case c == '`':
			j := i + 1
			for j < n && source[j] != '`' {
				j++
			}
			j = min(j+1, n)
			out.WriteString(source[i:j])
			i = j

		case c == ';':
			for i < n && source[i] == ';' {
				i++
			}
			out.WriteString("//")
			j := i
			for j < n && source[j] != '\n' {
				j++
			}
			out.WriteString(source[i:j])
			i = j

		case c == ':' && i+1 < n && source[i+1] == '=':
			out.WriteString(":=")
			i += 2

		case c == ':' && i+1 < n && isLetter(source[i+1]):
			j := i + 1
			for j < n && isKeywordChar(source[j]) {
				j++
			}
			out.WriteByte('"')
			out.WriteString(kwPrefix)
			out.WriteString(strings.ReplaceAll(source[i+1:j], "-", "_"))
			out.WriteByte('"')
			i = j

		case c == '-' && i > 0 && i+1 < n && isIdentChar(source[i-1]) && isLetter(source[i+1]):
			out.WriteByte('_')
			i++

		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_'
}

func isKeywordChar(c byte) bool {
	return isIdentChar(c) || c == '-'
}
