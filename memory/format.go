package memory

import (
	"strings"
)

const (
	titlePrefix     = "# "
	sectionPrefix   = "## "
	userMarker      = sectionPrefix + "You"
	assistantMarker = sectionPrefix + "Assistant"
)

// Format renders a whole conversation file. It is the inverse of Parse.
// Layout: "# <title>\n\n", then per message "## You\n" or "## Assistant\n"
// directly followed by the body (no blank line after the heading) and "\n\n".
func Format(title string, msgs []Message) string {
	var sb strings.Builder
	sb.WriteString(formatHeading(title))
	for _, m := range msgs {
		sb.WriteString(formatSection(m))
	}
	return sb.String()
}

func formatHeading(title string) string {
	return titlePrefix + oneLine(title) + "\n\n"
}

func formatSection(m Message) string {
	return sectionPrefix + m.Role.Label() + "\n" + escapeBody(normalizeContent(m.Content)) + "\n\n"
}

// Parse reads a conversation file into its title and ordered messages.
func Parse(contents string) (string, []Message, error) {
	lines := splitLines(contents)
	if len(lines) == 0 || !strings.HasPrefix(lines[0].text, titlePrefix) {
		return "", nil, &MalformedError{Line: 1, Marker: titlePrefix + "<title>"}
	}
	title := strings.TrimSpace(strings.TrimPrefix(lines[0].text, titlePrefix))

	type section struct {
		role      Role
		bodyStart int
		lineStart int
	}
	var sections []section
	want := RoleUser
	for i := 1; i < len(lines); i++ {
		l := lines[i]
		role, ok := sectionRole(l.text)
		if !ok {
			if len(sections) == 0 && strings.TrimSpace(l.text) != "" {
				return "", nil, &MalformedError{Line: i + 1, Marker: userMarker}
			}
			continue
		}
		if role != want {
			return "", nil, &MalformedError{Line: i + 1, Marker: sectionPrefix + want.Label()}
		}
		sections = append(sections, section{role: role, bodyStart: l.next, lineStart: l.start})
		want = role.Next()
	}
	if len(sections) == 0 {
		return "", nil, &MalformedError{Line: len(lines) + 1, Marker: userMarker}
	}

	msgs := make([]Message, 0, len(sections))
	for i, s := range sections {
		end := len(contents)
		if i+1 < len(sections) {
			end = sections[i+1].lineStart
		}
		body := contents[s.bodyStart:end]
		msgs = append(msgs, Message{Role: s.role, Content: unescapeBody(normalizeContent(body))})
	}
	return title, msgs, nil
}

type lineSpan struct {
	text  string // without the newline
	start int    // offset of the first byte
	next  int    // offset just past the newline
}

func splitLines(s string) []lineSpan {
	var out []lineSpan
	for start := 0; start < len(s); {
		i := strings.IndexByte(s[start:], '\n')
		if i < 0 {
			out = append(out, lineSpan{text: s[start:], start: start, next: len(s)})
			break
		}
		out = append(out, lineSpan{text: s[start : start+i], start: start, next: start + i + 1})
		start += i + 1
	}
	return out
}

// sectionRole recognizes a section heading, tolerating trailing whitespace.
func sectionRole(line string) (Role, bool) {
	switch strings.TrimRight(line, " \t\r") {
	case userMarker:
		return RoleUser, true
	case assistantMarker:
		return RoleAssistant, true
	}
	return 0, false
}

// A body line that would read as a section heading is written with one more
// leading backslash; parsing removes one. "\## You" renders as literal text.
func escapeBody(body string) string {
	if !strings.Contains(body, sectionPrefix) {
		return body
	}
	lines := strings.Split(body, "\n")
	for i, l := range lines {
		if _, ok := sectionRole(strings.TrimLeft(l, `\`)); ok {
			lines[i] = `\` + l
		}
	}
	return strings.Join(lines, "\n")
}

func unescapeBody(body string) string {
	if !strings.Contains(body, `\`+sectionPrefix) {
		return body
	}
	lines := strings.Split(body, "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, `\`) {
			if _, ok := sectionRole(strings.TrimLeft(l, `\`)); ok {
				lines[i] = l[1:]
			}
		}
	}
	return strings.Join(lines, "\n")
}
