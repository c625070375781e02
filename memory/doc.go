// Package memory persists conversations as readable markdown files.
//
// File format:
//
//	# <Title or placeholder>
//
//	## You
//	<user message>
//
//	## Assistant
//	<assistant message>
//
// Sections alternate starting with "## You". A file is first named <id>.md and,
// once a title is generated, renamed to <id>-<slug>.md so the leading segment
// of every file name is the conversation id. Ids are 32 lowercase hex
// characters and never contain '-'.
package memory
