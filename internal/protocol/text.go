package protocol

import "strings"

// SplitTokens splits a pipe-delimited blob into its tokens, in order.
// "1.2.3.4|77|uuid" yields ["1.2.3.4", "77", "uuid"].
func SplitTokens(blob string) []string {
	return strings.Split(strings.TrimRight(blob, "\x00"), "|")
}

// Field is one key|value pair of a text packet.
type Field struct {
	Key   string
	Value string
}

// TextPacket is an ordered list of key|value lines as sent in generic text
// and game messages. Order is preserved because the server compares login
// lines field by field.
type TextPacket struct {
	fields []Field
}

// ParseTextPacket parses newline-separated key|value lines. Lines without a
// separator are kept with an empty value; a value may itself contain pipes.
func ParseTextPacket(text string) *TextPacket {
	t := &TextPacket{}
	for _, line := range strings.Split(strings.TrimRight(text, "\x00"), "\n") {
		if line == "" {
			continue
		}
		key, value, _ := strings.Cut(line, "|")
		t.fields = append(t.fields, Field{Key: key, Value: value})
	}
	return t
}

// Add appends a field.
func (t *TextPacket) Add(key, value string) *TextPacket {
	t.fields = append(t.fields, Field{Key: key, Value: value})
	return t
}

// Get returns the value of the first field named key.
func (t *TextPacket) Get(key string) (string, bool) {
	for _, f := range t.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Fields returns the fields in order.
func (t *TextPacket) Fields() []Field {
	return t.fields
}

// String renders the packet as key|value lines, each terminated by a newline.
func (t *TextPacket) String() string {
	var sb strings.Builder
	for _, f := range t.fields {
		sb.WriteString(f.Key)
		sb.WriteByte('|')
		sb.WriteString(f.Value)
		sb.WriteByte('\n')
	}
	return sb.String()
}
