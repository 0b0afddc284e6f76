package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessageRespectsLimit(t *testing.T) {
	var builder strings.Builder
	builder.WriteString(strings.Repeat("a", 3500))
	builder.WriteString("\n\n")
	builder.WriteString(strings.Repeat("b", 1500))
	builder.WriteString("\n")
	builder.WriteString(strings.Repeat("c", 400))

	parts := SplitMessage(builder.String())
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	for i, part := range parts {
		if length := len([]rune(part)); length > messageLimit {
			t.Fatalf("часть %d превышает лимит: %d", i, length)
		}
	}
	if parts[0] != strings.Repeat("a", 3500) {
		t.Fatalf("неожиданное содержимое первой части")
	}
	if !strings.HasSuffix(parts[1], strings.Repeat("c", 400)) {
		t.Fatalf("вторая часть должна заканчиваться блоком 'c'")
	}
}

func TestSplitMessageNoNewlines(t *testing.T) {
	parts := SplitMessage(strings.Repeat("x", messageLimit+10))
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	if len([]rune(parts[0])) != messageLimit {
		t.Fatalf("первая часть должна быть ровно в лимит, получили %d", len([]rune(parts[0])))
	}
}

func TestSplitMessageShortText(t *testing.T) {
	text := "привет, клуб"
	parts := SplitMessage(text)
	if len(parts) != 1 {
		t.Fatalf("ожидали одну часть, получили %d", len(parts))
	}
	if parts[0] != text {
		t.Fatalf("неожиданный текст: %q", parts[0])
	}
}

func TestSplitMessageEmpty(t *testing.T) {
	if parts := SplitMessage("   \n  "); len(parts) != 0 {
		t.Fatalf("ожидали пустой результат, получили %d частей", len(parts))
	}
}
