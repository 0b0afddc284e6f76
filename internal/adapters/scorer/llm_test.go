package scorer

import (
	"context"
	"errors"
	"testing"

	openai "aiclub-bot/internal/infra/openai"
)

type fakeClient struct {
	content string
	err     error
	lastReq openai.ChatCompletionRequest
}

func (f *fakeClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatMessage{Content: f.content}}},
	}, nil
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{input: "7", want: 7},
		{input: " 10 ", want: 10},
		{input: "1", want: 1},
		{input: "8.", want: 8},
		{input: "0", wantErr: true},
		{input: "11", wantErr: true},
		{input: "-3", wantErr: true},
		{input: "семь", wantErr: true},
		{input: "7/10", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseScore(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrBadScore) {
				t.Fatalf("ParseScore(%q): ожидали ErrBadScore, получили %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseScore(%q): не ожидали ошибку: %v", tt.input, err)
		}
		if got != tt.want {
			t.Fatalf("ParseScore(%q) = %d, ожидали %d", tt.input, got, tt.want)
		}
	}
}

func TestScoreReply(t *testing.T) {
	client := &fakeClient{content: "9"}
	llm := NewLLM(client, "test-model", 0)

	score, err := llm.ScoreReply(context.Background(), "как выбрать модель?", "начните с маленькой")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if score != 9 {
		t.Fatalf("ожидали 9, получили %d", score)
	}
	if client.lastReq.Model != "test-model" {
		t.Fatalf("ожидали модель test-model, получили %s", client.lastReq.Model)
	}
	if len(client.lastReq.Messages) != 2 {
		t.Fatalf("ожидали 2 сообщения в запросе")
	}
}

func TestScoreReplyBadResponse(t *testing.T) {
	llm := NewLLM(&fakeClient{content: "затрудняюсь ответить"}, "test-model", 0)
	if _, err := llm.ScoreReply(context.Background(), "вопрос", "ответ"); !errors.Is(err, ErrBadScore) {
		t.Fatalf("ожидали ErrBadScore, получили %v", err)
	}
}
