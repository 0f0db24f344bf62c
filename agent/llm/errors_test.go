package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	openaisdk "github.com/openai/openai-go"
	contractx "github.com/tanpawarit/chative-commerce-agent/agent/contract"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline", err: fmt.Errorf("generate: %w", context.DeadlineExceeded), want: true},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "sdk 503", err: &openaisdk.Error{StatusCode: 503}, want: true},
		{name: "sdk 529", err: &openaisdk.Error{StatusCode: StatusOverloaded}, want: true},
		{name: "overloaded text", err: errors.New("The model is overloaded. Please try again later."), want: true},
		{name: "status text", err: errors.New("error, status code: 429, status: 429 Too Many Requests"), want: true},
		{name: "bad request text", err: errors.New("error, status code: 400, message: invalid"), want: false},
		{name: "sentinel", err: contractx.ErrUpstreamOverloaded, want: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	if err := Classify(errors.New("overloaded")); !errors.Is(err, contractx.ErrUpstreamOverloaded) {
		t.Fatalf("expected ErrUpstreamOverloaded, got %v", err)
	}
	if err := Classify(errors.New("invalid api key")); !errors.Is(err, contractx.ErrUpstreamFailure) {
		t.Fatalf("expected ErrUpstreamFailure, got %v", err)
	}
	if Classify(nil) != nil {
		t.Fatal("Classify(nil) must be nil")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	if err := (Config{Model: "m"}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing key, got %v", err)
	}
	if err := (Config{APIKey: "k", Model: "m", Temperature: 0.3}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	or := Config{APIKey: " k ", Model: " google/gemini-2.0-flash ", MaxCompletionToken: 500}.OpenRouter()
	if or.APIKey != "k" || or.Model != "google/gemini-2.0-flash" || *or.MaxCompletionToken != 500 {
		t.Fatalf("unexpected openrouter config: %#v", or)
	}
}
