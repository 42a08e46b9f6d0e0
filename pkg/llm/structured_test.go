package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scripted struct {
	replies []string
	seen    []*Options
}

func (s *scripted) Complete(_ context.Context, _ Task, _ []Message, options ...Option) (string, error) {
	s.seen = append(s.seen, Apply(options...))
	if len(s.replies) == 0 {
		return "", errors.New("exhausted")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

type pair struct {
	KeyInsight     string `json:"keyInsight"`
	Recommendation string `json:"recommendation"`
}

func TestDecodeJSON_FencedFallback(t *testing.T) {
	var p pair
	err := DecodeJSON("Sure!\n```json\n{\"keyInsight\":\"a\",\"recommendation\":\"b\"}\n```", &p)
	require.NoError(t, err)
	assert.Equal(t, "a", p.KeyInsight)

	err = DecodeJSON("not json at all", &p)
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestDecodeLenient_EmbeddedObject(t *testing.T) {
	var p pair
	err := DecodeLenient(`Here you go: {"keyInsight":"x","recommendation":"y"} hope it helps`, &p)
	require.NoError(t, err)
	assert.Equal(t, "y", p.Recommendation)
}

func TestCompleteJSON_RequestsJSONAndValidates(t *testing.T) {
	s := &scripted{replies: []string{`{"keyInsight":"","recommendation":"r"}`}}
	_, err := CompleteJSON(context.Background(), s, TaskGeneration, nil, func(p pair) error {
		if p.KeyInsight == "" {
			return errors.New("keyInsight required")
		}
		return nil
	})
	require.Error(t, err)
	require.Len(t, s.seen, 1)
	assert.Equal(t, FormatJSON, s.seen[0].ResponseFormat)
}

type recordingProvider struct {
	model string
}

func (p *recordingProvider) Chat(_ context.Context, _ []Message, options ...Option) (string, error) {
	p.model = Apply(options...).Model
	return "ok", nil
}

func (p *recordingProvider) Generate(ctx context.Context, prompt string, options ...Option) (string, error) {
	return p.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, options...)
}
