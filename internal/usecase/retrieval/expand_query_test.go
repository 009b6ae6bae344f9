package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"policy-copilot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubChat struct {
	reply string
	err   error
	calls int
}

func (s *stubChat) Complete(ctx context.Context, system, user string) (string, error) {
	s.calls++
	return s.reply, s.err
}

func (s *stubChat) Version() string { return "stub-chat" }

func TestExpand_ParsesSeparatedVariants(t *testing.T) {
	chat := &stubChat{reply: "water damage coverage limits || flood reimbursement policy"}
	expander := NewQueryExpander(chat, true, 3, testLogger())

	variants := expander.Expand(context.Background(), "is water damage covered?")

	assert.Equal(t, []string{
		"is water damage covered?",
		"water damage coverage limits",
		"flood reimbursement policy",
	}, variants)
}

func TestExpand_DisabledNeverCallsModel(t *testing.T) {
	chat := &stubChat{reply: "should not be used"}
	expander := NewQueryExpander(chat, false, 3, testLogger())

	variants := expander.Expand(context.Background(), "what is my deductible?")

	assert.Equal(t, []string{"what is my deductible?"}, variants)
	assert.Zero(t, chat.calls)
}

func TestExpand_DegradesToOriginalOnError(t *testing.T) {
	chat := &stubChat{err: errors.New("model down")}
	expander := NewQueryExpander(chat, true, 3, testLogger())

	variants := expander.Expand(context.Background(), "what is my deductible?")

	assert.Equal(t, []string{"what is my deductible?"}, variants)
}

func TestExpand_DropsBlanksAndDuplicates(t *testing.T) {
	chat := &stubChat{reply: " deductible amount ||  || What is my deductible? || deductible amount"}
	expander := NewQueryExpander(chat, true, 5, testLogger())

	variants := expander.Expand(context.Background(), "what is my deductible?")

	assert.Equal(t, []string{"what is my deductible?", "deductible amount"}, variants)
}

func TestExpand_CapsVariantCount(t *testing.T) {
	chat := &stubChat{reply: "a || b || c || d || e"}
	expander := NewQueryExpander(chat, true, 3, testLogger())

	variants := expander.Expand(context.Background(), "query")

	assert.Len(t, variants, 4, "original plus at most maxVariants expansions")
	assert.Equal(t, "query", variants[0])
}

var _ domain.ChatClient = (*stubChat)(nil)
