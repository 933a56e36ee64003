package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"hospops/internal/apperr"
	"hospops/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutocompleteDropsStaleResponse(t *testing.T) {
	ctx := context.Background()
	search := func(_ context.Context, text string) ([]string, error) {
		if text == "A" {
			time.Sleep(300 * time.Millisecond)
		} else {
			time.Sleep(50 * time.Millisecond)
		}
		return []string{text + "-result"}, nil
	}
	a := NewAutocomplete[string]("patients", search, 0, nil)

	doneA := a.Dispatch(ctx, "A")
	doneB := a.Dispatch(ctx, "B")
	<-doneB
	assert.Equal(t, []string{"B-result"}, a.Current().Items)

	<-doneA
	cur := a.Current()
	assert.Equal(t, "B", cur.Text)
	assert.Equal(t, []string{"B-result"}, cur.Items)
	assert.False(t, cur.Loading)
	assert.Equal(t, uint64(2), a.RequestID())
}

func TestAutocompleteDebounce(t *testing.T) {
	var (
		mu    sync.Mutex
		texts []string
	)
	search := func(_ context.Context, text string) ([]string, error) {
		mu.Lock()
		texts = append(texts, text)
		mu.Unlock()
		return []string{text}, nil
	}
	a := NewAutocomplete[string]("departments", search, 40*time.Millisecond, nil)
	defer a.Stop()

	for _, s := range []string{"내", "내과", "내과 외래"} {
		a.Type(context.Background(), s)
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return a.Current().Text == "내과 외래" && !a.Current().Loading },
		time.Second, 10*time.Millisecond)
	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"내과 외래"}, texts)
}

func TestAutocompleteErrorKeepsPreviousItems(t *testing.T) {
	ctx := context.Background()
	rec := &notify.Recorder{}
	search := func(_ context.Context, text string) ([]string, error) {
		if text == "bad" {
			return nil, &apperr.TransportError{StatusCode: 500}
		}
		return []string{"김민수"}, nil
	}
	a := NewAutocomplete[string]("patients", search, 0, rec)

	<-a.Dispatch(ctx, "김")
	<-a.Dispatch(ctx, "bad")

	cur := a.Current()
	assert.Error(t, cur.Err)
	assert.Equal(t, []string{"김민수"}, cur.Items)
	require.Len(t, rec.Errors(), 1)
	assert.Equal(t, "autocomplete", rec.Errors()[0].Action)
}

func TestAutocompleteBlankClears(t *testing.T) {
	ctx := context.Background()
	calls := 0
	a := NewAutocomplete[string]("patients", func(_ context.Context, text string) ([]string, error) {
		calls++
		return []string{text}, nil
	}, 0, nil)

	<-a.Dispatch(ctx, "이")
	<-a.Dispatch(ctx, "   ")

	assert.Equal(t, Suggestions[string]{}, a.Current())
	assert.Equal(t, 1, calls)
}
